package moderation

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Mute silences a user in chat for a bounded period. Rate-limit mutes
// carry the message count that triggered them; moderator mutes carry the
// acting moderator.
type Mute struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	UserID       uuid.UUID     `db:"user_id" json:"user_id"`
	MutedBy      uuid.NullUUID `db:"muted_by" json:"muted_by,omitempty"`
	Reason       string        `db:"reason" json:"reason"`
	MessageCount int           `db:"message_count" json:"message_count"`
	MuteStart    time.Time     `db:"mute_start" json:"mute_start"`
	MuteEnd      time.Time     `db:"mute_end" json:"mute_end"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// Active reports whether the mute is in force at the given time
func (m *Mute) Active(at time.Time) bool {
	return !at.Before(m.MuteStart) && at.Before(m.MuteEnd)
}

// ReportStatus tracks a report through the moderation queue
type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportResolved  ReportStatus = "resolved"
	ReportDismissed ReportStatus = "dismissed"
)

// Report is a user complaint about another user or a specific message
type Report struct {
	ID         uuid.UUID     `db:"id" json:"id"`
	ReporterID uuid.UUID     `db:"reporter_id" json:"reporter_id"`
	TargetID   uuid.UUID     `db:"target_id" json:"target_id"`
	MessageID  uuid.NullUUID `db:"message_id" json:"message_id,omitempty"`
	Reason     string        `db:"reason" json:"reason"`
	Details    string        `db:"details" json:"details,omitempty"`
	Status     ReportStatus  `db:"status" json:"status"`
	ResolvedBy uuid.NullUUID `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt sql.NullTime  `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}

// Block hides one user's messages from another
type Block struct {
	BlockerID uuid.UUID `db:"blocker_id" json:"blocker_id"`
	BlockedID uuid.UUID `db:"blocked_id" json:"blocked_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
