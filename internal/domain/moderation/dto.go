package moderation

import "github.com/google/uuid"

// MuteUserRequest silences a user for a number of minutes
type MuteUserRequest struct {
	UserID          uuid.UUID `json:"user_id" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,min=1,max=10080"`
	Reason          string    `json:"reason" validate:"required,min=2,max=200"`
}

// CreateReportRequest files a complaint against a user
type CreateReportRequest struct {
	TargetID  uuid.UUID  `json:"target_id" validate:"required"`
	MessageID *uuid.UUID `json:"message_id,omitempty"`
	Reason    string     `json:"reason" validate:"required,report_reason"`
	Details   string     `json:"details" validate:"max=1000"`
}

// ResolveReportRequest closes a report
type ResolveReportRequest struct {
	Status ReportStatus `json:"status" validate:"required,oneof=resolved dismissed"`
}

// BlockUserRequest hides another user's messages
type BlockUserRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
}
