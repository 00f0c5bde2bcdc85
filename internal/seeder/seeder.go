package seeder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chactivo/chactivo-api/internal/domain/chat"
)

// SeedMessage is one scripted line, bound to a room by slug
type SeedMessage struct {
	RoomSlug string `json:"room_slug"`
	Content  string `json:"content"`
}

// script is the on-disk format: bot identity plus the message rotation
type script struct {
	BotUserID   uuid.UUID     `json:"bot_user_id"`
	BotUsername string        `json:"bot_username"`
	Messages    []SeedMessage `json:"messages"`
}

// Seeder posts scripted bot messages into rooms on a cron schedule so
// rooms never look dead. Messages go through the normal send path and
// therefore respect the rate limiter. The seeder backs off while real
// people are talking.
type Seeder struct {
	chatSvc    *chat.Service
	chatRepo   chat.Repository
	cron       string
	quietAfter time.Duration

	script script
	mu     sync.Mutex
	next   int
}

// New loads the script file and creates a seeder
func New(chatSvc *chat.Service, chatRepo chat.Repository, scriptPath, cron string, quietAfter time.Duration) (*Seeder, error) {
	if !gronx.IsValid(cron) {
		return nil, fmt.Errorf("invalid seeder cron expression: %s", cron)
	}

	data, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read seeder script: %w", err)
	}

	var sc script
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse seeder script: %w", err)
	}
	if len(sc.Messages) == 0 {
		return nil, fmt.Errorf("seeder script has no messages")
	}
	if sc.BotUsername == "" {
		sc.BotUsername = "chactivo-bot"
	}

	return &Seeder{
		chatSvc:    chatSvc,
		chatRepo:   chatRepo,
		cron:       cron,
		quietAfter: quietAfter,
		script:     sc,
	}, nil
}

// Run blocks until the context is cancelled (call in goroutine)
func (s *Seeder) Run(ctx context.Context) {
	log.Info().Str("cron", s.cron).Int("messages", len(s.script.Messages)).Msg("Seeder started")

	for {
		now := time.Now()
		next, err := gronx.NextTickAfter(s.cron, now, false)
		if err != nil {
			log.Error().Err(err).Str("cron", s.cron).Msg("Failed to compute next seeder tick")
			select {
			case <-time.After(30 * time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-time.After(time.Until(next)):
			s.tick(ctx)
		case <-ctx.Done():
			log.Info().Msg("Seeder stopping")
			return
		}
	}
}

func (s *Seeder) tick(ctx context.Context) {
	s.mu.Lock()
	msg := s.script.Messages[s.next%len(s.script.Messages)]
	s.next++
	s.mu.Unlock()

	room, err := s.chatRepo.GetRoomBySlug(ctx, msg.RoomSlug)
	if err != nil || room == nil {
		log.Warn().Err(err).Str("slug", msg.RoomSlug).Msg("Seeder room not found, skipping")
		return
	}

	// Stay quiet while the room carries a live conversation
	if room.LastMessage.Valid && time.Since(room.LastMessage.Time) < s.quietAfter {
		return
	}

	if err := s.chatSvc.JoinRoom(ctx, room.ID, s.script.BotUserID); err != nil {
		log.Warn().Err(err).Str("slug", msg.RoomSlug).Msg("Seeder failed to join room")
		return
	}

	_, rejection, err := s.chatSvc.SendMessage(ctx, room.ID, s.script.BotUserID, s.script.BotUsername, &chat.SendMessageRequest{
		Content: msg.Content,
	})
	if err != nil {
		log.Warn().Err(err).Str("slug", msg.RoomSlug).Msg("Seeder send failed")
		return
	}
	if rejection != nil {
		log.Debug().Str("reason", rejection.Reason).Msg("Seeder message rate limited")
	}
}
