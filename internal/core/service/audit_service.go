package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sirpyerre/realm-auth/internal/core/domain"
	"github.com/sirpyerre/realm-auth/internal/core/ports"
)

type auditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService returns an AuditService writing to repo.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Process persists a single audit event.
func (s *auditService) Process(ctx context.Context, ev domain.AuthEvent) error {
	if ev.Kind == "" {
		return fmt.Errorf("process audit event: %w: missing kind", domain.ErrBadInput)
	}
	if err := s.repo.InsertEvent(ctx, &ev); err != nil {
		return fmt.Errorf("process audit event: %w", err)
	}
	s.log.Debug().
		Str("kind", string(ev.Kind)).
		Str("user_id", ev.UserID).
		Str("outcome", ev.Outcome).
		Msg("audit event stored")
	return nil
}

// NopAudit discards every event.
type NopAudit struct{}

func (NopAudit) Record(domain.AuthEvent) {}
