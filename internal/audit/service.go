// AngelaMos | 2026
// service.go

package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Recorder is the write contract other services depend on. Writes are
// best-effort: an audit failure must never fail the request it records.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Record(ctx context.Context, entry Entry) {
	entry.ID = uuid.New().String()

	if err := s.repo.Insert(ctx, &entry); err != nil {
		slog.Error("audit write failed",
			"action", entry.Action,
			"resource_type", entry.ResourceType,
			"error", err,
		)
	}
}

func (s *Service) List(
	ctx context.Context,
	params ListParams,
) ([]Entry, error) {
	return s.repo.List(ctx, params)
}

var _ Recorder = (*Service)(nil)
