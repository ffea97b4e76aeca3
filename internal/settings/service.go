// AngelaMos | 2026
// service.go

package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/carterperez-dev/licensegate/internal/audit"
	"github.com/carterperez-dev/licensegate/internal/core"
)

const (
	KeyDefaultTradeFeePercent = "default_trade_fee_percent"
	KeyFeeRecipientAddress    = "fee_recipient_address"
)

type Service struct {
	repo    Repository
	auditor audit.Recorder
}

func NewService(repo Repository, auditor audit.Recorder) *Service {
	return &Service{repo: repo, auditor: auditor}
}

// DefaultTradeFeePercent reads the system-wide fee floor. The value is
// stored as text; a malformed value is a config error, not a request
// error.
func (s *Service) DefaultTradeFeePercent(ctx context.Context) (float64, error) {
	raw, err := s.repo.Get(ctx, KeyDefaultTradeFeePercent)
	if err != nil {
		return 0, err
	}

	percent, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf(
			"parse %s: %w", KeyDefaultTradeFeePercent, err)
	}

	return percent, nil
}

func (s *Service) FeeRecipientAddress(ctx context.Context) (string, error) {
	return s.repo.Get(ctx, KeyFeeRecipientAddress)
}

func (s *Service) Get(ctx context.Context, key string) (string, error) {
	value, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", core.NotFoundError("setting")
		}
		return "", err
	}
	return value, nil
}

func (s *Service) List(ctx context.Context) ([]Setting, error) {
	return s.repo.List(ctx)
}

func (s *Service) Update(
	ctx context.Context,
	key, value, actorID string,
) error {
	if key == KeyDefaultTradeFeePercent {
		percent, err := strconv.ParseFloat(value, 64)
		if err != nil || percent < 0 || percent > 100 {
			return core.ValidationError(
				"invalid setting value",
				"default_trade_fee_percent must be a number between 0 and 100",
			)
		}
	}

	if err := s.repo.Set(ctx, key, value); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.NotFoundError("setting")
		}
		return err
	}

	s.auditor.Record(ctx, audit.Entry{
		ActorUserID:  &actorID,
		Action:       audit.ActionSettingUpdate,
		ResourceType: "setting",
		ResourceID:   key,
		Details:      fmt.Sprintf(`{"value":%q}`, value),
	})

	return nil
}
