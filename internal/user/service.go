// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/licensegate/internal/audit"
	"github.com/carterperez-dev/licensegate/internal/auth"
	"github.com/carterperez-dev/licensegate/internal/core"
)

type Service struct {
	repo          Repository
	recorder      audit.Recorder
	maxFeePercent float64
}

func NewService(
	repo Repository,
	recorder audit.Recorder,
	maxFeePercent float64,
) *Service {
	return &Service{
		repo:          repo,
		recorder:      recorder,
		maxFeePercent: maxFeePercent,
	}
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.UserInfo, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(u), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.UserInfo, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, err
	}

	return toUserInfo(u), nil
}

func (s *Service) Create(
	ctx context.Context,
	email, username, passwordHash, fullName string,
) (*auth.UserInfo, error) {
	u := &User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(email),
		Username:     username,
		PasswordHash: passwordHash,
		FullName:     fullName,
		Role:         RoleUser,
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	return toUserInfo(u), nil
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	userID, passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) TouchLastLogin(ctx context.Context, userID string) error {
	return s.repo.TouchLastLogin(ctx, userID)
}

// FeeOverrideFor returns the per-user fee override for the fee cascade:
// (percent, true) when the user carries an override, (_, false) otherwise.
func (s *Service) FeeOverrideFor(
	ctx context.Context,
	userID string,
) (float64, bool, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return 0, false, err
	}

	if !u.HasFeeOverride() {
		return 0, false, nil
	}

	return *u.FeeOverridePercent, true, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateProfile(
	ctx context.Context,
	id string,
	req UpdateProfileRequest,
) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		u.FullName = *req.FullName
		if err := s.repo.UpdateProfile(ctx, id, u.FullName); err != nil {
			return nil, err
		}
	}

	return u, nil
}

// UpdateRole promotes or demotes a user. Granting admin or super_admin
// requires a super_admin actor.
func (s *Service) UpdateRole(
	ctx context.Context,
	actorRole, id, role string,
) (*User, error) {
	if role != RoleUser && role != RoleAdmin && role != RoleSuperAdmin {
		return nil, fmt.Errorf(
			"update role: invalid role %q: %w",
			role,
			core.ErrInvalidInput,
		)
	}

	if role != RoleUser && actorRole != RoleSuperAdmin {
		return nil, fmt.Errorf(
			"update role: only super_admin may grant %s: %w",
			role,
			core.ErrForbidden,
		)
	}

	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Action:       audit.ActionUserUpdate,
		ResourceType: "user",
		ResourceID:   id,
		Details:      fmt.Sprintf("role changed to %s", role),
	})

	return s.repo.GetByID(ctx, id)
}

func (s *Service) SetFeeOverride(
	ctx context.Context,
	actorID, id string,
	req SetFeeOverrideRequest,
) (*User, error) {
	if req.FeePercent < 0 || req.FeePercent > s.maxFeePercent {
		return nil, fmt.Errorf(
			"set fee override: percent must be in [0, %.2f]: %w",
			s.maxFeePercent,
			core.ErrInvalidInput,
		)
	}

	percent := req.FeePercent
	if err := s.repo.SetFeeOverride(ctx, id, &percent, req.Notes); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		ActorUserID:  &actorID,
		Action:       audit.ActionFeeOverrideSet,
		ResourceType: "user",
		ResourceID:   id,
		Details:      fmt.Sprintf("fee override set to %.4f", percent),
	})

	return s.repo.GetByID(ctx, id)
}

func (s *Service) ClearFeeOverride(
	ctx context.Context,
	actorID, id string,
) error {
	if err := s.repo.SetFeeOverride(ctx, id, nil, ""); err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.Entry{
		ActorUserID:  &actorID,
		Action:       audit.ActionFeeOverrideClear,
		ResourceType: "user",
		ResourceID:   id,
	})

	return nil
}

// Deactivate soft-disables the account; user rows are never hard-deleted.
func (s *Service) Deactivate(ctx context.Context, actorID, id string) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.Entry{
		ActorUserID:  &actorID,
		Action:       audit.ActionUserDeactivate,
		ResourceType: "user",
		ResourceID:   id,
	})

	return nil
}

func (s *Service) Reactivate(ctx context.Context, actorID, id string) error {
	if err := s.repo.SetActive(ctx, id, true); err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.Entry{
		ActorUserID:  &actorID,
		Action:       audit.ActionUserUpdate,
		ResourceType: "user",
		ResourceID:   id,
		Details:      "account reactivated",
	})

	return nil
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		FullName:     u.FullName,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		IsActive:     u.IsActive,
	}
}

var _ auth.UserProvider = (*Service)(nil)
