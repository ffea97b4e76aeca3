// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/licensegate/internal/audit"
	"github.com/carterperez-dev/licensegate/internal/core"
	"github.com/carterperez-dev/licensegate/internal/middleware"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already exists")
	ErrAccountInactive    = errors.New("account is deactivated")
)

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	Create(
		ctx context.Context,
		email, username, passwordHash, fullName string,
	) (*UserInfo, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	TouchLastLogin(ctx context.Context, userID string) error
}

type Service struct {
	repo     Repository
	tokens   *TokenManager
	users    UserProvider
	recorder audit.Recorder
}

func NewService(
	repo Repository,
	tokens *TokenManager,
	users UserProvider,
	recorder audit.Recorder,
) *Service {
	return &Service{
		repo:     repo,
		tokens:   tokens,
		users:    users,
		recorder: recorder,
	}
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	if violations := ValidateRegistration(
		req.Email,
		req.Username,
		req.Password,
	); len(violations) > 0 {
		return nil, core.ValidationError(
			"registration failed validation",
			violations...,
		)
	}

	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.Create(
		ctx,
		req.Email,
		req.Username,
		passwordHash,
		req.FullName,
	)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.recorder.Record(ctx, audit.Entry{
		ActorUserID:  &u.ID,
		Action:       audit.ActionRegister,
		ResourceType: "user",
		ResourceID:   u.ID,
		IPAddress:    ipAddress,
	})

	return s.createAuthResponse(ctx, u, userAgent, ipAddress)
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	email := strings.ToLower(req.Email)

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// unknown email and wrong password are indistinguishable
			//nolint:errcheck // timing attack prevention
			_, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
			s.recordLoginFailure(ctx, nil, email, ipAddress)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, err := core.VerifyPasswordTimingSafe(
		req.Password,
		&u.PasswordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		s.recordLoginFailure(ctx, &u.ID, email, ipAddress)
		return nil, ErrInvalidCredentials
	}

	if !u.IsActive {
		s.recordLoginFailure(ctx, &u.ID, email, ipAddress)
		return nil, ErrAccountInactive
	}

	//nolint:errcheck // best-effort last-login stamp
	_ = s.users.TouchLastLogin(ctx, u.ID)

	s.recorder.Record(ctx, audit.Entry{
		ActorUserID:  &u.ID,
		Action:       audit.ActionLogin,
		ResourceType: "user",
		ResourceID:   u.ID,
		IPAddress:    ipAddress,
	})

	return s.createAuthResponse(ctx, u, userAgent, ipAddress)
}

// VerifySession is the per-request double check: token signature AND
// live session row AND owning user still active. This is what makes
// logout observable on the very next request.
func (s *Service) VerifySession(
	ctx context.Context,
	token string,
) (*middleware.SessionClaims, error) {
	claims, err := s.tokens.VerifySessionToken(token)
	if err != nil {
		return nil, err
	}

	digest := core.HashToken(token)

	session, err := s.repo.FindByDigest(ctx, digest)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("verify session: %w", core.ErrTokenRevoked)
		}
		return nil, fmt.Errorf("find session: %w", err)
	}

	if !session.IsUsable() {
		if session.IsExpired() {
			return nil, fmt.Errorf("verify session: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("verify session: %w", core.ErrTokenRevoked)
	}

	u, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("verify session: %w", core.ErrTokenRevoked)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !u.IsActive {
		return nil, fmt.Errorf("verify session: %w", core.ErrTokenRevoked)
	}

	return &middleware.SessionClaims{
		UserID: claims.UserID,
		Role:   u.Role,
	}, nil
}

// Logout deactivates the session row; the token's signature remains
// valid until its embedded expiry but no longer grants access.
func (s *Service) Logout(ctx context.Context, token, userID string) error {
	digest := core.HashToken(token)

	if err := s.repo.DeactivateByDigest(ctx, digest); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	s.recorder.Record(ctx, audit.Entry{
		ActorUserID:  &userID,
		Action:       audit.ActionLogout,
		ResourceType: "session",
	})

	return nil
}

// Refresh issues a new token/session pair and deactivates the old
// session before the new token is returned.
func (s *Service) Refresh(
	ctx context.Context,
	token, userAgent, ipAddress string,
) (*AuthResponse, error) {
	claims, err := s.VerifySession(ctx, token)
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	oldDigest := core.HashToken(token)
	if err := s.repo.DeactivateByDigest(ctx, oldDigest); err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	resp, err := s.createAuthResponse(ctx, u, userAgent, ipAddress)
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		ActorUserID:  &u.ID,
		Action:       audit.ActionTokenRefresh,
		ResourceType: "session",
		IPAddress:    ipAddress,
	})

	return resp, nil
}

// ChangePassword re-hashes and stores the new password. Other active
// sessions for the user are deliberately left intact.
func (s *Service) ChangePassword(
	ctx context.Context,
	userID, currentPassword, newPassword string,
) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	valid, err := core.VerifyPassword(currentPassword, u.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return ErrInvalidCredentials
	}

	if violations := ValidatePasswordStrength(newPassword); len(violations) > 0 {
		return core.ValidationError(
			"new password failed validation",
			violations...,
		)
	}

	newHash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, newHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.recorder.Record(ctx, audit.Entry{
		ActorUserID:  &userID,
		Action:       audit.ActionPasswordChange,
		ResourceType: "user",
		ResourceID:   userID,
	})

	return nil
}

func (s *Service) GetActiveSessions(
	ctx context.Context,
	userID string,
) ([]SessionInfo, error) {
	sessions, err := s.repo.ListActiveForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}

	infos := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, SessionInfo{
			ID:        sess.ID,
			IPAddress: sess.IPAddress,
			UserAgent: sess.UserAgent,
			IssuedAt:  sess.IssuedAt,
			ExpiresAt: sess.ExpiresAt,
		})
	}

	return infos, nil
}

func (s *Service) RevokeSession(
	ctx context.Context,
	userID, sessionID string,
) error {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}

	if session.UserID != userID {
		return fmt.Errorf("revoke session: %w", core.ErrForbidden)
	}

	if err := s.repo.DeactivateByID(ctx, sessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

func (s *Service) GetCurrentUser(
	ctx context.Context,
	userID string,
) (*UserResponse, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &UserResponse{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
		FullName: u.FullName,
		Role:     u.Role,
	}, nil
}

func (s *Service) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx)
}

func (s *Service) createAuthResponse(
	ctx context.Context,
	u *UserInfo,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	token, expiresAt, err := s.tokens.CreateSessionToken(SessionTokenClaims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("create session token: %w", err)
	}

	session := &Session{
		ID:          uuid.New().String(),
		UserID:      u.ID,
		TokenDigest: core.HashToken(token),
		ExpiresAt:   expiresAt,
		IPAddress:   ipAddress,
		UserAgent:   userAgent,
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	return &AuthResponse{
		User: UserResponse{
			ID:       u.ID,
			Email:    u.Email,
			Username: u.Username,
			FullName: u.FullName,
			Role:     u.Role,
		},
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) recordLoginFailure(
	ctx context.Context,
	userID *string,
	email, ipAddress string,
) {
	s.recorder.Record(ctx, audit.Entry{
		ActorUserID:  userID,
		Action:       audit.ActionLoginFailed,
		ResourceType: "user",
		Details:      fmt.Sprintf("failed login for %s", email),
		IPAddress:    ipAddress,
	})
}

var _ middleware.SessionVerifier = (*Service)(nil)

// sessionGCInterval paces the periodic sweep of expired session rows.
const sessionGCInterval = time.Hour

// RunSessionGC deletes long-expired session rows until ctx is done.
func (s *Service) RunSessionGC(ctx context.Context) {
	ticker := time.NewTicker(sessionGCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.repo.DeleteExpired(ctx); err != nil &&
				!errors.Is(err, context.Canceled) {
				continue
			}
		}
	}
}
