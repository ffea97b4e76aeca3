// AngelaMos | 2026
// service_test.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/licensegate/internal/audit"
	"github.com/carterperez-dev/licensegate/internal/core"
)

type fakeSessionRepo struct {
	mu       sync.Mutex
	byDigest map[string]*Session
	byID     map[string]*Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		byDigest: make(map[string]*Session),
		byID:     make(map[string]*Session),
	}
}

func (r *fakeSessionRepo) Create(_ context.Context, session *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *session
	stored.IsActive = true
	stored.IssuedAt = time.Now()
	r.byDigest[stored.TokenDigest] = &stored
	r.byID[stored.ID] = &stored
	return nil
}

func (r *fakeSessionRepo) FindByDigest(
	_ context.Context,
	digest string,
) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.byDigest[digest]
	if !ok {
		return nil, fmt.Errorf("find session: %w", core.ErrNotFound)
	}
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) FindByID(
	_ context.Context,
	id string,
) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("find session: %w", core.ErrNotFound)
	}
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) DeactivateByDigest(
	_ context.Context,
	digest string,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.byDigest[digest]; ok {
		session.IsActive = false
	}
	return nil
}

func (r *fakeSessionRepo) DeactivateByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.byID[id]; ok {
		session.IsActive = false
	}
	return nil
}

func (r *fakeSessionRepo) ListActiveForUser(
	_ context.Context,
	userID string,
) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sessions []Session
	for _, session := range r.byID {
		if session.UserID == userID && session.IsUsable() {
			sessions = append(sessions, *session)
		}
	}
	return sessions, nil
}

func (r *fakeSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]*UserInfo
	byID    map[string]*UserInfo
	nextID  int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byEmail: make(map[string]*UserInfo),
		byID:    make(map[string]*UserInfo),
	}
}

func (f *fakeUsers) add(u *UserInfo) {
	f.byEmail[u.Email] = u
	f.byID[u.ID] = u
}

func (f *fakeUsers) GetByEmail(
	_ context.Context,
	email string,
) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	return u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	return u, nil
}

func (f *fakeUsers) Create(
	_ context.Context,
	email, username, passwordHash, fullName string,
) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.byEmail[email]; exists {
		return nil, fmt.Errorf("create user: %w", core.ErrDuplicateKey)
	}

	f.nextID++
	u := &UserInfo{
		ID:           fmt.Sprintf("user-%d", f.nextID),
		Email:        email,
		Username:     username,
		FullName:     fullName,
		PasswordHash: passwordHash,
		Role:         "user",
		IsActive:     true,
	}
	f.byEmail[email] = u
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUsers) UpdatePassword(
	_ context.Context,
	userID, passwordHash string,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.byID[userID]
	if !ok {
		return core.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (f *fakeUsers) TouchLastLogin(_ context.Context, _ string) error {
	return nil
}

type recorderStub struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recorderStub) Record(_ context.Context, entry audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recorderStub) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	actions := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		actions = append(actions, e.Action)
	}
	return actions
}

func newTestService(t *testing.T) (*Service, *fakeUsers, *recorderStub) {
	t.Helper()

	users := newFakeUsers()
	recorder := &recorderStub{}
	svc := NewService(
		newFakeSessionRepo(),
		newTestTokenManager(t, time.Hour),
		users,
		recorder,
	)
	return svc, users, recorder
}

func seedUser(t *testing.T, users *fakeUsers, email, password string) *UserInfo {
	t.Helper()

	hash, err := core.HashPassword(password)
	require.NoError(t, err)

	u := &UserInfo{
		ID:           "user-seed-" + email,
		Email:        email,
		Username:     "seeded",
		PasswordHash: hash,
		Role:         "user",
		IsActive:     true,
	}
	users.add(u)
	return u
}

func TestService_Register(t *testing.T) {
	svc, _, recorder := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{
		Email:    "trader@example.com",
		Username: "trader_01",
		Password: "Str0ngPass",
	}, "test-agent", "127.0.0.1")
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, "trader@example.com", resp.User.Email)
	assert.Contains(t, recorder.actions(), audit.ActionRegister)

	// the issued token is immediately usable
	claims, err := svc.VerifySession(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
}

func TestService_Register_ValidationListsAllRules(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "bad",
		Username: "x",
		Password: "weak",
	}, "", "")
	require.Error(t, err)

	appErr, ok := core.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.GreaterOrEqual(t, len(appErr.Fields), 3)
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	svc, users, _ := newTestService(t)
	seedUser(t, users, "trader@example.com", "Str0ngPass")

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "trader@example.com",
		Username: "trader_02",
		Password: "Str0ngPass",
	}, "", "")
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestService_Login_WrongPassword(t *testing.T) {
	svc, users, recorder := newTestService(t)
	seedUser(t, users, "trader@example.com", "Str0ngPass")

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "trader@example.com",
		Password: "WrongPass1",
	}, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Contains(t, recorder.actions(), audit.ActionLoginFailed)
}

func TestService_Login_UnknownEmail(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "nobody@example.com",
		Password: "Str0ngPass",
	}, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_Login_InactiveAccount(t *testing.T) {
	svc, users, _ := newTestService(t)
	u := seedUser(t, users, "trader@example.com", "Str0ngPass")
	u.IsActive = false

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "trader@example.com",
		Password: "Str0ngPass",
	}, "", "")
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestService_LogoutRevokesOnNextRequest(t *testing.T) {
	svc, users, _ := newTestService(t)
	seedUser(t, users, "trader@example.com", "Str0ngPass")
	ctx := context.Background()

	resp, err := svc.Login(ctx, LoginRequest{
		Email:    "trader@example.com",
		Password: "Str0ngPass",
	}, "", "")
	require.NoError(t, err)

	_, err = svc.VerifySession(ctx, resp.Token)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, resp.Token, resp.User.ID))

	// signature is still valid, but the live session row is gone
	_, err = svc.VerifySession(ctx, resp.Token)
	assert.True(t, errors.Is(err, core.ErrTokenRevoked))
}

func TestService_Logout_Idempotent(t *testing.T) {
	svc, users, _ := newTestService(t)
	seedUser(t, users, "trader@example.com", "Str0ngPass")
	ctx := context.Background()

	resp, err := svc.Login(ctx, LoginRequest{
		Email:    "trader@example.com",
		Password: "Str0ngPass",
	}, "", "")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, resp.Token, resp.User.ID))
	require.NoError(t, svc.Logout(ctx, resp.Token, resp.User.ID))
}

func TestService_RefreshInvalidatesOldToken(t *testing.T) {
	svc, users, _ := newTestService(t)
	seedUser(t, users, "trader@example.com", "Str0ngPass")
	ctx := context.Background()

	login, err := svc.Login(ctx, LoginRequest{
		Email:    "trader@example.com",
		Password: "Str0ngPass",
	}, "", "")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, login.Token, "", "")
	require.NoError(t, err)
	assert.NotEqual(t, login.Token, refreshed.Token)

	_, err = svc.VerifySession(ctx, refreshed.Token)
	require.NoError(t, err)

	_, err = svc.VerifySession(ctx, login.Token)
	assert.True(t, errors.Is(err, core.ErrTokenRevoked))
}

func TestService_VerifySession_DeactivatedUser(t *testing.T) {
	svc, users, _ := newTestService(t)
	u := seedUser(t, users, "trader@example.com", "Str0ngPass")
	ctx := context.Background()

	resp, err := svc.Login(ctx, LoginRequest{
		Email:    "trader@example.com",
		Password: "Str0ngPass",
	}, "", "")
	require.NoError(t, err)

	u.IsActive = false

	_, err = svc.VerifySession(ctx, resp.Token)
	assert.True(t, errors.Is(err, core.ErrTokenRevoked))
}

func TestService_ChangePassword(t *testing.T) {
	svc, users, recorder := newTestService(t)
	u := seedUser(t, users, "trader@example.com", "Str0ngPass")
	ctx := context.Background()

	login, err := svc.Login(ctx, LoginRequest{
		Email:    "trader@example.com",
		Password: "Str0ngPass",
	}, "", "")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, u.ID, "Str0ngPass", "N3wStrongPass")
	require.NoError(t, err)
	assert.Contains(t, recorder.actions(), audit.ActionPasswordChange)

	// existing sessions stay valid after a password change
	_, err = svc.VerifySession(ctx, login.Token)
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{
		Email:    "trader@example.com",
		Password: "N3wStrongPass",
	}, "", "")
	require.NoError(t, err)
}

func TestService_ChangePassword_WrongCurrent(t *testing.T) {
	svc, users, _ := newTestService(t)
	u := seedUser(t, users, "trader@example.com", "Str0ngPass")

	err := svc.ChangePassword(
		context.Background(),
		u.ID,
		"WrongPass1",
		"N3wStrongPass",
	)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_RevokeSession_OwnershipEnforced(t *testing.T) {
	svc, users, _ := newTestService(t)
	seedUser(t, users, "trader@example.com", "Str0ngPass")
	ctx := context.Background()

	resp, err := svc.Login(ctx, LoginRequest{
		Email:    "trader@example.com",
		Password: "Str0ngPass",
	}, "", "")
	require.NoError(t, err)

	sessions, err := svc.GetActiveSessions(ctx, resp.User.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	err = svc.RevokeSession(ctx, "someone-else", sessions[0].ID)
	assert.True(t, errors.Is(err, core.ErrForbidden))

	require.NoError(t, svc.RevokeSession(ctx, resp.User.ID, sessions[0].ID))

	_, err = svc.VerifySession(ctx, resp.Token)
	assert.True(t, errors.Is(err, core.ErrTokenRevoked))
}
