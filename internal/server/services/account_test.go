package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/logging"
	"github.com/dmitrijs2005/gophaccounts/internal/server/auth"
	"github.com/dmitrijs2005/gophaccounts/internal/server/config"
	"github.com/dmitrijs2005/gophaccounts/internal/server/events"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (n *recordingNotifier) Publish(ctx context.Context, e events.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

func (n *recordingNotifier) detailTypes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.DetailType)
	}
	return out
}

// failingRepo wraps a repository and fails selected operations.
type failingRepo struct {
	users.Repository
	getErr    error
	scanErr   error
	putErr    error
	updateErr error
}

func (r *failingRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.Repository.GetByEmail(ctx, email)
}

func (r *failingRepo) ScanByField(ctx context.Context, field string, value any) ([]*models.User, error) {
	if r.scanErr != nil {
		return nil, r.scanErr
	}
	return r.Repository.ScanByField(ctx, field, value)
}

func (r *failingRepo) Put(ctx context.Context, u *models.User) error {
	if r.putErr != nil {
		return r.putErr
	}
	return r.Repository.Put(ctx, u)
}

func (r *failingRepo) UpdateFields(ctx context.Context, email string, fields map[string]any) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	return r.Repository.UpdateFields(ctx, email, fields)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.BcryptCost = bcrypt.MinCost
	return cfg
}

func newTestService(t *testing.T, repo users.Repository) (*AccountService, *recordingNotifier, *config.Config) {
	t.Helper()
	cfg := testConfig()
	n := &recordingNotifier{}
	svc, err := NewAccountService(repo, auth.NewIssuer(cfg), n, logging.NewDiscardLogger(), cfg)
	require.NoError(t, err)
	return svc, n, cfg
}

func signup(t *testing.T, svc *AccountService, email, password string) {
	t.Helper()
	require.NoError(t, svc.Signup(context.Background(), &SignupInput{
		Email: email, Password: password, FirstName: "Ada", LastName: "Lovelace", Phone: "0400", Address: "1 Main St",
	}))
}

func TestNewAccountService_BadTimezone(t *testing.T) {
	cfg := testConfig()
	cfg.ReviewTimezone = "Nowhere/Atlantis"
	_, err := NewAccountService(users.NewInMemoryRepository(), auth.NewIssuer(cfg), &recordingNotifier{}, logging.NewDiscardLogger(), cfg)
	require.Error(t, err)
}

func TestSignup_ThenLogin(t *testing.T) {
	ctx := context.Background()
	repo := users.NewInMemoryRepository()
	svc, n, cfg := newTestService(t, repo)
	svc.newID = func() string { return "id-1" }

	signup(t, svc, "a@example.com", "p1")

	stored, err := repo.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "id-1", stored.UUID)
	assert.False(t, stored.IsAdmin)
	assert.NotEqual(t, "p1", stored.Password)
	assert.NotNil(t, stored.Reviews)
	assert.Empty(t, stored.Reviews)
	assert.Equal(t, []string{cfg.CartInitDetailType, cfg.OrderInitDetailType}, n.detailTypes())

	sess, err := svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", sess.User.Email)
	assert.Equal(t, "Ada", sess.User.FirstName)

	claims, err := svc.tokens.Verify(sess.AccessToken, auth.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "id-1", claims.UserID())

	claims, err = svc.tokens.Verify(sess.RefreshToken, auth.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "id-1", claims.UserID())

	// tokens are bound to their class
	_, err = svc.tokens.Verify(sess.AccessToken, auth.RefreshToken)
	assert.Error(t, err)
}

func TestSignup_Errors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	tests := []struct {
		name    string
		repo    func() users.Repository
		in      *SignupInput
		wantErr error
	}{
		{
			name:    "nil body",
			repo:    func() users.Repository { return users.NewInMemoryRepository() },
			in:      nil,
			wantErr: common.ErrorInvalidInput,
		},
		{
			name:    "missing password",
			repo:    func() users.Repository { return users.NewInMemoryRepository() },
			in:      &SignupInput{Email: "a@example.com"},
			wantErr: common.ErrorInvalidInput,
		},
		{
			name:    "password over 72 bytes",
			repo:    func() users.Repository { return users.NewInMemoryRepository() },
			in:      &SignupInput{Email: "a@example.com", Password: strings.Repeat("x", 73)},
			wantErr: common.ErrorInvalidInput,
		},
		{
			name: "lookup failure",
			repo: func() users.Repository {
				return &failingRepo{Repository: users.NewInMemoryRepository(), getErr: boom}
			},
			in:      &SignupInput{Email: "a@example.com", Password: "p"},
			wantErr: common.ErrorInternal,
		},
		{
			name: "racing duplicate",
			repo: func() users.Repository {
				return &failingRepo{Repository: users.NewInMemoryRepository(), putErr: common.ErrorAlreadyExists}
			},
			in:      &SignupInput{Email: "a@example.com", Password: "p"},
			wantErr: common.ErrorAlreadyExists,
		},
		{
			name: "put failure",
			repo: func() users.Repository {
				return &failingRepo{Repository: users.NewInMemoryRepository(), putErr: boom}
			},
			in:      &SignupInput{Email: "a@example.com", Password: "p"},
			wantErr: common.ErrorInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService(t, tt.repo())
			err := svc.Signup(ctx, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSignup_DuplicateLeavesOriginal(t *testing.T) {
	ctx := context.Background()
	repo := users.NewInMemoryRepository()
	svc, n, _ := newTestService(t, repo)

	signup(t, svc, "a@example.com", "p1")
	before, err := repo.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)

	err = svc.Signup(ctx, &SignupInput{Email: "a@example.com", Password: "other", FirstName: "Eve"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	after, err := repo.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, n.detailTypes(), 2)
}

func TestSignup_EventFailureIsNotSurfaced(t *testing.T) {
	repo := users.NewInMemoryRepository()
	svc, n, _ := newTestService(t, repo)
	n.err = errors.New("bus down")

	signup(t, svc, "a@example.com", "p1")
	_, err := repo.GetByEmail(context.Background(), "a@example.com")
	assert.NoError(t, err)
}

func TestLogin_Errors(t *testing.T) {
	ctx := context.Background()
	repo := users.NewInMemoryRepository()
	svc, _, _ := newTestService(t, repo)
	signup(t, svc, "a@example.com", "p1")

	tests := []struct {
		name    string
		in      LoginInput
		wantErr error
	}{
		{name: "missing email", in: LoginInput{Password: "p1"}, wantErr: common.ErrorInvalidInput},
		{name: "missing password", in: LoginInput{Email: "a@example.com"}, wantErr: common.ErrorInvalidInput},
		{name: "unknown email", in: LoginInput{Email: "b@example.com", Password: "p1"}, wantErr: common.ErrorUnauthorized},
		{name: "wrong password", in: LoginInput{Email: "a@example.com", Password: "p2"}, wantErr: common.ErrorUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := svc.Login(ctx, tt.in)
			assert.Nil(t, sess)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("store failure", func(t *testing.T) {
		broken, _, _ := newTestService(t, &failingRepo{Repository: repo, getErr: errors.New("timeout")})
		_, err := broken.Login(ctx, LoginInput{Email: "a@example.com", Password: "p1"})
		assert.ErrorIs(t, err, common.ErrorInternal)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	repo := users.NewInMemoryRepository()
	svc, _, cfg := newTestService(t, repo)
	signup(t, svc, "a@example.com", "p1")

	sess, err := svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "p1"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, sess.RefreshToken)
	require.NoError(t, err)
	assert.Empty(t, refreshed.RefreshToken)
	assert.Equal(t, "a@example.com", refreshed.User.Email)
	_, err = svc.tokens.Verify(refreshed.AccessToken, auth.AccessToken)
	assert.NoError(t, err)

	t.Run("missing token", func(t *testing.T) {
		_, err := svc.Refresh(ctx, "")
		assert.ErrorIs(t, err, common.ErrorUnauthorized)
	})

	t.Run("access token presented as refresh", func(t *testing.T) {
		_, err := svc.Refresh(ctx, sess.AccessToken)
		assert.ErrorIs(t, err, common.ErrorForbidden)
	})

	t.Run("tampered", func(t *testing.T) {
		_, err := svc.Refresh(ctx, sess.RefreshToken+"x")
		assert.ErrorIs(t, err, common.ErrorForbidden)
	})

	t.Run("expired", func(t *testing.T) {
		old, err := auth.GenerateToken("whoever", auth.RefreshToken, []byte(cfg.RefreshTokenSecret), time.Minute, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		_, err = svc.Refresh(ctx, old)
		assert.ErrorIs(t, err, common.ErrorForbidden)
	})

	t.Run("user gone", func(t *testing.T) {
		orphan, err := svc.tokens.IssueRefreshToken("no-such-id")
		require.NoError(t, err)
		_, err = svc.Refresh(ctx, orphan)
		assert.ErrorIs(t, err, common.ErrorUnauthorized)
	})
}

func TestLogout(t *testing.T) {
	svc, _, _ := newTestService(t, users.NewInMemoryRepository())
	assert.True(t, svc.Logout(context.Background(), "token"))
	assert.False(t, svc.Logout(context.Background(), ""))
}

func validUpdate() *UpdateProfileInput {
	return &UpdateProfileInput{
		Email:              "a@example.com",
		Password:           "p1",
		NewPassword:        "p2",
		ConfirmNewPassword: "p2",
		FirstName:          "Grace",
		LastName:           "Hopper",
		Phone:              "0411",
		Address:            "2 Side St",
	}
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	repo := users.NewInMemoryRepository()
	svc, _, _ := newTestService(t, repo)
	signup(t, svc, "a@example.com", "p1")

	require.NoError(t, svc.UpdateProfile(ctx, validUpdate()))

	_, err := svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "p1"})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	sess, err := svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "p2"})
	require.NoError(t, err)
	assert.Equal(t, "Grace", sess.User.FirstName)
	assert.Equal(t, "Hopper", sess.User.LastName)
	assert.Equal(t, "0411", sess.User.Phone)
	assert.Equal(t, "2 Side St", sess.User.Address)
}

func TestUpdateProfile_Errors(t *testing.T) {
	ctx := context.Background()
	repo := users.NewInMemoryRepository()
	svc, _, _ := newTestService(t, repo)
	signup(t, svc, "a@example.com", "p1")

	tests := []struct {
		name    string
		mutate  func(*UpdateProfileInput) *UpdateProfileInput
		wantErr error
	}{
		{name: "nil body", mutate: func(*UpdateProfileInput) *UpdateProfileInput { return nil }, wantErr: common.ErrorInvalidInput},
		{name: "missing phone", mutate: func(in *UpdateProfileInput) *UpdateProfileInput { in.Phone = ""; return in }, wantErr: common.ErrorInvalidInput},
		{name: "missing confirmation", mutate: func(in *UpdateProfileInput) *UpdateProfileInput { in.ConfirmNewPassword = ""; return in }, wantErr: common.ErrorInvalidInput},
		{name: "unknown email", mutate: func(in *UpdateProfileInput) *UpdateProfileInput { in.Email = "b@example.com"; return in }, wantErr: common.ErrorUnauthorized},
		{name: "wrong password", mutate: func(in *UpdateProfileInput) *UpdateProfileInput { in.Password = "nope"; return in }, wantErr: common.ErrorUnauthorized},
		{name: "new password over 72 bytes", mutate: func(in *UpdateProfileInput) *UpdateProfileInput {
			in.NewPassword = strings.Repeat("x", 73)
			in.ConfirmNewPassword = in.NewPassword
			return in
		}, wantErr: common.ErrorInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.UpdateProfile(ctx, tt.mutate(validUpdate()))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// nothing changed
	_, err := svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "p1"})
	assert.NoError(t, err)
}

func TestUpdateProfile_Confirmation(t *testing.T) {
	ctx := context.Background()
	repo := users.NewInMemoryRepository()
	svc, _, _ := newTestService(t, repo)
	signup(t, svc, "a@example.com", "p1")

	in := validUpdate()
	in.ConfirmNewPassword = "different"

	svc.enforcePasswordConfirmation = true
	assert.ErrorIs(t, svc.UpdateProfile(ctx, in), common.ErrorInvalidInput)

	svc.enforcePasswordConfirmation = false
	require.NoError(t, svc.UpdateProfile(ctx, in))
	_, err := svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "p2"})
	assert.NoError(t, err)
}

func TestUpdateProfile_StoreFailure(t *testing.T) {
	ctx := context.Background()
	inner := users.NewInMemoryRepository()
	seed, _, _ := newTestService(t, inner)
	signup(t, seed, "a@example.com", "p1")

	svc, _, _ := newTestService(t, &failingRepo{Repository: inner, updateErr: errors.New("throttled")})
	assert.ErrorIs(t, svc.UpdateProfile(ctx, validUpdate()), common.ErrorInternal)

	svc, _, _ = newTestService(t, &failingRepo{Repository: inner, updateErr: common.ErrorNotFound})
	assert.ErrorIs(t, svc.UpdateProfile(ctx, validUpdate()), common.ErrorUnauthorized)
}

func TestGetUserData(t *testing.T) {
	ctx := context.Background()
	repo := users.NewInMemoryRepository()
	svc, _, _ := newTestService(t, repo)
	svc.newID = func() string { return "id-7" }
	signup(t, svc, "a@example.com", "p1")

	byEmail, err := svc.GetUserData(ctx, UserQuery{Email: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "id-7", byEmail.UUID)
	assert.NotEmpty(t, byEmail.Password)

	byID, err := svc.GetUserData(ctx, UserQuery{UserID: "id-7"})
	require.NoError(t, err)
	assert.Equal(t, byEmail, byID)

	_, err = svc.GetUserData(ctx, UserQuery{Email: "b@example.com"})
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = svc.GetUserData(ctx, UserQuery{UserID: "nope"})
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = svc.GetUserData(ctx, UserQuery{})
	assert.ErrorIs(t, err, common.ErrorInvalidInput)

	broken, _, _ := newTestService(t, &failingRepo{Repository: repo, scanErr: errors.New("x")})
	_, err = broken.GetUserData(ctx, UserQuery{UserID: "id-7"})
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestAddReview(t *testing.T) {
	ctx := context.Background()
	repo := users.NewInMemoryRepository()
	svc, n, cfg := newTestService(t, repo)
	signup(t, svc, "a@example.com", "p1")
	svc.now = func() time.Time { return time.Date(2024, 3, 5, 1, 2, 3, 0, time.UTC) }

	in := &ReviewInput{Email: "a@example.com", ProdID: "P1", Title: "Good", Rating: 4.5, Description: "nice", FullName: "Ada L", ProdName: "Widget"}
	require.NoError(t, svc.AddReview(ctx, in))

	u, err := repo.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.Contains(t, u.Reviews, "P1")
	r := u.Reviews["P1"]
	assert.Equal(t, "Good", r.Title)
	assert.Equal(t, 4.5, r.Rating)
	assert.Equal(t, "Widget", r.ProdName)
	// 01:02:03 UTC is 12:02:03 in Sydney during daylight saving
	assert.Equal(t, "05/03/2024, 12:02:03 AEDT", r.Date)

	// resubmission replaces, other products untouched
	require.NoError(t, svc.AddReview(ctx, &ReviewInput{Email: "a@example.com", ProdID: "P2", Title: "Other"}))
	require.NoError(t, svc.AddReview(ctx, &ReviewInput{Email: "a@example.com", ProdID: "P1", Title: "Changed"}))

	u, err = repo.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Len(t, u.Reviews, 2)
	assert.Equal(t, "Changed", u.Reviews["P1"].Title)
	assert.Equal(t, "Other", u.Reviews["P2"].Title)

	types := n.detailTypes()
	assert.Equal(t, cfg.ReviewAddedDetailType, types[len(types)-1])
	assert.Same(t, in, n.events[2].Detail)
}

func TestAddReview_Errors(t *testing.T) {
	ctx := context.Background()
	repo := users.NewInMemoryRepository()
	svc, n, _ := newTestService(t, repo)
	signup(t, svc, "a@example.com", "p1")
	published := len(n.detailTypes())

	assert.ErrorIs(t, svc.AddReview(ctx, nil), common.ErrorInvalidInput)
	assert.ErrorIs(t, svc.AddReview(ctx, &ReviewInput{Email: "a@example.com"}), common.ErrorInvalidInput)
	assert.ErrorIs(t, svc.AddReview(ctx, &ReviewInput{Email: "b@example.com", ProdID: "P1"}), common.ErrorNotFound)

	broken, _, _ := newTestService(t, &failingRepo{Repository: repo, updateErr: errors.New("x")})
	assert.ErrorIs(t, broken.AddReview(ctx, &ReviewInput{Email: "a@example.com", ProdID: "P1"}), common.ErrorInternal)

	assert.Len(t, n.detailTypes(), published)
}
