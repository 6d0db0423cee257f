// Package httpapi is the HTTP boundary of the account service: routing,
// request decoding, response envelopes and the refresh-token cookie.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/gophaccounts/internal/logging"
	"github.com/dmitrijs2005/gophaccounts/internal/server/auth"
	"github.com/dmitrijs2005/gophaccounts/internal/server/config"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
	"github.com/dmitrijs2005/gophaccounts/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

// AccountService is the flow controller the handlers drive.
type AccountService interface {
	Login(ctx context.Context, in services.LoginInput) (*services.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*services.Session, error)
	Logout(ctx context.Context, refreshToken string) bool
	Signup(ctx context.Context, in *services.SignupInput) error
	UpdateProfile(ctx context.Context, in *services.UpdateProfileInput) error
	GetUserData(ctx context.Context, q services.UserQuery) (*models.User, error)
	AddReview(ctx context.Context, in *services.ReviewInput) error
}

// ImageService presigns review image transfers.
type ImageService interface {
	PresignUpload(ctx context.Context) (*services.ImageUpload, error)
	PresignDownload(ctx context.Context, key string) (string, error)
}

// TokenVerifier checks access tokens for protected routes.
type TokenVerifier interface {
	Verify(token string, class auth.TokenClass) (*auth.Claims, error)
}

type Server struct {
	address         string
	allowedOrigin   string
	refreshValidity time.Duration
	accounts        AccountService
	images          ImageService
	tokens          TokenVerifier
	logger          logging.Logger
}

// NewServer builds the HTTP server. images may be nil, in which case the
// review image routes are not mounted.
func NewServer(cfg *config.Config, l logging.Logger, accounts AccountService, images ImageService, tokens TokenVerifier) *Server {
	return &Server{
		address:         cfg.EndpointAddrHTTP,
		allowedOrigin:   cfg.AllowedOrigin,
		refreshValidity: cfg.RefreshTokenValidityDuration,
		accounts:        accounts,
		images:          images,
		tokens:          tokens,
		logger:          l.With("module", "http_server"),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(s.cors)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/users", func(r chi.Router) {
		r.Post("/", s.handleLogin)
		r.Get("/", s.handleGetUsers)
		r.Post("/signup", s.handleSignup)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/update", s.handleUpdate)
		r.Post("/reviews", s.handleAddReview)

		if s.images != nil {
			r.With(s.requireAccessToken).Post("/reviews/image", s.handlePresignUpload)
			r.With(s.requireAccessToken).Get("/reviews/image", s.handlePresignDownload)
		}
	})

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, "shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
