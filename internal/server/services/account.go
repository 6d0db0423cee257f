// Package services contains server-side business logic. AccountService is
// the session/auth flow controller: it validates requests, checks
// credentials, mints tokens and applies state changes to the credential
// store. It keeps no state between calls.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/logging"
	"github.com/dmitrijs2005/gophaccounts/internal/server/auth"
	"github.com/dmitrijs2005/gophaccounts/internal/server/config"
	"github.com/dmitrijs2005/gophaccounts/internal/server/events"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/users"
	"github.com/google/uuid"
)

// reviewDateLayout renders review timestamps as day/month/year, 24h clock
// and zone abbreviation, e.g. "17/10/2026, 14:03:22 AEDT".
const reviewDateLayout = "02/01/2006, 15:04:05 MST"

// Session is the result of a successful login or refresh. RefreshToken is
// empty after a refresh: refresh tokens are not rotated.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         models.Profile
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

type UpdateProfileInput struct {
	Email              string `json:"email"`
	Password           string `json:"password"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
	FirstName          string `json:"firstName"`
	LastName           string `json:"lastName"`
	Phone              string `json:"phone"`
	Address            string `json:"address"`
}

// UserQuery selects a user by email (direct key lookup) or by identifier.
type UserQuery struct {
	Email  string
	UserID string
}

// ReviewInput is a review submission. It is also the detail of the
// review-added event.
type ReviewInput struct {
	Email       string  `json:"email"`
	ProdID      string  `json:"prodId"`
	Title       string  `json:"title"`
	Rating      float64 `json:"rating"`
	Description string  `json:"description"`
	FullName    string  `json:"fullName"`
	ImageURL    string  `json:"imageURL"`
	ProdName    string  `json:"prodName"`
}

type eventSettings struct {
	accountSource   string
	cartDetailType  string
	orderDetailType string
	reviewSource    string
	reviewAdded     string
}

// AccountService implements the account flows.
type AccountService struct {
	users                       users.Repository
	tokens                      *auth.Issuer
	notifier                    events.Notifier
	logger                      logging.Logger
	bcryptCost                  int
	enforcePasswordConfirmation bool
	reviewLocation              *time.Location
	events                      eventSettings
	now                         func() time.Time
	newID                       func() string
}

// NewAccountService wires the flow controller from its collaborators and
// the process-wide configuration.
func NewAccountService(repo users.Repository, tokens *auth.Issuer, notifier events.Notifier, logger logging.Logger, cfg *config.Config) (*AccountService, error) {
	loc, err := time.LoadLocation(cfg.ReviewTimezone)
	if err != nil {
		return nil, fmt.Errorf("review timezone: %w", err)
	}
	return &AccountService{
		users:                       repo,
		tokens:                      tokens,
		notifier:                    notifier,
		logger:                      logger.With("module", "accounts"),
		bcryptCost:                  cfg.BcryptCost,
		enforcePasswordConfirmation: cfg.EnforcePasswordConfirmation,
		reviewLocation:              loc,
		events: eventSettings{
			accountSource:   cfg.AccountEventSource,
			cartDetailType:  cfg.CartInitDetailType,
			orderDetailType: cfg.OrderInitDetailType,
			reviewSource:    cfg.ReviewEventSource,
			reviewAdded:     cfg.ReviewAddedDetailType,
		},
		now:   time.Now,
		newID: uuid.NewString,
	}, nil
}

// Login verifies email and password and issues an access/refresh token pair.
// Unknown email and wrong password both yield common.ErrorUnauthorized.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	if in.Email == "" || in.Password == "" {
		return nil, common.ErrorInvalidInput
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, s.internal(ctx, "login", err)
	}

	if err := s.checkPassword(ctx, user, in.Password); err != nil {
		return nil, err
	}

	access, err := s.tokens.IssueAccessToken(user.UUID)
	if err != nil {
		return nil, s.internal(ctx, "issue access token", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(user.UUID)
	if err != nil {
		return nil, s.internal(ctx, "issue refresh token", err)
	}

	s.logger.Info(ctx, "user logged in", "email", user.Email)
	return &Session{AccessToken: access, RefreshToken: refresh, User: user.Sanitize()}, nil
}

// Refresh exchanges a valid refresh token for a new access token. A missing
// token or an unresolvable user yields common.ErrorUnauthorized; a tampered
// or expired token yields common.ErrorForbidden.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, common.ErrorUnauthorized
	}

	claims, err := s.tokens.Verify(refreshToken, auth.RefreshToken)
	if err != nil {
		s.logger.Debug(ctx, "refresh token rejected", "error", err)
		return nil, common.ErrorForbidden
	}

	user, err := s.GetUserData(ctx, UserQuery{UserID: claims.UserID()})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}

	access, err := s.tokens.IssueAccessToken(user.UUID)
	if err != nil {
		return nil, s.internal(ctx, "issue access token", err)
	}

	return &Session{AccessToken: access, User: user.Sanitize()}, nil
}

// Logout reports whether there was a refresh token to clear. Tokens are not
// revoked server-side; clearing the cookie is the caller's job.
func (s *AccountService) Logout(ctx context.Context, refreshToken string) bool {
	if refreshToken == "" {
		return false
	}
	s.logger.Info(ctx, "refresh cookie cleared")
	return true
}

// Signup creates a user. The cart and order initialization events go out
// before the record is written and their failures are only logged; the
// write itself is conditional, so a concurrent duplicate signup also fails
// with common.ErrorAlreadyExists.
func (s *AccountService) Signup(ctx context.Context, in *SignupInput) error {
	if in == nil || in.Email == "" || in.Password == "" {
		return common.ErrorInvalidInput
	}

	_, err := s.users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return common.ErrorAlreadyExists
	case !errors.Is(err, common.ErrorNotFound):
		return s.internal(ctx, "signup lookup", err)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return s.hashFailure(ctx, err)
	}

	user := &models.User{
		Email:     in.Email,
		Password:  hash,
		UUID:      s.newID(),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		Address:   in.Address,
		IsAdmin:   false,
		Reviews:   map[string]models.Review{},
	}

	detail := map[string]string{"email": in.Email}
	s.publish(ctx, events.Event{Source: s.events.accountSource, DetailType: s.events.cartDetailType, Detail: detail})
	s.publish(ctx, events.Event{Source: s.events.accountSource, DetailType: s.events.orderDetailType, Detail: detail})

	if err := s.users.Put(ctx, user); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return common.ErrorAlreadyExists
		}
		return s.internal(ctx, "signup put", err)
	}

	s.logger.Info(ctx, "user signed up", "email", in.Email)
	return nil
}

// UpdateProfile replaces the password and contact fields after checking the
// current password. ConfirmNewPassword is required but only compared with
// NewPassword when enforce_password_confirmation is on.
func (s *AccountService) UpdateProfile(ctx context.Context, in *UpdateProfileInput) error {
	if in == nil || in.Email == "" || in.Password == "" || in.NewPassword == "" ||
		in.ConfirmNewPassword == "" || in.FirstName == "" || in.LastName == "" ||
		in.Phone == "" || in.Address == "" {
		return common.ErrorInvalidInput
	}
	if s.enforcePasswordConfirmation && in.NewPassword != in.ConfirmNewPassword {
		return common.ErrorInvalidInput
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorUnauthorized
		}
		return s.internal(ctx, "update lookup", err)
	}

	if err := s.checkPassword(ctx, user, in.Password); err != nil {
		return err
	}

	hash, err := auth.HashPassword(in.NewPassword, s.bcryptCost)
	if err != nil {
		return s.hashFailure(ctx, err)
	}

	err = s.users.UpdateFields(ctx, in.Email, map[string]any{
		models.FieldPassword:  hash,
		models.FieldFirstName: in.FirstName,
		models.FieldLastName:  in.LastName,
		models.FieldAddress:   in.Address,
		models.FieldPhone:     in.Phone,
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorUnauthorized
		}
		return s.internal(ctx, "update profile", err)
	}

	s.logger.Info(ctx, "profile updated", "email", in.Email)
	return nil
}

// GetUserData returns the raw stored record, password hash included.
// Callers must sanitize before exposing it. Lookup by identifier scans the
// store unless a secondary index is configured.
func (s *AccountService) GetUserData(ctx context.Context, q UserQuery) (*models.User, error) {
	switch {
	case q.Email != "":
		user, err := s.users.GetByEmail(ctx, q.Email)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil, common.ErrorNotFound
			}
			return nil, s.internal(ctx, "get user", err)
		}
		return user, nil

	case q.UserID != "":
		found, err := s.users.ScanByField(ctx, models.FieldUUID, q.UserID)
		if err != nil {
			return nil, s.internal(ctx, "scan users", err)
		}
		if len(found) == 0 {
			return nil, common.ErrorNotFound
		}
		return found[0], nil

	default:
		return nil, common.ErrorInvalidInput
	}
}

// AddReview stores the review under its product id in the user's reviews
// mapping, replacing any previous review for that product, then announces
// it. The whole mapping is written back: concurrent submissions for the
// same user race and the last write wins.
func (s *AccountService) AddReview(ctx context.Context, in *ReviewInput) error {
	if in == nil || in.Email == "" || in.ProdID == "" {
		return common.ErrorInvalidInput
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return s.internal(ctx, "review lookup", err)
	}

	reviews := user.Reviews
	if reviews == nil {
		reviews = map[string]models.Review{}
	}
	reviews[in.ProdID] = models.Review{
		Title:       in.Title,
		Rating:      in.Rating,
		Description: in.Description,
		Date:        s.now().In(s.reviewLocation).Format(reviewDateLayout),
		FullName:    in.FullName,
		ImageURL:    in.ImageURL,
		ProdName:    in.ProdName,
	}

	if err := s.users.UpdateFields(ctx, in.Email, map[string]any{models.FieldReviews: reviews}); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return s.internal(ctx, "store review", err)
	}

	s.publish(ctx, events.Event{Source: s.events.reviewSource, DetailType: s.events.reviewAdded, Detail: in})

	s.logger.Info(ctx, "review stored", "email", in.Email, "prod_id", in.ProdID)
	return nil
}

func (s *AccountService) checkPassword(ctx context.Context, user *models.User, password string) error {
	err := auth.CheckPassword(user.Password, password)
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrorUnauthorized) {
		return common.ErrorUnauthorized
	}
	return s.internal(ctx, "check password", err)
}

func (s *AccountService) hashFailure(ctx context.Context, err error) error {
	if errors.Is(err, common.ErrorInvalidInput) {
		return common.ErrorInvalidInput
	}
	return s.internal(ctx, "hash password", err)
}

// publish sends e and only logs a failure.
func (s *AccountService) publish(ctx context.Context, e events.Event) {
	if err := s.notifier.Publish(ctx, e); err != nil {
		s.logger.Warn(ctx, "event not delivered", "detail_type", e.DetailType, "error", err)
	}
}

func (s *AccountService) internal(ctx context.Context, op string, err error) error {
	s.logger.Error(ctx, op+" failed", "error", err)
	return fmt.Errorf("%w: %s: %v", common.ErrorInternal, op, err)
}
