// Package users declares the credential store contract and its backends:
// DynamoDB, PostgreSQL and an in-memory map.
package users

import (
	"context"

	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
)

// Repository is the credential store adapter. Records are keyed by email.
// Implementations do not retry; any remote failure is returned as-is
// (wrapped) for the caller to classify.
type Repository interface {
	// GetByEmail returns the record stored under email, or common.ErrorNotFound.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// ScanByField returns every record whose field equals value. No match is
	// an empty result, not an error.
	ScanByField(ctx context.Context, field string, value any) ([]*models.User, error)

	// Put stores a new record. An existing record with the same email yields
	// common.ErrorAlreadyExists and is left untouched.
	Put(ctx context.Context, user *models.User) error

	// UpdateFields overwrites the named attributes of the record under email.
	// A missing record yields common.ErrorNotFound. Email and uuid are
	// immutable and rejected with common.ErrorInvalidField.
	UpdateFields(ctx context.Context, email string, fields map[string]any) error
}

// updatableFields lists the attributes UpdateFields accepts.
var updatableFields = map[string]struct{}{
	models.FieldPassword:  {},
	models.FieldFirstName: {},
	models.FieldLastName:  {},
	models.FieldPhone:     {},
	models.FieldAddress:   {},
	models.FieldIsAdmin:   {},
	models.FieldReviews:   {},
}

func isUpdatable(field string) bool {
	_, ok := updatableFields[field]
	return ok
}
