package users

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
)

// InMemoryRepository keeps records in a map. Values are copied on the way in
// and out so callers never share state with the store.
type InMemoryRepository struct {
	mu    sync.RWMutex
	items map[string]*models.User
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{items: make(map[string]*models.User)}
}

func (r *InMemoryRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u.Clone(), nil
}

func (r *InMemoryRepository) ScanByField(ctx context.Context, field string, value any) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.items))
	for k := range r.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]*models.User, 0)
	for _, k := range keys {
		u := r.items[k]
		v, ok := fieldValue(u, field)
		if !ok {
			return nil, fmt.Errorf("%w: %s", common.ErrorInvalidField, field)
		}
		if v == value {
			result = append(result, u.Clone())
		}
	}
	return result, nil
}

func (r *InMemoryRepository) Put(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[user.Email]; ok {
		return common.ErrorAlreadyExists
	}
	r.items[user.Email] = user.Clone()
	return nil
}

func (r *InMemoryRepository) UpdateFields(ctx context.Context, email string, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[email]
	if !ok {
		return common.ErrorNotFound
	}

	updated := u.Clone()
	for field, value := range fields {
		if err := setField(updated, field, value); err != nil {
			return err
		}
	}
	r.items[email] = updated
	return nil
}

func fieldValue(u *models.User, field string) (any, bool) {
	switch field {
	case models.FieldEmail:
		return u.Email, true
	case models.FieldPassword:
		return u.Password, true
	case models.FieldUUID:
		return u.UUID, true
	case models.FieldFirstName:
		return u.FirstName, true
	case models.FieldLastName:
		return u.LastName, true
	case models.FieldPhone:
		return u.Phone, true
	case models.FieldAddress:
		return u.Address, true
	case models.FieldIsAdmin:
		return u.IsAdmin, true
	default:
		return nil, false
	}
}

func setField(u *models.User, field string, value any) error {
	if !isUpdatable(field) {
		return fmt.Errorf("%w: %s", common.ErrorInvalidField, field)
	}

	if field == models.FieldReviews {
		reviews, ok := value.(map[string]models.Review)
		if !ok {
			return fmt.Errorf("%w: %s has type %T", common.ErrorInvalidField, field, value)
		}
		u.Reviews = make(map[string]models.Review, len(reviews))
		for k, v := range reviews {
			u.Reviews[k] = v
		}
		return nil
	}

	if field == models.FieldIsAdmin {
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%w: %s has type %T", common.ErrorInvalidField, field, value)
		}
		u.IsAdmin = b
		return nil
	}

	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w: %s has type %T", common.ErrorInvalidField, field, value)
	}
	switch field {
	case models.FieldPassword:
		u.Password = s
	case models.FieldFirstName:
		u.FirstName = s
	case models.FieldLastName:
		u.LastName = s
	case models.FieldPhone:
		u.Phone = s
	case models.FieldAddress:
		u.Address = s
	}
	return nil
}
