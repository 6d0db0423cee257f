package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/dbx"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// columns maps stored attribute names to users table columns.
var columns = map[string]string{
	models.FieldEmail:     "email",
	models.FieldPassword:  "password",
	models.FieldUUID:      "uuid",
	models.FieldFirstName: "first_name",
	models.FieldLastName:  "last_name",
	models.FieldPhone:     "phone",
	models.FieldAddress:   "address",
	models.FieldIsAdmin:   "is_admin",
	models.FieldReviews:   "reviews",
}

const selectUsers = `SELECT email, password, uuid, first_name, last_name, phone, address, is_admin, reviews FROM users`

// PostgresRepository stores users in the "users" table. Reviews live in a
// JSONB column and are always written whole.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var reviews []byte
	if err := row.Scan(&user.Email, &user.Password, &user.UUID, &user.FirstName, &user.LastName,
		&user.Phone, &user.Address, &user.IsAdmin, &reviews); err != nil {
		return nil, err
	}
	user.Reviews = map[string]models.Review{}
	if len(reviews) > 0 {
		if err := json.Unmarshal(reviews, &user.Reviews); err != nil {
			return nil, fmt.Errorf("decode reviews: %w", err)
		}
	}
	return user, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, selectUsers+` WHERE email = $1`, email)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) ScanByField(ctx context.Context, field string, value any) ([]*models.User, error) {
	column, ok := columns[field]
	if !ok || field == models.FieldReviews {
		return nil, fmt.Errorf("%w: %s", common.ErrorInvalidField, field)
	}

	rows, err := r.db.QueryContext(ctx, selectUsers+` WHERE `+column+` = $1 ORDER BY email`, value)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Put(ctx context.Context, user *models.User) error {
	reviews, err := marshalReviews(user.Reviews)
	if err != nil {
		return err
	}

	query :=
		`INSERT INTO users (email, password, uuid, first_name, last_name, phone, address, is_admin, reviews)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.ExecContext(ctx, query,
		user.Email, user.Password, user.UUID, user.FirstName, user.LastName,
		user.Phone, user.Address, user.IsAdmin, reviews)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateFields(ctx context.Context, email string, fields map[string]any) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: nothing to update", common.ErrorInvalidField)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if !isUpdatable(name) {
			return fmt.Errorf("%w: %s", common.ErrorInvalidField, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names))
	args := make([]any, 0, len(names)+1)
	for i, name := range names {
		value := fields[name]
		if name == models.FieldReviews {
			reviews, ok := value.(map[string]models.Review)
			if !ok {
				return fmt.Errorf("%w: %s has type %T", common.ErrorInvalidField, name, value)
			}
			b, err := marshalReviews(reviews)
			if err != nil {
				return err
			}
			value = b
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", columns[name], i+1))
		args = append(args, value)
	}
	args = append(args, email)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE email = $%d`, strings.Join(sets, ", "), len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func marshalReviews(reviews map[string]models.Review) ([]byte, error) {
	if reviews == nil {
		reviews = map[string]models.Review{}
	}
	b, err := json.Marshal(reviews)
	if err != nil {
		return nil, fmt.Errorf("encode reviews: %w", err)
	}
	return b, nil
}
