// Package repomanager selects and owns the credential store backend named in
// configuration.
package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophaccounts/internal/server/cloud"
	"github.com/dmitrijs2005/gophaccounts/internal/server/config"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/users"
)

// RepositoryManager vends the users repository and manages the lifetime of
// whatever connection backs it.
type RepositoryManager interface {
	Users() users.Repository
	RunMigrations(ctx context.Context) error
	Close() error
}

// New builds the manager for cfg.StoreBackend. clients may be nil unless the
// backend is dynamodb.
func New(ctx context.Context, cfg *config.Config, clients *cloud.Clients) (RepositoryManager, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendDynamoDB:
		if clients == nil {
			return nil, fmt.Errorf("dynamodb backend needs AWS clients")
		}
		return NewDynamoDBRepositoryManager(clients.DynamoDB(), cfg.UsersTable, cfg.UsersIDIndex), nil
	case config.StoreBackendPostgres:
		return NewPostgresRepositoryManager(ctx, cfg.DatabaseDSN)
	case config.StoreBackendMemory:
		return NewInMemoryRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
