package repomanager

import (
	"context"

	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/users"
)

// DynamoDBRepositoryManager serves a table provisioned outside the service,
// so it has no migrations and nothing to close.
type DynamoDBRepositoryManager struct {
	users users.Repository
}

func NewDynamoDBRepositoryManager(client users.DynamoDBAPI, table, idIndex string) *DynamoDBRepositoryManager {
	return &DynamoDBRepositoryManager{users: users.NewDynamoDBRepository(client, table, idIndex)}
}

func (m *DynamoDBRepositoryManager) Users() users.Repository             { return m.users }
func (m *DynamoDBRepositoryManager) RunMigrations(context.Context) error { return nil }
func (m *DynamoDBRepositoryManager) Close() error                        { return nil }
