package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/logging"
	"github.com/dmitrijs2005/gophaccounts/internal/server/cloud"
	"github.com/dmitrijs2005/gophaccounts/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.StoreBackend = config.StoreBackendMemory
	c.EndpointAddrHTTP = "127.0.0.1:0"
	return c
}

func TestNeedsAWS(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   bool
	}{
		{name: "memory only", mutate: func(*config.Config) {}, want: false},
		{name: "dynamodb", mutate: func(c *config.Config) { c.StoreBackend = config.StoreBackendDynamoDB }, want: true},
		{name: "event bus", mutate: func(c *config.Config) { c.EventBusName = "bus" }, want: true},
		{name: "bucket", mutate: func(c *config.Config) { c.S3Bucket = "b" }, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := memoryConfig()
			tt.mutate(c)
			assert.Equal(t, tt.want, needsAWS(c))
		})
	}
}

func TestNewApp_CloudFailure(t *testing.T) {
	orig := loadCloudClients
	t.Cleanup(func() { loadCloudClients = orig })
	loadCloudClients = func(ctx context.Context, c *config.Config) (*cloud.Clients, error) {
		return nil, errors.New("no region")
	}

	c := memoryConfig()
	c.EventBusName = "bus"
	_, err := newApp(context.Background(), c, logging.NewDiscardLogger())
	require.Error(t, err)
}

func TestNewApp_UnknownBackend(t *testing.T) {
	c := memoryConfig()
	c.StoreBackend = "cassandra"
	_, err := newApp(context.Background(), c, logging.NewDiscardLogger())
	require.Error(t, err)
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	app, err := newApp(context.Background(), memoryConfig(), logging.NewDiscardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}
