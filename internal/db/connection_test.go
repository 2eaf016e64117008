package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRequiresURL(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.EqualError(t, err, "database URL is not set")
}

func TestOpenInvalidURL(t *testing.T) {
	_, err := Open(context.Background(), "postgres://%zz")
	require.Error(t, err)
}

func TestOpenUnreachable(t *testing.T) {
	_, err := Open(context.Background(), "postgres://user:pw@127.0.0.1:1/docquiz?sslmode=disable&connect_timeout=1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping database")
}

func TestNewSessionStoreRequiresSecret(t *testing.T) {
	_, err := NewSessionStore(nil, nil)
	assert.EqualError(t, err, "session secret is empty")
}
