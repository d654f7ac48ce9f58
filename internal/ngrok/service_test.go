package ngrok

import (
	"context"
	"testing"

	"musiclib/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServiceDisabled(t *testing.T) {
	svc, err := NewService(config.NgrokConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.Nil(t, svc)

	// A nil service is usable and inert
	assert.NoError(t, svc.StartTunnel(context.Background(), "127.0.0.1:5000"))
	assert.Equal(t, "", svc.PublicURL())
	assert.NoError(t, svc.Stop())
}

func TestNewServiceRequiresToken(t *testing.T) {
	_, err := NewService(config.NgrokConfig{Enabled: true}, nil)
	assert.ErrorIs(t, err, ErrMissingAuthToken)
}

func TestTrafficPolicy(t *testing.T) {
	assert.Empty(t, trafficPolicy(config.NgrokConfig{}))

	policy := trafficPolicy(config.NgrokConfig{EnableAuth: true, AuthProvider: "github"})
	assert.Contains(t, policy, "type: oauth")
	assert.Contains(t, policy, "provider: github")
}
