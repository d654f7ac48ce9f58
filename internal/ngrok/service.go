package ngrok

import (
	"context"
	"errors"
	"fmt"

	"musiclib/internal/config"
	"musiclib/internal/logging"

	"github.com/sirupsen/logrus"
	"golang.ngrok.com/ngrok/v2"
)

// ErrMissingAuthToken is returned when the tunnel is enabled without a token.
var ErrMissingAuthToken = errors.New("ngrok auth token not found; set NGROK_AUTHTOKEN or ngrok.auth_token")

// Service forwards a public ngrok endpoint to the local HTTP server.
type Service struct {
	config config.NgrokConfig
	agent  ngrok.Agent
	tunnel ngrok.EndpointForwarder
	logger *logrus.Logger
}

// NewService returns nil when the tunnel is disabled. The auth token comes
// from the config, which already folds in NGROK_AUTHTOKEN.
func NewService(cfg config.NgrokConfig, logger *logrus.Logger) (*Service, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg.AuthToken == "" {
		return nil, ErrMissingAuthToken
	}

	agent, err := ngrok.NewAgent(ngrok.WithAuthtoken(cfg.AuthToken))
	if err != nil {
		return nil, fmt.Errorf("failed to create ngrok agent: %w", err)
	}

	return &Service{
		config: cfg,
		agent:  agent,
		logger: logger,
	}, nil
}

// trafficPolicy returns the edge OAuth policy, or "" when disabled.
func trafficPolicy(cfg config.NgrokConfig) string {
	if !cfg.EnableAuth {
		return ""
	}
	return fmt.Sprintf(`
on_http_request:
  - actions:
      - type: oauth
        config:
          provider: %s
`, cfg.AuthProvider)
}

// StartTunnel opens the endpoint and forwards it to localAddress.
func (s *Service) StartTunnel(ctx context.Context, localAddress string) error {
	if s == nil {
		return nil
	}

	s.logger.Info("Starting ngrok tunnel")

	var endpointOpts []ngrok.EndpointOption
	if s.config.Domain != "" {
		endpointOpts = append(endpointOpts, ngrok.WithURL(s.config.Domain))
	}
	if policy := trafficPolicy(s.config); policy != "" {
		endpointOpts = append(endpointOpts, ngrok.WithTrafficPolicy(policy))
	}

	tunnel, err := s.agent.Forward(ctx, ngrok.WithUpstream(localAddress), endpointOpts...)
	if err != nil {
		return fmt.Errorf("failed to create ngrok tunnel: %w", err)
	}
	s.tunnel = tunnel

	s.logger.WithFields(logrus.Fields{
		"public_url": tunnel.URL().String(),
		"upstream":   localAddress,
		"edge_auth":  s.config.EnableAuth,
	}).Info("Ngrok tunnel active")
	return nil
}

// PublicURL returns the tunnel URL, or "" when no tunnel is running.
func (s *Service) PublicURL() string {
	if s == nil || s.tunnel == nil {
		return ""
	}
	return s.tunnel.URL().String()
}

// Stop closes the tunnel.
func (s *Service) Stop() error {
	if s == nil || s.tunnel == nil {
		return nil
	}
	s.logger.Info("Stopping ngrok tunnel")
	return s.tunnel.Close()
}
