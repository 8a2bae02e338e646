package providers

import (
	"fmt"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	"telecall/internal/infrastructure/providers/callobject"
	"telecall/internal/infrastructure/providers/sfu"
	"telecall/pkg/config"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

// New builds the configured provider binding. All provider selection
// happens here; nothing else in the tree branches on the provider kind.
func New(cfg *config.Config, logger *zap.SugaredLogger) (ports.SessionClient, error) {
	iceServers := make([]webrtc.ICEServer, 0, len(cfg.Provider.ICEServers))
	for _, s := range cfg.Provider.ICEServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	switch domain.ProviderKind(cfg.Provider.Kind) {
	case domain.ProviderCallObject:
		return callobject.New(callobject.Config{
			ICEServers:        iceServers,
			JoinTimeout:       cfg.Provider.JoinTimeout,
			ReconnectAttempts: cfg.Provider.ReconnectAttempts,
		}, logger), nil

	case domain.ProviderSFU:
		return sfu.New(sfu.Config{
			GatewayURL:        cfg.Provider.GatewayURL,
			ICEServers:        iceServers,
			JoinTimeout:       cfg.Provider.JoinTimeout,
			SubscribeTimeout:  cfg.Provider.SubscribeTimeout,
			ReconnectAttempts: cfg.Provider.ReconnectAttempts,
		}, logger), nil

	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Provider.Kind)
	}
}
