package sinks

import (
	"sync"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	"telecall/pkg/config"

	"go.uber.org/zap"
)

// NewFromConfig builds the sink registry for the configured kind. The
// udp kind hands every remote participant a forwarder with its own
// video/audio port pair out of the configured range.
func NewFromConfig(cfg *config.Config, logger *zap.SugaredLogger) *Registry {
	if cfg.Sinks.Kind != "udp" {
		return NewProvisioningRegistry(func(domain.ParticipantID) ports.MediaSink {
			return NullSink{}
		})
	}

	alloc := &portAllocator{
		next: cfg.Sinks.PortRangeMin,
		max:  cfg.Sinks.PortRangeMax,
	}

	return NewProvisioningRegistry(func(id domain.ParticipantID) ports.MediaSink {
		videoPort, audioPort, ok := alloc.nextPair()
		if !ok {
			logger.Warnw("sink port range exhausted, discarding media", "participant_id", id)
			return NullSink{}
		}
		logger.Infow("provisioned udp sink",
			"participant_id", id, "video_port", videoPort, "audio_port", audioPort)
		return NewUDPForwarder(cfg.Sinks.ForwardBase, videoPort, audioPort, logger)
	})
}

type portAllocator struct {
	mu   sync.Mutex
	next int
	max  int
}

func (a *portAllocator) nextPair() (video, audio int, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.next+1 > a.max {
		return 0, 0, false
	}
	video, audio = a.next, a.next+1
	a.next += 2
	return video, audio, true
}
