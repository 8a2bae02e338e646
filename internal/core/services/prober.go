package services

import (
	"context"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"

	"go.uber.org/zap"
)

// ProbeService computes device capabilities ahead of track acquisition
// so the acquirer can pick a code path instead of guessing from
// exceptions. Probe never fails: on enumeration error it reports no
// devices and leaves policy to the caller.
type ProbeService struct {
	enumerator ports.DeviceEnumerator
	logger     *zap.SugaredLogger
}

func NewProbeService(enumerator ports.DeviceEnumerator, logger *zap.SugaredLogger) *ProbeService {
	return &ProbeService{
		enumerator: enumerator,
		logger:     logger,
	}
}

func (s *ProbeService) Probe(ctx context.Context) domain.DeviceCapabilities {
	devices, err := s.enumerator.Enumerate(ctx)
	if err != nil {
		s.logger.Warnw("device enumeration failed, assuming no devices", "error", err)
		return domain.DeviceCapabilities{}
	}

	var caps domain.DeviceCapabilities
	for _, d := range devices {
		switch d.Kind {
		case domain.MediaAudio:
			caps.HasAudioInput = true
		case domain.MediaVideo:
			caps.HasVideoInput = true
		}
	}
	return caps
}
