package services

import (
	"context"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	apperrors "telecall/pkg/errors"

	"go.uber.org/zap"
)

// Acquisition warnings shown to the user on partial failure. Each
// branch has its own message; support triage depends on them being
// distinguishable.
const (
	warnCameraUnavailable = "camera unavailable, continuing audio-only"
	warnMicUnavailable    = "microphone unavailable, continuing video-only"
)

// AcquireResult carries the acquired tracks plus any non-fatal warnings
// recorded along the way.
type AcquireResult struct {
	Tracks   domain.LocalTracks
	Warnings []string
}

// AcquireService turns probed device capabilities into local tracks,
// degrading step by step instead of failing outright.
type AcquireService struct {
	source ports.TrackSource
	logger *zap.SugaredLogger
}

func NewAcquireService(source ports.TrackSource, logger *zap.SugaredLogger) *AcquireService {
	return &AcquireService{
		source: source,
		logger: logger,
	}
}

// Acquire applies the capability decision table:
//
//	audio+video: try both; keep whichever succeeds, warn about the
//	             other; fail only when both fail
//	audio only:  audio or fail
//	video only:  video or fail
//	neither:     fail immediately, no source call is made
func (s *AcquireService) Acquire(ctx context.Context, caps domain.DeviceCapabilities) (AcquireResult, error) {
	if !caps.HasAudioInput && !caps.HasVideoInput {
		return AcquireResult{}, apperrors.NewNoDeviceError()
	}

	if caps.HasAudioInput && caps.HasVideoInput {
		return s.acquireBoth(ctx)
	}

	if caps.HasAudioInput {
		audio, err := s.source.AcquireAudio(ctx)
		if err != nil {
			s.logger.Errorw("audio acquisition failed with no video fallback", "error", err)
			return AcquireResult{}, apperrors.NewMediaAcquisitionError(
				"microphone unavailable, it may be in use by another application", err)
		}
		return AcquireResult{Tracks: domain.LocalTracks{Audio: audio}}, nil
	}

	video, err := s.source.AcquireVideo(ctx)
	if err != nil {
		s.logger.Errorw("video acquisition failed with no audio fallback", "error", err)
		return AcquireResult{}, apperrors.NewMediaAcquisitionError(
			"camera unavailable, it may be in use by another application", err)
	}
	return AcquireResult{Tracks: domain.LocalTracks{Video: video}}, nil
}

func (s *AcquireService) acquireBoth(ctx context.Context) (AcquireResult, error) {
	var result AcquireResult

	audio, audioErr := s.source.AcquireAudio(ctx)
	if audioErr == nil {
		result.Tracks.Audio = audio
	}

	video, videoErr := s.source.AcquireVideo(ctx)
	if videoErr == nil {
		result.Tracks.Video = video
	}

	switch {
	case audioErr == nil && videoErr == nil:
		return result, nil

	case audioErr == nil:
		// Video failed, audio carried the call. Non-fatal.
		s.logger.Warnw("video acquisition failed, continuing audio-only", "error", videoErr)
		result.Warnings = append(result.Warnings, warnCameraUnavailable)
		return result, nil

	case videoErr == nil:
		s.logger.Warnw("audio acquisition failed, continuing video-only", "error", audioErr)
		result.Warnings = append(result.Warnings, warnMicUnavailable)
		return result, nil

	default:
		s.logger.Errorw("both audio and video acquisition failed",
			"audio_error", audioErr, "video_error", videoErr)
		return AcquireResult{}, apperrors.NewMediaAcquisitionError(
			"camera and microphone are unavailable, check permissions and close other apps using them", audioErr)
	}
}
