package domain

import "errors"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionEnded      = errors.New("session already ended")
	ErrSessionSuperseded = errors.New("session superseded before join completed")
	ErrHandleDisposed    = errors.New("session handle disposed")
	ErrNoDevice          = errors.New("no audio or video input device present")
	ErrTracksHeld        = errors.New("local tracks already acquired for this session")
	ErrSinkNotFound      = errors.New("no media sink registered for participant")
)
