package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	// IDRegex validates appointment and session ID formats
	IDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// ParticipantIDRegex validates participant ID format
	ParticipantIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
)

// ValidateAppointmentID validates an appointment identifier
func ValidateAppointmentID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("appointment id is required")
	}
	if len(id) > 64 {
		return fmt.Errorf("appointment id is too long (max 64 characters)")
	}
	if !IDRegex.MatchString(id) {
		return fmt.Errorf("appointment id contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidateRoomContext validates a free-form room context reference
func ValidateRoomContext(ctx string) error {
	ctx = strings.TrimSpace(ctx)
	if ctx == "" {
		return fmt.Errorf("room context is required")
	}
	if len(ctx) > 128 {
		return fmt.Errorf("room context is too long (max 128 characters)")
	}
	if !IDRegex.MatchString(ctx) {
		return fmt.Errorf("room context contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidateSessionID validates a session identifier
func ValidateSessionID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	if len(id) > 80 {
		return fmt.Errorf("session id is too long (max 80 characters)")
	}
	if !IDRegex.MatchString(id) {
		return fmt.Errorf("session id contains invalid characters")
	}
	return nil
}

// ValidateParticipantID validates a participant identifier
func ValidateParticipantID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("participant id is required")
	}
	if len(id) > 128 {
		return fmt.Errorf("participant id is too long (max 128 characters)")
	}
	if !ParticipantIDRegex.MatchString(id) {
		return fmt.Errorf("participant id contains invalid characters")
	}
	return nil
}

// ValidateRoomIdentifier validates a provider room identifier: either a
// room URL (callobject) or a plain channel name (sfu).
func ValidateRoomIdentifier(room string) error {
	room = strings.TrimSpace(room)
	if room == "" {
		return fmt.Errorf("room identifier is required")
	}
	if strings.Contains(room, "://") {
		u, err := url.Parse(room)
		if err != nil {
			return fmt.Errorf("invalid room url: %w", err)
		}
		if u.Scheme != "https" && u.Scheme != "wss" {
			return fmt.Errorf("room url must use https or wss scheme")
		}
		if u.Host == "" {
			return fmt.Errorf("room url has no host")
		}
		return nil
	}
	if len(room) > 128 {
		return fmt.Errorf("channel name is too long (max 128 characters)")
	}
	if !IDRegex.MatchString(room) {
		return fmt.Errorf("channel name contains invalid characters")
	}
	return nil
}
