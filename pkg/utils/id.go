package utils

// GenerateSessionID generates a unique session ID
func GenerateSessionID() string {
	return GenerateID("session")
}

// GenerateParticipantID generates a unique participant ID
func GenerateParticipantID() string {
	return GenerateID("participant")
}
