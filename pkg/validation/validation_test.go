package validation

import "testing"

func TestValidateAppointmentID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"valid", "appt-2024-0117", false},
		{"valid with underscore", "appt_42", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"invalid characters", "appt/42", true},
		{"too long", string(make([]byte, 70)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAppointmentID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAppointmentID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSessionID(t *testing.T) {
	if err := ValidateSessionID("session_a1b2c3d4e5f60718"); err != nil {
		t.Errorf("valid session id rejected: %v", err)
	}
	if err := ValidateSessionID("bad id"); err == nil {
		t.Error("session id with space should be rejected")
	}
}

func TestValidateParticipantID(t *testing.T) {
	if err := ValidateParticipantID("participant_0a1b.local"); err != nil {
		t.Errorf("valid participant id rejected: %v", err)
	}
	if err := ValidateParticipantID(""); err == nil {
		t.Error("empty participant id should be rejected")
	}
}

func TestValidateRoomIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		room    string
		wantErr bool
	}{
		{"https room url", "https://calls.example.com/room/abc", false},
		{"wss room url", "wss://calls.example.com/room/abc", false},
		{"plain channel name", "emergency-7731", false},
		{"http url rejected", "http://calls.example.com/room/abc", true},
		{"empty", "", true},
		{"channel with spaces", "bad channel", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRoomIdentifier(tt.room)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRoomIdentifier(%q) error = %v, wantErr %v", tt.room, err, tt.wantErr)
			}
		})
	}
}
