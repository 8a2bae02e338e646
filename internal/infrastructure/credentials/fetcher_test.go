package credentials

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"telecall/internal/core/domain"
	apperrors "telecall/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap/zaptest"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp":  exp.Unix(),
		"room": "exam-room-1",
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return token
}

func newTestFetcher(t *testing.T, backend *httptest.Server) (*Fetcher, *MemoryCache) {
	cache := NewMemoryCache(time.Minute)
	t.Cleanup(cache.Stop)
	return NewFetcher(backend.URL, "/v1/video-token", 2*time.Second, cache, time.Minute, zaptest.NewLogger(t).Sugar()), cache
}

func TestFetchFromBackend(t *testing.T) {
	token := signedToken(t, time.Now().Add(time.Hour))
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req["appointmentId"] != "appt-1" {
			t.Errorf("appointmentId = %q", req["appointmentId"])
		}
		json.NewEncoder(w).Encode(domain.SessionCredential{
			RoomIdentifier: "https://rooms.example.com/exam-room-1",
			AuthToken:      token,
		})
	}))
	defer backend.Close()

	fetcher, _ := newTestFetcher(t, backend)
	cred, err := fetcher.Fetch(context.Background(), domain.SessionRef{AppointmentID: "appt-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cred.AuthToken != token {
		t.Error("token not passed through")
	}
}

func TestFetchBackendRejection(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "appointment not payable", http.StatusForbidden)
	}))
	defer backend.Close()

	fetcher, _ := newTestFetcher(t, backend)
	_, err := fetcher.Fetch(context.Background(), domain.SessionRef{AppointmentID: "appt-1"})
	if err == nil {
		t.Fatal("expected error")
	}
	appErr := apperrors.GetAppError(err)
	if appErr == nil || appErr.Code != apperrors.ErrCodeCredential {
		t.Errorf("expected credential error, got %v", err)
	}
}

func TestFetchIncompleteResponse(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(domain.SessionCredential{RoomIdentifier: "room-only"})
	}))
	defer backend.Close()

	fetcher, _ := newTestFetcher(t, backend)
	_, err := fetcher.Fetch(context.Background(), domain.SessionRef{AppointmentID: "appt-1"})
	if err == nil {
		t.Fatal("expected error for response without auth token")
	}
	appErr := apperrors.GetAppError(err)
	if appErr == nil || appErr.Code != apperrors.ErrCodeCredential {
		t.Errorf("expected credential error, got %v", err)
	}
}

func TestFetchRejectsExpiredBackendToken(t *testing.T) {
	token := signedToken(t, time.Now().Add(-time.Hour))
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(domain.SessionCredential{
			RoomIdentifier: "https://rooms.example.com/exam-room-1",
			AuthToken:      token,
		})
	}))
	defer backend.Close()

	fetcher, _ := newTestFetcher(t, backend)
	_, err := fetcher.Fetch(context.Background(), domain.SessionRef{AppointmentID: "appt-1"})
	if err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestFetchSeededCredentialConsumedOnce(t *testing.T) {
	backendHits := 0
	token := signedToken(t, time.Now().Add(time.Hour))
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backendHits++
		json.NewEncoder(w).Encode(domain.SessionCredential{
			RoomIdentifier: "https://rooms.example.com/from-backend",
			AuthToken:      token,
		})
	}))
	defer backend.Close()

	fetcher, _ := newTestFetcher(t, backend)
	ref := domain.SessionRef{AppointmentID: "appt-1"}
	seeded := domain.SessionCredential{
		RoomIdentifier: "https://rooms.example.com/seeded",
		AuthToken:      token,
	}
	if err := fetcher.Seed(context.Background(), ref, seeded); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	first, err := fetcher.Fetch(context.Background(), ref)
	if err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}
	if first.RoomIdentifier != seeded.RoomIdentifier {
		t.Error("seeded credential not used")
	}
	if backendHits != 0 {
		t.Errorf("backend hit despite seeded credential: %d", backendHits)
	}

	// The seed is consume-once: the second fetch goes to the backend.
	second, err := fetcher.Fetch(context.Background(), ref)
	if err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if second.RoomIdentifier != "https://rooms.example.com/from-backend" {
		t.Error("second fetch should come from backend")
	}
	if backendHits != 1 {
		t.Errorf("backend hits = %d, want 1", backendHits)
	}
}

func TestFetchExpiredSeedFallsThrough(t *testing.T) {
	freshToken := signedToken(t, time.Now().Add(time.Hour))
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(domain.SessionCredential{
			RoomIdentifier: "https://rooms.example.com/fresh",
			AuthToken:      freshToken,
		})
	}))
	defer backend.Close()

	fetcher, _ := newTestFetcher(t, backend)
	ref := domain.SessionRef{RoomContext: "lobby"}
	fetcher.Seed(context.Background(), ref, domain.SessionCredential{
		RoomIdentifier: "https://rooms.example.com/stale",
		AuthToken:      signedToken(t, time.Now().Add(-time.Minute)),
	})

	cred, err := fetcher.Fetch(context.Background(), ref)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if cred.RoomIdentifier != "https://rooms.example.com/fresh" {
		t.Errorf("expected fresh credential, got %s", cred.RoomIdentifier)
	}
}
