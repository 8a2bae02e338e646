package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/ports"
	"telecall/internal/infrastructure/monitoring"
	apperrors "telecall/pkg/errors"
	"telecall/pkg/validation"

	"github.com/gin-gonic/gin"
)

// CredentialSeeder accepts a credential pushed by the backend ahead of
// the session start.
type CredentialSeeder interface {
	Seed(ctx context.Context, ref domain.SessionRef, cred domain.SessionCredential) error
}

type SessionHandler struct {
	sessions   ports.SessionService
	enumerator ports.DeviceEnumerator
	seeder     CredentialSeeder
	health     *monitoring.HealthChecker
}

func NewSessionHandler(
	sessions ports.SessionService,
	enumerator ports.DeviceEnumerator,
	seeder CredentialSeeder,
	health *monitoring.HealthChecker,
) *SessionHandler {
	return &SessionHandler{
		sessions:   sessions,
		enumerator: enumerator,
		seeder:     seeder,
		health:     health,
	}
}

func (h *SessionHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/sessions", h.StartSession)
		api.GET("/sessions", h.ListSessions)
		api.GET("/sessions/:id", h.GetSession)
		api.DELETE("/sessions/:id", h.EndSession)
		api.POST("/sessions/:id/audio", h.SetAudio)
		api.POST("/sessions/:id/video", h.SetVideo)

		api.POST("/credentials", h.SeedCredential)
		api.GET("/devices", h.ListDevices)
	}

	router.GET("/health", h.Health)
}

func (h *SessionHandler) StartSession(c *gin.Context) {
	var req struct {
		AppointmentID string `json:"appointment_id"`
		RoomContext   string `json:"room_context"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ref, err := buildRef(req.AppointmentID, req.RoomContext)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := h.sessions.StartSession(c.Request.Context(), ref)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session": sessionView(info)})
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	info, err := h.sessions.GetSession(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": sessionView(info)})
}

func (h *SessionHandler) ListSessions(c *gin.Context) {
	infos := h.sessions.ListSessions(c.Request.Context())

	views := make([]gin.H, 0, len(infos))
	for _, info := range infos {
		views = append(views, sessionView(info))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": views})
}

func (h *SessionHandler) EndSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	if err := h.sessions.EndSession(c.Request.Context(), id, domain.EndReasonHangup); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) SetAudio(c *gin.Context) {
	h.toggle(c, h.sessions.SetAudioEnabled)
}

func (h *SessionHandler) SetVideo(c *gin.Context) {
	h.toggle(c, h.sessions.SetVideoEnabled)
}

func (h *SessionHandler) toggle(c *gin.Context, fn func(context.Context, domain.SessionID, bool) error) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := fn(c.Request.Context(), id, *req.Enabled); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SeedCredential lets the backend push a single-use credential ahead of
// the session start, skipping one round-trip at join time.
func (h *SessionHandler) SeedCredential(c *gin.Context) {
	var req struct {
		AppointmentID string                   `json:"appointment_id"`
		RoomContext   string                   `json:"room_context"`
		Credential    domain.SessionCredential `json:"credential"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ref, err := buildRef(req.AppointmentID, req.RoomContext)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validation.ValidateRoomIdentifier(req.Credential.RoomIdentifier); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Credential.AuthToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "credential.authToken is required"})
		return
	}

	if err := h.seeder.Seed(c.Request.Context(), ref, req.Credential); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) ListDevices(c *gin.Context) {
	devices, err := h.enumerator.Enumerate(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	views := make([]gin.H, 0, len(devices))
	for _, d := range devices {
		views = append(views, gin.H{
			"device_id": d.DeviceID,
			"label":     d.Label,
			"kind":      string(d.Kind),
		})
	}
	c.JSON(http.StatusOK, gin.H{"devices": views})
}

func (h *SessionHandler) Health(c *gin.Context) {
	status := h.health.CheckAll(c.Request.Context())

	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

func (h *SessionHandler) sessionID(c *gin.Context) (domain.SessionID, bool) {
	id := c.Param("id")
	if err := validation.ValidateSessionID(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return domain.SessionID(id), true
}

func (h *SessionHandler) writeError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if errors.Is(err, domain.ErrSessionSuperseded) {
		c.JSON(http.StatusConflict, gin.H{"error": "session was ended before it could be established"})
		return
	}

	if appErr := apperrors.GetAppError(err); appErr != nil {
		c.JSON(appErr.HTTPStatus, gin.H{
			"error":   string(appErr.Code),
			"message": apperrors.UserMessage(err),
			"details": appErr.Context,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func buildRef(appointmentID, roomContext string) (domain.SessionRef, error) {
	if appointmentID != "" {
		if err := validation.ValidateAppointmentID(appointmentID); err != nil {
			return domain.SessionRef{}, err
		}
		return domain.SessionRef{AppointmentID: domain.AppointmentID(appointmentID)}, nil
	}
	if err := validation.ValidateRoomContext(roomContext); err != nil {
		return domain.SessionRef{}, err
	}
	return domain.SessionRef{RoomContext: roomContext}, nil
}

func sessionView(info *domain.SessionInfo) gin.H {
	participants := make([]gin.H, 0, len(info.Participants))
	for _, p := range info.Participants {
		participants = append(participants, gin.H{
			"id":            string(p.ID),
			"is_local":      p.IsLocal,
			"display_name":  p.DisplayName,
			"audio_enabled": p.AudioEnabled,
			"video_enabled": p.VideoEnabled,
			"has_audio":     p.AudioTrack != nil,
			"has_video":     p.VideoTrack != nil,
		})
	}

	view := gin.H{
		"id":               string(info.ID),
		"state":            string(info.State),
		"local_id":         string(info.LocalID),
		"duration_seconds": info.DurationSeconds,
		"participants":     participants,
		"warnings":         info.Warnings,
	}
	if info.Ref.AppointmentID != "" {
		view["appointment_id"] = string(info.Ref.AppointmentID)
	}
	if info.Ref.RoomContext != "" {
		view["room_context"] = info.Ref.RoomContext
	}
	if !info.StartedAt.IsZero() {
		view["started_at"] = info.StartedAt.Format(time.RFC3339)
	}
	return view
}
