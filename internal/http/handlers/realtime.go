package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/advieskamer/advies-backend/internal/http/middleware"
	"github.com/advieskamer/advies-backend/internal/platform/logger"
	"github.com/advieskamer/advies-backend/internal/realtime"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.Hub

	mu      sync.Mutex
	clients map[uuid.UUID]*realtime.Client
}

func NewRealtimeHandler(baseLog *logger.Logger, hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{
		log:     baseLog.With("handler", "Realtime"),
		hub:     hub,
		clients: make(map[uuid.UUID]*realtime.Client),
	}
}

// GET /api/events
func (h *RealtimeHandler) Stream(c *gin.Context) {
	userID := middleware.UserID(c)

	client := h.hub.NewClient(userID)
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	// Every stream gets the user channel; report channels are query-opt-in.
	h.hub.AddChannel(client, userID.String())
	if reportID := c.Query("report_id"); reportID != "" {
		if id, err := uuid.Parse(reportID); err == nil {
			h.hub.AddChannel(client, "report:"+id.String())
		}
	}
	h.log.Info("SSE stream open", "user_id", userID, "client_id", client.ID)

	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.mu.Lock()
	delete(h.clients, client.ID)
	h.mu.Unlock()
	h.hub.CloseClient(client)
}

// POST /api/events/subscribe
func (h *RealtimeHandler) Subscribe(c *gin.Context) {
	var req struct {
		ClientID uuid.UUID `json:"client_id"`
		Channel  string    `json:"channel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Channel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel"})
		return
	}

	h.mu.Lock()
	client, ok := h.clients[req.ClientID]
	h.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown client"})
		return
	}
	h.hub.AddChannel(client, req.Channel)
	c.JSON(http.StatusOK, gin.H{"subscribed": req.Channel})
}
