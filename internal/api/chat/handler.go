package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/inkwell-notes/inkwell/internal/domain"
	"github.com/inkwell-notes/inkwell/internal/service"
)

// Handler exposes the assistant engine to the hosting UI over HTTP.
type Handler struct {
	svc *service.AssistantService
	log *zap.Logger
}

// NewHandler creates a new chat handler
func NewHandler(svc *service.AssistantService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log}
}

// RegisterConversationRoutes registers the per-conversation routes.
func (h *Handler) RegisterConversationRoutes(r *gin.RouterGroup) {
	r.GET("/:conv", h.View)
	r.POST("/:conv/send", h.Send)
	r.POST("/:conv/cancel", h.Cancel)
	r.POST("/:conv/load", h.Load)
	r.POST("/:conv/new", h.New)
}

// RegisterSessionRoutes registers the stored-session routes.
func (h *Handler) RegisterSessionRoutes(r *gin.RouterGroup) {
	r.GET("", h.ListSessions)
	r.GET("/:id", h.GetSession)
	r.DELETE("/:id", h.DeleteSession)
}

// View returns the conversation read model.
func (h *Handler) View(c *gin.Context) {
	engine := h.svc.Engine(c.Param("conv"))
	c.JSON(http.StatusOK, engine.View())
}

// Send submits a user message and streams throttled transcript snapshots
// back as Server-Sent Events until the stream is terminal.
func (h *Handler) Send(c *gin.Context) {
	var req domain.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	engine := h.svc.Engine(c.Param("conv"))
	events, streamID, err := engine.Send(c.Request.Context(), req.Message)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.log.Debug("streaming send", zap.String("stream_id", streamID))

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false // End stream
		}
		data, _ := json.Marshal(ev)
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
		return true
	})
}

// Cancel aborts the conversation's active stream, if any.
func (h *Handler) Cancel(c *gin.Context) {
	engine := h.svc.Engine(c.Param("conv"))
	engine.CancelActive()
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// Load replaces the conversation with a stored session.
func (h *Handler) Load(c *gin.Context) {
	var req domain.LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	engine := h.svc.Engine(c.Param("conv"))
	if err := engine.LoadSession(req.SessionID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, engine.View())
}

// New resets the conversation to an empty, unsaved session.
func (h *Handler) New(c *gin.Context) {
	engine := h.svc.Engine(c.Param("conv"))
	engine.NewSession()
	c.JSON(http.StatusOK, engine.View())
}

// ListSessions returns stored session summaries.
func (h *Handler) ListSessions(c *gin.Context) {
	sessions, err := h.svc.ListSessions()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sessions == nil {
		sessions = []*domain.SessionSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// GetSession returns one stored session with its transcript.
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.svc.GetSession(c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, session)
}

// DeleteSession removes a stored session.
func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.svc.DeleteSession(c.Param("id")); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
