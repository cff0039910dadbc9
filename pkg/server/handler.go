// Package server exposes the service over HTTP: the websocket endpoint that
// feeds the session manager and a small REST surface for stored reports.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/SlyyCooper/agenai/pkg/session"
	"github.com/SlyyCooper/agenai/pkg/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser clients connect from arbitrary origins; auth happens over the
	// socket itself.
	CheckOrigin: func(*http.Request) bool { return true },
}

type Handler struct {
	Sessions *session.Manager
	Verifier session.Verifier
	Reports  *store.ReportStore // nil when running without a database
	Logger   *slog.Logger
}

func NewHandler(sessions *session.Manager, verifier session.Verifier, reports *store.ReportStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Sessions: sessions, Verifier: verifier, Reports: reports, Logger: logger}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.healthz)
	r.GET("/ws", h.websocketHandler)
	api := r.Group("/api")
	{
		api.GET("/reports", h.listReports)
		api.GET("/reports/:id", h.getReport)
	}
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// websocketHandler upgrades the request and hands the connection to the
// session manager, which owns it from here on.
func (h *Handler) websocketHandler(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	h.Sessions.HandleConn(c.Request.Context(), &wsTransport{conn: ws})
}

// identify resolves the caller for the REST surface from the X-API-Key
// header, reusing the websocket verifier.
func (h *Handler) identify(c *gin.Context) (string, bool) {
	token := c.GetHeader("X-API-Key")
	userID, err := h.Verifier.Verify(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return "", false
	}
	return userID, true
}

func (h *Handler) listReports(c *gin.Context) {
	if h.Reports == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "report storage not configured"})
		return
	}
	userID, ok := h.identify(c)
	if !ok {
		return
	}

	reports, err := h.Reports.List(c.Request.Context(), userID, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// Return empty list instead of null
	if reports == nil {
		reports = []store.ReportRecord{}
	}
	c.JSON(http.StatusOK, reports)
}

func (h *Handler) getReport(c *gin.Context) {
	if h.Reports == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "report storage not configured"})
		return
	}
	userID, ok := h.identify(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return
	}

	report, err := h.Reports.Get(c.Request.Context(), userID, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	c.JSON(http.StatusOK, report)
}
