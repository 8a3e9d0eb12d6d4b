package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ListConnections answers with the user's platform connections.
func (s *Server) ListConnections(c *gin.Context) {
	conns, err := s.connections.List(c.Request.Context(), SessionID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "connexions": conns})
}

func connectionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid connection id"})
		return 0, false
	}
	return id, true
}

// DisconnectConnection revokes a platform connection.
func (s *Server) DisconnectConnection(c *gin.Context) {
	id, ok := connectionID(c)
	if !ok {
		return
	}
	if err := s.connections.Disconnect(c.Request.Context(), SessionID(c), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RefreshConnection mints a new access token for a connection. A failed
// refresh leaves the connection listed as invalid, so the 502 here is
// informational rather than destructive.
func (s *Server) RefreshConnection(c *gin.Context) {
	id, ok := connectionID(c)
	if !ok {
		return
	}
	conn, err := s.connections.RefreshToken(c.Request.Context(), SessionID(c), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "connexion": conn})
}

type metaUpdateRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// UpdateConnectionMeta patches one key of a connection's meta document.
func (s *Server) UpdateConnectionMeta(c *gin.Context) {
	id, ok := connectionID(c)
	if !ok {
		return
	}
	var req metaUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "meta key is required"})
		return
	}
	conn, err := s.connections.UpdateMeta(c.Request.Context(), SessionID(c), id, req.Key, req.Value)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "connexion": conn})
}

// CheckConnectionValidity probes a connection without mutating anything.
func (s *Server) CheckConnectionValidity(c *gin.Context) {
	id, ok := connectionID(c)
	if !ok {
		return
	}
	validity, err := s.connections.CheckValidity(c.Request.Context(), SessionID(c), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, validity)
}
