package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Proxy forwards an admin CRUD request to the backend through the session
// gateway. Bodies pass through untouched; only the bearer header is added.
// The backend path is the gateway path with the /api prefix stripped, so
// GET /api/projets/3 becomes GET {backend}/api/projets/3.
func (s *Server) Proxy(c *gin.Context) {
	path := strings.TrimPrefix(c.Request.URL.Path, "/api")
	if raw := c.Request.URL.RawQuery; raw != "" {
		path += "?" + raw
	}

	var body []byte
	if c.Request.Body != nil {
		data, err := io.ReadAll(io.LimitReader(c.Request.Body, 8<<20))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "unreadable request body"})
			return
		}
		body = data
	}

	resp, err := s.gateway.Do(c.Request.Context(), SessionID(c), c.Request.Method, path, body, c.ContentType())
	if err != nil {
		s.respondError(c, err)
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, resp.Body)
}
