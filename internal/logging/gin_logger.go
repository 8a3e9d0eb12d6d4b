// Package logging provides gin middleware for HTTP request logging and panic
// recovery, integrating gin with logrus.
package logging

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// trackedPrefixes lists path prefixes whose requests get a request ID.
var trackedPrefixes = []string{
	"/oauth/",
	"/auth/",
	"/api/",
	"/connexions",
}

// maskedQueryParams are query parameters whose values never reach the logs.
var maskedQueryParams = []string{"token", "code", "state"}

const skipGinLogKey = "__gin_skip_request_logging__"

// GinLogrusLogger returns a gin middleware that logs HTTP requests through
// logrus: method, path, status, latency, client IP and any private errors.
// Bearer tokens and authorization codes in the query string are masked.
func GinLogrusLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := maskSensitiveQuery(c.Request.URL.Query())

		var requestID string
		if isTrackedPath(path) {
			requestID = GenerateRequestID()
			ctx := WithRequestID(c.Request.Context(), requestID)
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()

		if shouldSkipGinRequestLogging(c) {
			return
		}

		if raw != "" {
			path = path + "?" + raw
		}

		latency := time.Since(start)
		if latency > time.Minute {
			latency = latency.Truncate(time.Second)
		} else {
			latency = latency.Truncate(time.Millisecond)
		}

		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()
		method := c.Request.Method
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		if requestID == "" {
			requestID = "--------"
		}
		logLine := fmt.Sprintf("%3d | %13v | %15s | %-7s %q", statusCode, latency, clientIP, method, path)
		if errorMessage != "" {
			logLine = logLine + " | " + errorMessage
		}

		entry := log.WithField("request_id", requestID)

		switch {
		case statusCode >= http.StatusInternalServerError:
			entry.Error(logLine)
		case statusCode >= http.StatusBadRequest:
			entry.Warn(logLine)
		default:
			entry.Info(logLine)
		}
	}
}

func isTrackedPath(path string) bool {
	for _, prefix := range trackedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// maskSensitiveQuery rebuilds the raw query with credential-bearing values replaced.
func maskSensitiveQuery(values map[string][]string) string {
	if len(values) == 0 {
		return ""
	}
	var parts []string
	for key, vals := range values {
		masked := false
		for _, sensitive := range maskedQueryParams {
			if strings.EqualFold(key, sensitive) {
				masked = true
				break
			}
		}
		for _, v := range vals {
			if masked && v != "" {
				v = "***"
			}
			parts = append(parts, key+"="+v)
		}
	}
	return strings.Join(parts, "&")
}

// GinLogrusRecovery returns a gin middleware that recovers from panics, logs
// the panic value and stack through logrus, and returns a 500 to the client.
func GinLogrusRecovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		if err, ok := recovered.(error); ok && errors.Is(err, http.ErrAbortHandler) {
			// Let net/http handle ErrAbortHandler so the connection is aborted without noisy stack logs.
			panic(http.ErrAbortHandler)
		}

		log.WithFields(log.Fields{
			"panic": recovered,
			"stack": string(debug.Stack()),
			"path":  c.Request.URL.Path,
		}).Error("recovered from panic")

		c.AbortWithStatus(http.StatusInternalServerError)
	})
}

// SkipGinRequestLogging marks the gin context so GinLogrusLogger skips the
// log line for this request.
func SkipGinRequestLogging(c *gin.Context) {
	if c == nil {
		return
	}
	c.Set(skipGinLogKey, true)
}

func shouldSkipGinRequestLogging(c *gin.Context) bool {
	if c == nil {
		return false
	}
	val, exists := c.Get(skipGinLogKey)
	if !exists {
		return false
	}
	flag, ok := val.(bool)
	return ok && flag
}
