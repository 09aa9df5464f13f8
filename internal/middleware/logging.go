// internal/middleware/logging.go

package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// quietPaths are probed constantly and not worth a log line each.
var quietPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

// LogMiddleware logs each request's method, path, duration, remote address
// and user agent. It wraps the whole mux, so the session user is not known
// here; handlers add it to their own failure logs.
func LogMiddleware(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if quietPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			path := r.URL.Path
			method := r.Method

			next.ServeHTTP(w, r)

			fields := logrus.Fields{
				"method":   method,
				"path":     path,
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			}
			if ua := r.UserAgent(); ua != "" {
				fields["agent"] = ua
			}
			logger.WithFields(fields).Info("HTTP Request")
		})
	}
}

// LogWebSocketConnect logs a chat socket joining a connection.
func LogWebSocketConnect(logger *logrus.Logger, remoteAddr string, userID, connectionID uuid.UUID) {
	logger.WithFields(logrus.Fields{
		"remote":     remoteAddr,
		"user":       userID,
		"connection": connectionID,
	}).Info("WebSocket connected")
}

// LogWebSocketDisconnect logs a chat socket leaving, with the error that ended it if any.
func LogWebSocketDisconnect(logger *logrus.Logger, remoteAddr string, userID, connectionID uuid.UUID, err error) {
	fields := logrus.Fields{
		"remote":     remoteAddr,
		"user":       userID,
		"connection": connectionID,
	}
	if err != nil {
		fields["error"] = err
	}
	logger.WithFields(fields).Info("WebSocket disconnected")
}
