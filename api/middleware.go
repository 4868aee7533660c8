package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/xraph/greenscore/auth"
	"github.com/xraph/greenscore/types"
)

const (
	headerRequestID = "X-Request-ID"

	ctxRequestID = "request_id"
	ctxPrincipal = "principal"
)

// TokenVerifier turns a bearer token into the address it authenticates.
// *auth.JWTVerifier implements it.
type TokenVerifier interface {
	Verify(token string) (types.Address, error)
}

// requestID echoes the caller's X-Request-ID or generates one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Set(ctxRequestID, reqID)
		c.Writer.Header().Set(headerRequestID, reqID)
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString(ctxRequestID),
		}
		if p := c.GetString(ctxPrincipal); p != "" {
			fields = append(fields, "principal", p)
		}

		switch {
		case status >= 500:
			logger.Error("http request", fields...)
		case status >= 400:
			logger.Warn("http request", fields...)
		default:
			logger.Debug("http request", fields...)
		}
	}
}

// requireBearer authenticates the Authorization header and places the
// principal in the request context for auth.ContextAuthorizer.
func requireBearer(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if len(header) <= 7 || !strings.EqualFold(header[:7], "Bearer ") {
			abort(c, http.StatusUnauthorized, codeUnauthorized, "missing bearer token")
			return
		}
		addr, err := v.Verify(strings.TrimSpace(header[7:]))
		if err != nil {
			abort(c, http.StatusUnauthorized, codeUnauthorized, err.Error())
			return
		}
		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), addr))
		c.Set(ctxPrincipal, addr.String())
		c.Next()
	}
}

func principal(c *gin.Context) types.Address {
	addr, _ := auth.PrincipalFrom(c.Request.Context())
	return addr
}
