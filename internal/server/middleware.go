package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/tandem/internal/observability/context"
	"go.uber.org/zap"
)

const (
	HeaderAccountID     = "X-Account-Id"
	contextAccountIDKey = "account_id"
)

// ActorContext reads the account id the gateway authenticated. Requests
// without one are anonymous; token-bearing routes do not need an actor.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderAccountID))
		if raw == "" {
			c.Next()
			return
		}

		id, err := snowflake.ParseString(raw)
		if err != nil || id <= 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextAccountIDKey, id)
		c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), "account", id.String()))
		c.Next()
	}
}

// AccountRequired rejects anonymous requests.
func AccountRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := accountID(c); !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func accountID(c *gin.Context) (snowflake.ID, bool) {
	value, ok := c.Get(contextAccountIDKey)
	if !ok {
		return 0, false
	}
	id, ok := value.(snowflake.ID)
	return id, ok && id > 0
}

// TokenProbeLimit throttles token-bearing requests per client address. The
// limiter fails open when redis errors.
func (s *Server) TokenProbeLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.probeLimiter.Enabled() {
			c.Next()
			return
		}

		res, err := s.probeLimiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			s.log.Warn("token rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			if seconds := int(math.Ceil(res.RetryAfter.Seconds())); seconds > 0 {
				c.Header("Retry-After", strconv.Itoa(seconds))
			}
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
