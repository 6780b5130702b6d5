package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charleshuang3/medipair/internal/ratelimit"
)

type RateLimitConfig struct {
	// MaxAttempts failed attempts per client IP before lockout.
	MaxAttempts int `yaml:"max_attempts"`

	// LockoutMinutes is how long a locked-out IP waits.
	LockoutMinutes int `yaml:"lockout_minutes"`
}

const (
	defaultMaxAttempts    = 5
	defaultLockoutMinutes = 15
)

func (c *RateLimitConfig) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.LockoutMinutes <= 0 {
		c.LockoutMinutes = defaultLockoutMinutes
	}
}

// RateLimitMiddleware brakes invitation-code guessing: failed responses on
// the guarded endpoint count against the client IP, and a locked-out IP
// gets 429 until the window passes. Successful requests clear the counter.
type RateLimitMiddleware struct {
	limiter *ratelimit.Limiter
}

func NewRateLimitMiddleware(conf *RateLimitConfig) *RateLimitMiddleware {
	conf.applyDefaults()
	lockout := time.Duration(conf.LockoutMinutes) * time.Minute

	return &RateLimitMiddleware{
		limiter: ratelimit.New(
			// Entries live twice the lockout so the store never forgets a
			// live lockout.
			ratelimit.NewRistrettoStore(2*lockout),
			ratelimit.SystemClock(),
			conf.MaxAttempts,
			lockout,
		),
	}
}

func (m *RateLimitMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()

		allowed, wait := m.limiter.Allow(key)
		if !allowed {
			c.Header("Retry-After", retryAfter(wait))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{"code": "RATE_LIMITED", "message": "too many attempts, retry later"},
			})
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			m.limiter.RecordFailure(key)
		} else {
			m.limiter.Reset(key)
		}
	}
}

func retryAfter(wait time.Duration) string {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
