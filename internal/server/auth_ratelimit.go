package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Progressive block tiers for failed authentication attempts within the
// tracking window
const (
	authWindow     = 15 * time.Minute
	shortBlockAt   = 5
	mediumBlockAt  = 10
	longBlockAt    = 15
	shortBlockFor  = 5 * time.Minute
	mediumBlockFor = 30 * time.Minute
	longBlockFor   = 24 * time.Hour
)

// AuthRateLimiter throttles authentication endpoints per client IP to
// slow credential brute forcing
type AuthRateLimiter struct {
	attempts map[string]*authAttempt
	mu       sync.Mutex
}

type authAttempt struct {
	count        int
	firstAttempt time.Time
	blockedUntil time.Time
}

// NewAuthRateLimiter creates the limiter and starts its janitor
func NewAuthRateLimiter() *AuthRateLimiter {
	limiter := &AuthRateLimiter{
		attempts: make(map[string]*authAttempt),
	}
	go limiter.cleanup()
	return limiter
}

// cleanup drops stale entries hourly so the map cannot grow unbounded
func (l *AuthRateLimiter) cleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		now := time.Now()
		for ip, a := range l.attempts {
			expired := !a.blockedUntil.IsZero() && now.After(a.blockedUntil)
			idle := a.blockedUntil.IsZero() && now.Sub(a.firstAttempt) > time.Hour
			if expired || idle {
				delete(l.attempts, ip)
			}
		}
		l.mu.Unlock()
	}
}

// Allow records an attempt and reports whether the IP may proceed,
// along with the remaining block time when it may not
func (l *AuthRateLimiter) Allow(ip string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	a, exists := l.attempts[ip]
	if !exists {
		l.attempts[ip] = &authAttempt{count: 1, firstAttempt: now}
		return true, 0
	}

	if !a.blockedUntil.IsZero() {
		if now.Before(a.blockedUntil) {
			return false, a.blockedUntil.Sub(now)
		}
		*a = authAttempt{count: 1, firstAttempt: now}
		return true, 0
	}

	if now.Sub(a.firstAttempt) > authWindow {
		*a = authAttempt{count: 1, firstAttempt: now}
		return true, 0
	}

	a.count++
	var blockFor time.Duration
	switch {
	case a.count >= longBlockAt:
		blockFor = longBlockFor
	case a.count >= mediumBlockAt:
		blockFor = mediumBlockFor
	case a.count >= shortBlockAt:
		blockFor = shortBlockFor
	default:
		return true, 0
	}
	a.blockedUntil = now.Add(blockFor)
	return false, blockFor
}

// RecordSuccess clears the counter after a successful login
func (l *AuthRateLimiter) RecordSuccess(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.attempts, ip)
}

// Middleware enforces the limiter on auth routes
func (l *AuthRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, blockDuration := l.Allow(c.ClientIP())
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":           "Too many authentication attempts",
				"retry_after_sec": int(blockDuration.Seconds()),
			})
			return
		}
		c.Next()
	}
}
