package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/tendant/pawfinder/internal/config"
	"github.com/tendant/pawfinder/internal/httputil"
)

// Rate limit groups.
const (
	LimitAuth   = "auth"
	LimitVerify = "verify"
	LimitFinder = "finder"
	LimitPet    = "pet"
)

// RateLimitConfig holds rate limiting configuration for a specific endpoint type.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Logger   *slog.Logger
}

// RateLimit creates an IP-based rate limiter middleware with logging.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Logger != nil {
				cfg.Logger.Warn("rate limit exceeded",
					"ip", r.RemoteAddr,
					"path", r.URL.Path,
					"method", r.Method,
					"user_agent", r.UserAgent(),
				)
			}
			httputil.Error(w, http.StatusTooManyRequests, "rate limit exceeded. please try again later")
		}),
	)
}

// NoRateLimit returns a no-op middleware when rate limiting is disabled.
func NoRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// CreateRateLimiters creates rate limiting middleware functions based on configuration.
func CreateRateLimiters(cfg config.RateLimitConfig, logger *slog.Logger) map[string]func(http.Handler) http.Handler {
	if !cfg.Enabled {
		noOp := NoRateLimit()
		return map[string]func(http.Handler) http.Handler{
			LimitAuth:   noOp,
			LimitVerify: noOp,
			LimitFinder: noOp,
			LimitPet:    noOp,
		}
	}

	limiter := func(requests, minutes int) func(http.Handler) http.Handler {
		if requests <= 0 || minutes <= 0 {
			return NoRateLimit()
		}
		return RateLimit(RateLimitConfig{
			Requests: requests,
			Window:   time.Duration(minutes) * time.Minute,
			Logger:   logger,
		})
	}

	return map[string]func(http.Handler) http.Handler{
		LimitAuth:   limiter(cfg.AuthRequestsPerMinute, cfg.AuthWindowMinutes),
		LimitVerify: limiter(cfg.VerifyRequestsPerWindow, cfg.VerifyWindowMinutes),
		LimitFinder: limiter(cfg.FinderRequestsPerWindow, cfg.FinderWindowMinutes),
		LimitPet:    limiter(cfg.PetRequestsPerMinute, cfg.PetWindowMinutes),
	}
}
