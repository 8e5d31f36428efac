package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/pawfinder/internal/config"
	"github.com/tendant/pawfinder/internal/http/features/account"
	"github.com/tendant/pawfinder/internal/http/features/finder"
	"github.com/tendant/pawfinder/internal/http/features/pets"
	"github.com/tendant/pawfinder/internal/http/middleware"
	"github.com/tendant/pawfinder/internal/httputil"
	"github.com/tendant/pawfinder/internal/notification"
	"github.com/tendant/pawfinder/internal/realtime"
	"github.com/tendant/pawfinder/pkg/auth"
	"github.com/tendant/pawfinder/pkg/lifecycle"
	"github.com/tendant/pawfinder/pkg/matcher"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger          *slog.Logger
	Credentials     *auth.CredentialStore
	Codes           *auth.CodeIssuer
	SessionService  *auth.SessionService
	Lifecycle       *lifecycle.Manager
	Matcher         *matcher.Matcher
	Realtime        *realtime.Router
	Sender          notification.Sender     // synchronous, for login codes
	Mail            notification.Dispatcher // queued, for alerts and reports
	NotifyTimeout   time.Duration
	RealtimeConfig  config.RealtimeConfig
	RateLimitConfig config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	Validation      config.ValidationConfig
	CookieSecure    bool // Whether to use Secure flag on cookies (should be true for HTTPS)
}

// NewRouter creates a new HTTP router with all routes registered. Every API
// route is served at the root and again under /api.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.Validation.MaxRequestBodySize))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Method(http.MethodGet, "/ws", realtime.NewHandler(cfg.Realtime, cfg.SessionService, realtime.HandlerConfig{
		RequireToken:   cfg.RealtimeConfig.RequireToken,
		AllowedOrigins: cfg.RealtimeConfig.AllowedOrigins,
		SendBuffer:     cfg.RealtimeConfig.SendBuffer,
	}, cfg.Logger))

	// Limiters are shared by both mounts so /api does not double the budget.
	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)

	cookieConfig := httputil.DefaultCookieConfig()
	cookieConfig.Secure = cfg.CookieSecure

	accountHandler := account.NewHandler(
		cfg.Logger,
		cfg.Credentials,
		cfg.Codes,
		cfg.SessionService,
		cfg.Sender,
		cfg.NotifyTimeout,
		cookieConfig,
	)
	petsHandler := pets.NewHandler(cfg.Logger, cfg.Lifecycle, cfg.Credentials, cfg.Validation.MaxPhotoSize)
	finderHandler := finder.NewHandler(
		cfg.Logger,
		cfg.Matcher,
		cfg.Lifecycle,
		cfg.Credentials,
		cfg.Mail,
		cfg.Validation.MaxPhotoSize,
	)
	requireAuth := middleware.Auth(cfg.SessionService)

	routes := func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters[middleware.LimitAuth])
			r.Post("/register", accountHandler.Register)
			r.Post("/login", accountHandler.Login)
		})
		r.With(rateLimiters[middleware.LimitVerify]).Post("/verify_otp", accountHandler.VerifyOTP)
		r.Post("/logout", accountHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.With(rateLimiters[middleware.LimitPet]).Post("/register_pet", petsHandler.RegisterPet)
			r.Get("/me/pets", petsHandler.MyPets)
		})
		r.Get("/user/{id}", petsHandler.GetUser)
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters[middleware.LimitPet])
			r.Post("/pet/{id}/mark_missing", petsHandler.MarkMissing)
			r.Post("/pet/{id}/found", petsHandler.MarkFound)
		})
		r.Get("/missing_pets", petsHandler.MissingPets)

		r.Group(func(r chi.Router) {
			r.Use(rateLimiters[middleware.LimitFinder])
			r.Post("/check_image", finderHandler.CheckImage)
			r.Post("/send_email", finderHandler.SendEmail)
		})
	}

	r.Group(routes)
	r.Route("/api", routes)

	return r
}
