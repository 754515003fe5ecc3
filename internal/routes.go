package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "linkpage/api/v1"
	"linkpage/internal/config"
	"linkpage/internal/http"
	"linkpage/internal/http/response"
	"linkpage/internal/pkg/async"
	"linkpage/internal/timeframe"
)

// publicCORSConfig is shared by the event endpoints, which are called from
// any page embedding a profile.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization, Referrer, User-Agent, X-Forwarded-User-Agent",
}

// MountAppRoutes mounts all application routes using cartridge's route API
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()

	// Rate limiting would interfere with development and tests
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(cfg.PublicRateLimitPerMinute),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Event ingestion: rate limited, permissive CORS. Sec-Fetch-Site is not
	// enforced since profile pages may be rendered server side.
	publicAPIConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		EnableSecFetchSite: cartridge.Bool(false),
		CustomMiddleware:   []fiber.Handler{publicRateLimiter},
		CORSConfig:         publicCORSConfig,
	}

	// Management API
	apiConfig := &cartridge.RouteConfig{
		EnableSecFetchSite: cartridge.Bool(false),
	}

	analyticsPool := async.NewPool(cfg.GetAnalyticsWorkers())

	// Health check endpoint
	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)

	// === USERS ===
	srv.Post("/api/users", http.UserCreateAction, apiConfig)
	srv.Get("/api/users/:username", http.UserShowAction, apiConfig)
	srv.Post("/api/users/:username", http.UserUpdateAction, apiConfig)

	// === LINKS ===
	// reorder is registered before :id so it is not captured as an id
	srv.Post("/api/links", http.LinkCreateAction, apiConfig)
	srv.Post("/api/links/reorder", http.LinkReorderAction, apiConfig)
	srv.Post("/api/links/:id", http.LinkUpdateAction, apiConfig)
	srv.Delete("/api/links/:id", http.LinkDeleteAction, apiConfig)
	srv.Post("/api/links/:id/delete", http.LinkDeleteAction, apiConfig)
	srv.Post("/api/links/:id/click", http.LinkClickAction, publicAPIConfig)
	srv.Options("/api/links/:id/click", response.NoContent, publicAPIConfig)

	// === THEMES ===
	srv.Post("/api/themes/:userId", http.ThemeUpsertAction, apiConfig)

	// === ANALYTICS ===
	srv.Post("/api/analytics/profile-view", v1.ProfileViewAction, publicAPIConfig)
	srv.Options("/api/analytics/profile-view", response.NoContent, publicAPIConfig)
	srv.Post("/api/analytics/link-click", v1.LinkClickEventAction, publicAPIConfig)
	srv.Options("/api/analytics/link-click", response.NoContent, publicAPIConfig)
	srv.Get("/api/analytics/:username", http.NewAnalyticsShowAction(analyticsPool, &timeframe.DefaultTimeProvider{}), apiConfig)
}
