package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"linkpage/internal/analytics"
	"linkpage/internal/http/response"
	"linkpage/internal/pkg/async"
	"linkpage/internal/timeframe"
	"linkpage/internal/users"
)

// NewAnalyticsShowAction returns the handler for a user's analytics summary.
// The summary queries share pool and its windows end at clock.Now().
func NewAnalyticsShowAction(pool *async.Pool, clock timeframe.TimeProvider) func(ctx *cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		user, err := users.FindByUsername(ctx.DB(), ctx.Params("username"))
		if err != nil {
			return response.Error(ctx, err)
		}

		summary, err := analytics.GetSummary(ctx.UserContext(), ctx.DB(), pool, user.ID, clock.Now())
		if err != nil {
			return response.Error(ctx, err)
		}

		return ctx.Status(http.StatusOK).JSON(fiber.Map{
			"user": fiber.Map{
				"id":       user.ID,
				"username": user.Username,
				"name":     user.Name,
			},
			"analytics": summary,
		})
	}
}
