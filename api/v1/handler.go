package v1

import (
	"log/slog"
	"net/http"

	"github.com/karloscodes/cartridge"

	"linkpage/internal/config"
	"linkpage/internal/events"
	"linkpage/internal/http/response"
	"linkpage/internal/validation"
)

// ProfileViewAction records a view of a user's public page. It is called by
// browsers and by server-side renderers, so the forwarded User-Agent wins
// over the direct one.
func ProfileViewAction(ctx *cartridge.Context) error {
	var input events.ProfileViewInput
	if err := response.DecodeJSON(ctx, &input, false); err != nil {
		return response.Error(ctx, err)
	}

	input.UserAgent = requestUserAgent(ctx)
	input.IPAddress = getClientIP(ctx.Ctx)
	input.InferDeviceType = config.GetConfig().InferDeviceType

	view, err := events.RecordProfileView(ctx.DB(), ctx.Logger, input)
	if err != nil {
		return response.Error(ctx, err)
	}

	ctx.Logger.Debug("Recorded profile view", slog.Uint64("userId", uint64(view.UserID)))
	return ctx.Status(http.StatusCreated).JSON(view)
}

// LinkClickEventAction records a click event for the link_id in the body.
func LinkClickEventAction(ctx *cartridge.Context) error {
	var input events.LinkClickInput
	if err := response.DecodeJSON(ctx, &input, false); err != nil {
		return response.Error(ctx, err)
	}
	if !input.Referrer.Present() {
		if referer := ctx.Get("Referer"); referer != "" {
			input.Referrer = validation.Some(referer)
		}
	}

	click, _, err := events.RecordLinkClick(ctx.DB(), ctx.Logger, input)
	if err != nil {
		return response.Error(ctx, err)
	}

	return ctx.Status(http.StatusCreated).JSON(click)
}

func requestUserAgent(ctx *cartridge.Context) string {
	if forwardedUA := ctx.Get("X-Forwarded-User-Agent"); forwardedUA != "" {
		return forwardedUA
	}
	return ctx.Get("User-Agent")
}
