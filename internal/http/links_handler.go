package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"linkpage/internal/events"
	"linkpage/internal/http/response"
	"linkpage/internal/links"
	"linkpage/internal/validation"
)

// LinkCreateAction adds a link to a user's page.
func LinkCreateAction(ctx *cartridge.Context) error {
	var input links.CreateInput
	if err := response.DecodeJSON(ctx, &input, false); err != nil {
		return response.Error(ctx, err)
	}

	link, err := links.Create(ctx.DB(), ctx.Logger, input)
	if err != nil {
		return response.Error(ctx, err)
	}

	return ctx.Status(http.StatusCreated).JSON(link)
}

// LinkUpdateAction applies a partial update to a link.
func LinkUpdateAction(ctx *cartridge.Context) error {
	id, err := response.ParamID(ctx, "id", "INVALID_ID")
	if err != nil {
		return response.Error(ctx, err)
	}

	var input links.UpdateInput
	if err := response.DecodeJSON(ctx, &input, false); err != nil {
		return response.Error(ctx, err)
	}

	link, err := links.Update(ctx.DB(), ctx.Logger, id, input)
	if err != nil {
		return response.Error(ctx, err)
	}

	return ctx.Status(http.StatusOK).JSON(link)
}

// LinkDeleteAction removes a link and its clicks. It serves both DELETE and
// the POST .../delete alias.
func LinkDeleteAction(ctx *cartridge.Context) error {
	id, err := response.ParamID(ctx, "id", "INVALID_ID")
	if err != nil {
		return response.Error(ctx, err)
	}

	link, err := links.Delete(ctx.DB(), ctx.Logger, id)
	if err != nil {
		return response.Error(ctx, err)
	}

	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"success":     true,
		"message":     "Link deleted successfully",
		"id":          link.ID,
		"deletedLink": link,
	})
}

type reorderRequest struct {
	Links json.RawMessage `json:"links"`
}

// LinkReorderAction assigns new positions to a batch of links.
func LinkReorderAction(ctx *cartridge.Context) error {
	var req reorderRequest
	if err := response.DecodeJSON(ctx, &req, false); err != nil {
		return response.Error(ctx, err)
	}

	entries, err := links.ParseReorderEntries(req.Links)
	if err != nil {
		return response.Error(ctx, err)
	}

	updated, err := links.Reorder(ctx.DB(), ctx.Logger, entries)
	if err != nil {
		return response.Error(ctx, err)
	}

	ctx.Logger.Info("Reordered links", slog.Int("requested", len(entries)), slog.Int("updated", updated))
	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Links reordered successfully",
		"updated": updated,
	})
}

type linkClickRequest struct {
	Referrer validation.Optional `json:"referrer"`
}

// LinkClickAction records a click on the link in the path and returns the
// link with its incremented counter.
func LinkClickAction(ctx *cartridge.Context) error {
	id, err := response.ParamID(ctx, "id", "INVALID_ID")
	if err != nil {
		return response.Error(ctx, err)
	}

	var req linkClickRequest
	if err := response.DecodeJSON(ctx, &req, true); err != nil {
		return response.Error(ctx, err)
	}
	if !req.Referrer.Present() {
		if referer := ctx.Get("Referer"); referer != "" {
			req.Referrer = validation.Some(referer)
		}
	}

	// A zero path id is an unknown link, not a missing one.
	link, err := links.FindByID(ctx.DB(), id)
	if err != nil {
		return response.Error(ctx, err)
	}

	_, link, err = events.RecordLinkClick(ctx.DB(), ctx.Logger, events.LinkClickInput{
		LinkID:   validation.NewInteger(int(link.ID)),
		Referrer: req.Referrer,
	})
	if err != nil {
		return response.Error(ctx, err)
	}

	return ctx.Status(http.StatusOK).JSON(link)
}
