package http

import (
	"net/http"

	"github.com/karloscodes/cartridge"

	"linkpage/internal/http/response"
	"linkpage/internal/themes"
	"linkpage/internal/users"
)

// ThemeUpsertAction creates or updates the theme of the user in the path.
func ThemeUpsertAction(ctx *cartridge.Context) error {
	userID, err := response.ParamID(ctx, "userId", "INVALID_USER_ID")
	if err != nil {
		return response.Error(ctx, err)
	}

	var input themes.UpsertInput
	if err := response.DecodeJSON(ctx, &input, false); err != nil {
		return response.Error(ctx, err)
	}

	if userID < 0 {
		return response.Error(ctx, &users.UserNotFoundError{})
	}

	theme, err := themes.Upsert(ctx.DB(), ctx.Logger, uint(userID), input)
	if err != nil {
		return response.Error(ctx, err)
	}

	return ctx.Status(http.StatusOK).JSON(theme)
}
