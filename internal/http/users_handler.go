package http

import (
	"log/slog"
	"net/http"

	"github.com/karloscodes/cartridge"

	"linkpage/internal/http/response"
	"linkpage/internal/profiles"
	"linkpage/internal/users"
)

// UserCreateAction creates a user from a JSON body.
func UserCreateAction(ctx *cartridge.Context) error {
	var input users.CreateInput
	if err := response.DecodeJSON(ctx, &input, false); err != nil {
		return response.Error(ctx, err)
	}

	user, err := users.Create(ctx.DB(), ctx.Logger, input)
	if err != nil {
		return response.Error(ctx, err)
	}

	return ctx.Status(http.StatusCreated).JSON(user)
}

// UserShowAction returns the public profile of a user: the user fields, the
// theme and the active links.
func UserShowAction(ctx *cartridge.Context) error {
	profile, err := profiles.Get(ctx.DB(), ctx.Params("username"))
	if err != nil {
		return response.Error(ctx, err)
	}
	return ctx.Status(http.StatusOK).JSON(profile)
}

// UserUpdateAction applies a partial update to a user.
func UserUpdateAction(ctx *cartridge.Context) error {
	var input users.UpdateInput
	if err := response.DecodeJSON(ctx, &input, false); err != nil {
		return response.Error(ctx, err)
	}

	user, err := users.Update(ctx.DB(), ctx.Logger, ctx.Params("username"), input)
	if err != nil {
		return response.Error(ctx, err)
	}

	ctx.Logger.Info("Updated user", slog.String("username", user.Username))
	return ctx.Status(http.StatusOK).JSON(user)
}
