// Package response renders domain errors as JSON and decodes request input
// for the API handlers.
package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"linkpage/internal/links"
	"linkpage/internal/users"
	"linkpage/internal/validation"
)

const errInternal = "Internal server error"

// ErrInvalidJSON is returned when a request body cannot be decoded.
var ErrInvalidJSON = validation.Invalid("body", "INVALID_JSON", "Invalid JSON in request body")

// Body is the JSON shape of every error response.
type Body struct {
	Error string          `json:"error"`
	Code  string          `json:"code"`
	Kind  validation.Kind `json:"kind"`
}

// Classify maps err to an HTTP status and response body. Anything that is not
// a known domain error is reported as INTERNAL with a generic message.
func Classify(err error) (int, Body) {
	var userNotFound *users.UserNotFoundError
	var linkNotFound *links.LinkNotFoundError

	switch {
	case errors.As(err, &userNotFound):
		return http.StatusNotFound, Body{Error: "User not found", Code: "USER_NOT_FOUND", Kind: validation.KindNotFound}
	case errors.As(err, &linkNotFound):
		return http.StatusNotFound, Body{Error: "Link not found", Code: "LINK_NOT_FOUND", Kind: validation.KindNotFound}
	}

	verr, ok := validation.As(err)
	if !ok {
		return http.StatusInternalServerError, Body{Error: errInternal, Code: "INTERNAL_ERROR", Kind: validation.KindInternal}
	}

	body := Body{Error: verr.Message, Code: verr.Code, Kind: verr.Kind}
	switch verr.Kind {
	case validation.KindMissingField, validation.KindInvalidFormat:
		return http.StatusBadRequest, body
	case validation.KindNotFound:
		return http.StatusNotFound, body
	case validation.KindConflict:
		return http.StatusConflict, body
	default:
		return http.StatusInternalServerError, Body{Error: errInternal, Code: "INTERNAL_ERROR", Kind: validation.KindInternal}
	}
}

// Error writes err as a JSON error response. Internal failures are logged
// with the underlying error, which is never sent to the client.
func Error(ctx *cartridge.Context, err error) error {
	status, body := Classify(err)
	if status == http.StatusInternalServerError {
		ctx.Logger.Error("Request failed",
			slog.String("method", ctx.Method()),
			slog.String("path", ctx.Path()),
			slog.Any("error", err))
	} else {
		ctx.Logger.Debug("Request rejected",
			slog.String("path", ctx.Path()),
			slog.String("code", body.Code))
	}
	return ctx.Status(status).JSON(body)
}

// DecodeJSON decodes the request body into dest. An empty body decodes as an
// empty object when allowEmpty is set.
func DecodeJSON(ctx *cartridge.Context, dest any, allowEmpty bool) error {
	body := bytes.TrimSpace(ctx.Body())
	if len(body) == 0 {
		if allowEmpty {
			return nil
		}
		return ErrInvalidJSON
	}
	if body[0] != '{' {
		return ErrInvalidJSON
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return ErrInvalidJSON
	}
	return nil
}

// ParamID parses the integer path parameter name. code is reported when the
// value is not an integer.
func ParamID(ctx *cartridge.Context, name, code string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(ctx.Params(name)))
	if err != nil {
		return 0, validation.Invalid(name, code, "Invalid "+name+": must be an integer")
	}
	return id, nil
}

// NoContent answers CORS preflight requests.
func NoContent(ctx *cartridge.Context) error {
	return ctx.SendStatus(fiber.StatusNoContent)
}
