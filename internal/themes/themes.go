package themes

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"linkpage/internal/users"
	"linkpage/internal/validation"
)

// Allowed values for the enumerated theme fields
var (
	ButtonStyles        = []string{"rounded", "square", "pill"}
	FontFamilies        = []string{"sans", "serif", "mono"}
	ProfileImageLayouts = []string{"classic", "hero"}
	TitleStyles         = []string{"text", "logo"}
	TitleSizes          = []string{"small", "large"}
)

// Theme is the appearance of a user's public page. A user has at most one.
type Theme struct {
	ID                 uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID             uint      `gorm:"uniqueIndex;not null" json:"userId"`
	BackgroundColor    string    `gorm:"not null;default:'#ffffff'" json:"backgroundColor"`
	ButtonColor        string    `gorm:"not null;default:'#000000'" json:"buttonColor"`
	ButtonTextColor    string    `gorm:"not null;default:'#ffffff'" json:"buttonTextColor"`
	ButtonStyle        string    `gorm:"not null;default:'rounded'" json:"buttonStyle"`
	FontFamily         string    `gorm:"not null;default:'sans'" json:"fontFamily"`
	ProfileImageLayout string    `gorm:"not null;default:'classic'" json:"profileImageLayout"`
	TitleStyle         string    `gorm:"not null;default:'text'" json:"titleStyle"`
	TitleFont          string    `gorm:"not null;default:'Link Sans'" json:"titleFont"`
	TitleColor         string    `gorm:"not null;default:'#000000'" json:"titleColor"`
	TitleSize          string    `gorm:"not null;default:'small'" json:"titleSize"`
	Wallpaper          string    `gorm:"not null;default:'#ffffff'" json:"wallpaper"`
	CreatedAt          time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt          time.Time `gorm:"not null" json:"updatedAt"`
}

// Default returns a theme for userID with every field at its default.
func Default(userID uint) Theme {
	return Theme{
		UserID:             userID,
		BackgroundColor:    "#ffffff",
		ButtonColor:        "#000000",
		ButtonTextColor:    "#ffffff",
		ButtonStyle:        "rounded",
		FontFamily:         "sans",
		ProfileImageLayout: "classic",
		TitleStyle:         "text",
		TitleFont:          "Link Sans",
		TitleColor:         "#000000",
		TitleSize:          "small",
		Wallpaper:          "#ffffff",
	}
}

// UpsertInput is a partial set of style fields; absent fields are untouched.
type UpsertInput struct {
	BackgroundColor    validation.Optional `json:"background_color"`
	ButtonColor        validation.Optional `json:"button_color"`
	ButtonTextColor    validation.Optional `json:"button_text_color"`
	ButtonStyle        validation.Optional `json:"button_style"`
	FontFamily         validation.Optional `json:"font_family"`
	ProfileImageLayout validation.Optional `json:"profile_image_layout"`
	TitleStyle         validation.Optional `json:"title_style"`
	TitleFont          validation.Optional `json:"title_font"`
	TitleColor         validation.Optional `json:"title_color"`
	TitleSize          validation.Optional `json:"title_size"`
	Wallpaper          validation.Optional `json:"wallpaper"`
}

// field binds a request value to its column and the rule it must satisfy.
type field struct {
	value  validation.Optional
	column string
	label  string
	code   string
	values []string // nil means a hex color
	free   bool
	apply  func(*Theme, string)
}

func (in UpsertInput) fields() []field {
	return []field{
		{value: in.ButtonStyle, column: "button_style", label: "button style", code: "INVALID_BUTTON_STYLE", values: ButtonStyles,
			apply: func(t *Theme, v string) { t.ButtonStyle = v }},
		{value: in.FontFamily, column: "font_family", label: "font family", code: "INVALID_FONT_FAMILY", values: FontFamilies,
			apply: func(t *Theme, v string) { t.FontFamily = v }},
		{value: in.ProfileImageLayout, column: "profile_image_layout", label: "profile image layout", code: "INVALID_PROFILE_IMAGE_LAYOUT", values: ProfileImageLayouts,
			apply: func(t *Theme, v string) { t.ProfileImageLayout = v }},
		{value: in.TitleStyle, column: "title_style", label: "title style", code: "INVALID_TITLE_STYLE", values: TitleStyles,
			apply: func(t *Theme, v string) { t.TitleStyle = v }},
		{value: in.TitleSize, column: "title_size", label: "title size", code: "INVALID_TITLE_SIZE", values: TitleSizes,
			apply: func(t *Theme, v string) { t.TitleSize = v }},
		{value: in.BackgroundColor, column: "background_color", label: "background color", code: "INVALID_COLOR_FORMAT",
			apply: func(t *Theme, v string) { t.BackgroundColor = v }},
		{value: in.ButtonColor, column: "button_color", label: "button color", code: "INVALID_COLOR_FORMAT",
			apply: func(t *Theme, v string) { t.ButtonColor = v }},
		{value: in.ButtonTextColor, column: "button_text_color", label: "button text color", code: "INVALID_COLOR_FORMAT",
			apply: func(t *Theme, v string) { t.ButtonTextColor = v }},
		{value: in.TitleColor, column: "title_color", label: "title color", code: "INVALID_COLOR_FORMAT",
			apply: func(t *Theme, v string) { t.TitleColor = v }},
		{value: in.Wallpaper, column: "wallpaper", label: "wallpaper", code: "INVALID_COLOR_FORMAT",
			apply: func(t *Theme, v string) { t.Wallpaper = v }},
		{value: in.TitleFont, column: "title_font", label: "title font", free: true,
			apply: func(t *Theme, v string) { t.TitleFont = v }},
	}
}

// Validate checks every supplied field. A supplied null is rejected for the
// enumerated and color fields since their columns are not nullable.
func (in UpsertInput) Validate() error {
	for _, f := range in.fields() {
		if !f.value.Set {
			continue
		}
		if f.free {
			if f.value.Null {
				return validation.Invalid(f.column, "INVALID_TITLE_FONT", "Invalid title font. Must be a string")
			}
			continue
		}
		if f.values != nil {
			if f.value.Null || !validation.OneOf(f.value.Value, f.values) {
				return validation.Invalid(f.column, f.code,
					fmt.Sprintf("Invalid %s. Must be one of: %s", f.label, strings.Join(f.values, ", ")))
			}
			continue
		}
		if f.value.Null || !validation.IsHexColor(f.value.Value) {
			return validation.Invalid(f.column, f.code,
				fmt.Sprintf("Invalid %s. Must be a valid hex color (e.g., #ffffff)", f.label))
		}
	}
	return nil
}

// FindByUserID returns the user's theme, or nil when none exists yet.
func FindByUserID(db *gorm.DB, userID uint) (*Theme, error) {
	var theme Theme
	if err := db.Where("user_id = ?", userID).First(&theme).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query theme for user %d: %w", userID, err)
	}
	return &theme, nil
}

// Upsert validates input, then creates the user's theme with defaults for
// unspecified fields or updates only the supplied fields of the existing one.
func Upsert(db *gorm.DB, logger *slog.Logger, userID uint, input UpsertInput) (*Theme, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	if _, err := users.FindByID(db, userID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		var existing Theme
		err := tx.Where("user_id = ?", userID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return createTheme(tx, userID, input, now)
		}
		if err != nil {
			return err
		}
		return updateTheme(tx, existing.ID, input, now)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert theme for user %d: %w", userID, err)
	}

	theme, err := FindByUserID(db, userID)
	if err != nil {
		return nil, err
	}
	if theme == nil {
		return nil, fmt.Errorf("theme for user %d missing after upsert", userID)
	}
	return theme, nil
}

// createTheme inserts the user's first theme. Losing the insert race to
// another writer falls back to updating the row that writer created.
func createTheme(tx *gorm.DB, userID uint, input UpsertInput, now time.Time) error {
	theme := Default(userID)
	for _, f := range input.fields() {
		if f.value.Present() {
			f.apply(&theme, f.value.Value)
		}
	}
	theme.CreatedAt = now
	theme.UpdatedAt = now

	err := tx.Create(&theme).Error
	if err == nil || !users.IsUniqueViolation(err) {
		return err
	}

	var existing Theme
	if err := tx.Where("user_id = ?", userID).First(&existing).Error; err != nil {
		return err
	}
	return updateTheme(tx, existing.ID, input, now)
}

func updateTheme(tx *gorm.DB, id uint, input UpsertInput, now time.Time) error {
	updates := map[string]any{"updated_at": now}
	for _, f := range input.fields() {
		if f.value.Present() {
			updates[f.column] = f.value.Value
		}
	}
	return tx.Model(&Theme{}).Where("id = ?", id).Updates(updates).Error
}
