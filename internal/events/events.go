package events

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"linkpage/internal/links"
	"linkpage/internal/pkg/geoip"
	"linkpage/internal/pkg/user_agent"
	"linkpage/internal/users"
	"linkpage/internal/validation"
)

// ProfileViewInput defines the input required to record a profile view.
type ProfileViewInput struct {
	Username   validation.Optional `json:"username"`
	Referrer   validation.Optional `json:"referrer"`
	DeviceType validation.Optional `json:"device_type"`

	// Set by the transport, never read from the body.
	UserAgent       string `json:"-"`
	IPAddress       string `json:"-"`
	InferDeviceType bool   `json:"-"`
}

// LinkClickInput defines the input required to record a link click.
type LinkClickInput struct {
	LinkID   validation.Integer  `json:"link_id"`
	Referrer validation.Optional `json:"referrer"`
}

// RecordProfileView stores one view of the named user's page.
func RecordProfileView(db *gorm.DB, logger *slog.Logger, input ProfileViewInput) (*ProfileView, error) {
	username := strings.TrimSpace(input.Username.Value)
	if !input.Username.Present() || username == "" {
		return nil, validation.Missing("username", "MISSING_USERNAME", "Username is required")
	}

	deviceType := input.DeviceType.Nullable()
	if deviceType != nil && !validation.OneOf(*deviceType, DeviceTypes) {
		return nil, validation.Invalid("device_type", "INVALID_DEVICE_TYPE",
			fmt.Sprintf("Invalid device_type. Must be one of: %s", strings.Join(DeviceTypes, ", ")))
	}

	user, err := users.FindByUsername(db, username)
	if err != nil {
		return nil, err
	}

	if deviceType == nil && input.InferDeviceType {
		deviceType = user_agent.DeviceType(input.UserAgent)
	}

	view := ProfileView{
		UserID:     user.ID,
		ViewedAt:   time.Now().UTC(),
		Referrer:   input.Referrer.Nullable(),
		DeviceType: deviceType,
		Country:    geoip.CountryCode(input.IPAddress),
	}

	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(&view).Error
	})
	if err != nil {
		logger.Error("Failed to store profile view", slog.String("username", user.Username), slog.Any("error", err))
		return nil, fmt.Errorf("failed to store profile view: %w", err)
	}

	return &view, nil
}

// RecordLinkClick stores a click and increments the link's counter in one
// transaction. It returns the click and the link as updated.
func RecordLinkClick(db *gorm.DB, logger *slog.Logger, input LinkClickInput) (*LinkClick, *links.Link, error) {
	if input.LinkID.Blank() {
		return nil, nil, validation.Missing("link_id", "MISSING_LINK_ID", "link_id is required")
	}
	linkID, err := input.LinkID.Int()
	if err != nil {
		return nil, nil, validation.Invalid("link_id", "INVALID_LINK_ID", "link_id must be a valid integer")
	}

	link, err := links.FindByID(db, linkID)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	click := LinkClick{
		LinkID:    link.ID,
		ClickedAt: now,
		Referrer:  input.Referrer.Nullable(),
	}

	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		result := tx.Model(&links.Link{}).
			Where("id = ?", link.ID).
			Updates(map[string]any{
				"clicks":     gorm.Expr("clicks + ?", 1),
				"updated_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return links.NewLinkNotFoundError(linkID)
		}
		return tx.Create(&click).Error
	})
	if err != nil {
		var notFound *links.LinkNotFoundError
		if errors.As(err, &notFound) {
			return nil, nil, notFound
		}
		logger.Error("Failed to record link click", slog.Int("linkId", linkID), slog.Any("error", err))
		return nil, nil, fmt.Errorf("failed to record link click: %w", err)
	}

	updated, err := links.FindByID(db, linkID)
	if err != nil {
		return nil, nil, err
	}
	return &click, updated, nil
}

// CountProfileViews returns the total number of recorded profile views.
func CountProfileViews(db *gorm.DB) (int64, error) {
	var count int64
	err := db.Model(&ProfileView{}).Count(&count).Error
	return count, err
}

// CountLinkClicks returns the total number of recorded link clicks.
func CountLinkClicks(db *gorm.DB) (int64, error) {
	var count int64
	err := db.Model(&LinkClick{}).Count(&count).Error
	return count, err
}
