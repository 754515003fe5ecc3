package links

import (
	"bytes"
	"encoding/json"
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

// DefaultLayout is used when a link is created without a layout.
const DefaultLayout = "default"

// Layouts lists the accepted link layouts.
var Layouts = []string{"default", "icon-only", "thumbnail", "card", "minimal", "featured"}

// Link is an entry on a user's profile page.
type Link struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	Title     string    `gorm:"not null" json:"title"`
	URL       string    `gorm:"column:url;not null" json:"url"`
	Icon      *string   `json:"icon"`
	Layout    string    `gorm:"default:'default'" json:"layout"`
	Position  int       `gorm:"not null" json:"position"`
	IsActive  bool      `gorm:"not null;default:true" json:"isActive"`
	Clicks    int64     `gorm:"not null;default:0" json:"clicks"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

// LinkNotFoundError represents a lookup for a link id that does not exist
type LinkNotFoundError struct {
	ID int
}

func (e *LinkNotFoundError) Error() string {
	return fmt.Sprintf("link not found: %d", e.ID)
}

// NewLinkNotFoundError creates a new LinkNotFoundError
func NewLinkNotFoundError(id int) *LinkNotFoundError {
	return &LinkNotFoundError{ID: id}
}

// CreateInput carries the fields accepted when creating a link.
type CreateInput struct {
	UserID   validation.Integer  `json:"user_id"`
	Title    validation.Optional `json:"title"`
	URL      validation.Optional `json:"url"`
	Icon     validation.Optional `json:"icon"`
	Layout   validation.Optional `json:"layout"`
	Position validation.Integer  `json:"position"`
}

// UpdateInput is a partial update; absent fields are left untouched.
type UpdateInput struct {
	Title    validation.Optional `json:"title"`
	URL      validation.Optional `json:"url"`
	Icon     validation.Optional `json:"icon"`
	Layout   validation.Optional `json:"layout"`
	Position validation.Integer  `json:"position"`
	IsActive *bool               `json:"is_active"`
}

// ReorderEntry assigns a position to a link id.
type ReorderEntry struct {
	ID       validation.Integer `json:"id"`
	Position validation.Integer `json:"position"`
}

func validateLayout(layout validation.Optional) error {
	if layout.Present() && !validation.OneOf(layout.Value, Layouts) {
		return validation.Invalid("layout", "INVALID_LAYOUT",
			fmt.Sprintf("layout must be one of: %s", strings.Join(Layouts, ", ")))
	}
	return nil
}

// FindByID retrieves a link by id.
func FindByID(db *gorm.DB, id int) (*Link, error) {
	var link Link
	if err := db.Where("id = ?", id).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewLinkNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to query link %d: %w", id, err)
	}
	return &link, nil
}

// ActiveForUser returns the user's active links ordered by position.
func ActiveForUser(db *gorm.DB, userID uint) ([]Link, error) {
	result := []Link{}
	err := db.Where("user_id = ? AND is_active = ?", userID, true).
		Order("position ASC").
		Order("id ASC").
		Find(&result).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query links for user %d: %w", userID, err)
	}
	return result, nil
}

// ForUser returns all of the user's links, active or not, ordered by position.
func ForUser(db *gorm.DB, userID uint) ([]Link, error) {
	result := []Link{}
	err := db.Where("user_id = ?", userID).Order("position ASC").Order("id ASC").Find(&result).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query links for user %d: %w", userID, err)
	}
	return result, nil
}

// Create validates input and inserts an active link with zero clicks.
func Create(db *gorm.DB, logger *slog.Logger, input CreateInput) (*Link, error) {
	if input.UserID.Blank() {
		return nil, validation.Missing("user_id", "MISSING_USER_ID", "user_id is required")
	}
	if !input.Title.Present() || input.Title.Value == "" {
		return nil, validation.Missing("title", "MISSING_TITLE", "title is required")
	}
	if !input.URL.Present() || input.URL.Value == "" {
		return nil, validation.Missing("url", "MISSING_URL", "url is required")
	}
	if !input.Position.Present() {
		return nil, validation.Missing("position", "MISSING_POSITION", "position is required")
	}

	userID, err := input.UserID.Int()
	if err != nil || userID < 0 {
		return nil, validation.Invalid("user_id", "INVALID_USER_ID", "user_id must be a valid integer")
	}
	position, err := input.Position.Int()
	if err != nil {
		return nil, validation.Invalid("position", "INVALID_POSITION", "position must be a valid integer")
	}
	if err := validateLayout(input.Layout); err != nil {
		return nil, err
	}

	title := input.Title.Trimmed()
	if title == nil {
		return nil, validation.Invalid("title", "EMPTY_TITLE", "title cannot be empty")
	}
	url := input.URL.Trimmed()
	if url == nil {
		return nil, validation.Invalid("url", "EMPTY_URL", "url cannot be empty")
	}

	if _, err := users.FindByID(db, uint(userID)); err != nil {
		return nil, err
	}

	layout := DefaultLayout
	if input.Layout.Present() {
		layout = input.Layout.Value
	}

	now := time.Now().UTC()
	link := Link{
		UserID:    uint(userID),
		Title:     *title,
		URL:       *url,
		Icon:      input.Icon.Nullable(),
		Layout:    layout,
		Position:  position,
		IsActive:  true,
		Clicks:    0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(&link).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create link: %w", err)
	}

	return &link, nil
}

// Update applies a partial update and refreshes updated_at.
func Update(db *gorm.DB, logger *slog.Logger, id int, input UpdateInput) (*Link, error) {
	link, err := FindByID(db, id)
	if err != nil {
		return nil, err
	}

	if err := validateLayout(input.Layout); err != nil {
		return nil, err
	}

	updates := map[string]any{
		"updated_at": time.Now().UTC(),
	}

	if input.Title.Set {
		title := input.Title.Trimmed()
		if title == nil {
			return nil, validation.Invalid("title", "EMPTY_TITLE", "title cannot be empty")
		}
		updates["title"] = *title
	}
	if input.URL.Set {
		url := input.URL.Trimmed()
		if url == nil {
			return nil, validation.Invalid("url", "EMPTY_URL", "url cannot be empty")
		}
		updates["url"] = *url
	}
	if input.Icon.Set {
		updates["icon"] = input.Icon.Nullable()
	}
	if input.Layout.Set {
		if input.Layout.Null {
			updates["layout"] = DefaultLayout
		} else {
			updates["layout"] = input.Layout.Value
		}
	}
	if input.Position.Present() {
		position, err := input.Position.Int()
		if err != nil {
			return nil, validation.Invalid("position", "INVALID_POSITION", "position must be a valid integer")
		}
		updates["position"] = position
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}

	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Model(&Link{}).Where("id = ?", link.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update link %d: %w", id, err)
	}

	return FindByID(db, id)
}

// Delete removes a link together with its recorded clicks and returns the
// deleted record.
func Delete(db *gorm.DB, logger *slog.Logger, id int) (*Link, error) {
	link, err := FindByID(db, id)
	if err != nil {
		return nil, err
	}

	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM link_clicks WHERE link_id = ?", link.ID).Error; err != nil {
			return err
		}
		result := tx.Delete(&Link{}, link.ID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return NewLinkNotFoundError(id)
		}
		return nil
	})
	if err != nil {
		var notFound *LinkNotFoundError
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, fmt.Errorf("failed to delete link %d: %w", id, err)
	}

	logger.Info("Deleted link", slog.Int("id", id), slog.Uint64("userId", uint64(link.UserID)))
	return link, nil
}

// ParseReorderEntries decodes the links array of a reorder request.
func ParseReorderEntries(raw json.RawMessage) ([]ReorderEntry, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, validation.Missing("links", "MISSING_LINKS_ARRAY", "Links array is required")
	}
	if trimmed[0] != '[' {
		return nil, validation.Invalid("links", "INVALID_LINKS_FORMAT", "Links must be an array")
	}

	var entries []ReorderEntry
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, validation.Invalid("links", "INVALID_LINKS_FORMAT", "Links must be an array of {id, position} objects")
	}
	if len(entries) == 0 {
		return nil, validation.Invalid("links", "EMPTY_LINKS_ARRAY", "Links array cannot be empty")
	}
	return entries, nil
}

type reorderUpdate struct {
	id       int
	position int
}

func validateReorder(entries []ReorderEntry) ([]reorderUpdate, error) {
	if len(entries) == 0 {
		return nil, validation.Invalid("links", "EMPTY_LINKS_ARRAY", "Links array cannot be empty")
	}

	updates := make([]reorderUpdate, 0, len(entries))
	for i, entry := range entries {
		if entry.ID.Absent() {
			return nil, validation.Missing("id", "MISSING_LINK_ID",
				fmt.Sprintf("Link at index %d is missing id field", i))
		}
		if entry.Position.Absent() {
			return nil, validation.Missing("position", "MISSING_LINK_POSITION",
				fmt.Sprintf("Link at index %d is missing position field", i))
		}
		id, err := entry.ID.Int()
		if err != nil {
			return nil, validation.Invalid("id", "INVALID_LINK_ID",
				fmt.Sprintf("Link at index %d has invalid id (must be an integer)", i))
		}
		position, err := entry.Position.Int()
		if err != nil {
			return nil, validation.Invalid("position", "INVALID_LINK_POSITION",
				fmt.Sprintf("Link at index %d has invalid position (must be an integer)", i))
		}
		updates = append(updates, reorderUpdate{id: id, position: position})
	}
	return updates, nil
}

// Reorder validates every entry, then updates each link's position in its own
// write. Entries whose id matches no row are skipped; a store failure stops the
// loop and is returned. It returns the number of rows updated.
func Reorder(db *gorm.DB, logger *slog.Logger, entries []ReorderEntry) (int, error) {
	updates, err := validateReorder(entries)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, u := range updates {
		var affected int64
		err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
			result := tx.Model(&Link{}).Where("id = ?", u.id).Updates(map[string]any{
				"position":   u.position,
				"updated_at": time.Now().UTC(),
			})
			affected = result.RowsAffected
			return result.Error
		})
		if err != nil {
			logger.Error("Failed to update link position",
				slog.Int("id", u.id),
				slog.Int("position", u.position),
				slog.Any("error", err))
			return updated, fmt.Errorf("failed to update link %d position: %w", u.id, err)
		}
		if affected > 0 {
			updated++
		}
	}

	return updated, nil
}
