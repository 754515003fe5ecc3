package users

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"linkpage/internal/validation"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// User is the owner of a public profile page.
type User struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username        string    `gorm:"uniqueIndex;not null" json:"username"`
	Name            *string   `json:"name"`
	Bio             *string   `json:"bio"`
	ProfileImageURL *string   `gorm:"column:profile_image_url" json:"profileImageUrl"`
	CreatedAt       time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt       time.Time `gorm:"not null" json:"updatedAt"`
}

// ErrUserExists is returned when attempting to create a user that already exists.
var ErrUserExists = &validation.Error{
	Kind:    validation.KindConflict,
	Code:    "USERNAME_EXISTS",
	Field:   "username",
	Message: "Username already exists",
}

// UserNotFoundError represents a lookup for a user that does not exist
type UserNotFoundError struct {
	Username string
	ID       uint
}

func (e *UserNotFoundError) Error() string {
	if e.Username != "" {
		return fmt.Sprintf("user not found: %s", e.Username)
	}
	return fmt.Sprintf("user not found: %d", e.ID)
}

// NewUserNotFoundError creates a new UserNotFoundError for a username
func NewUserNotFoundError(username string) *UserNotFoundError {
	return &UserNotFoundError{Username: username}
}

// CreateInput carries the fields accepted when creating a user.
type CreateInput struct {
	Username        validation.Optional `json:"username"`
	Name            validation.Optional `json:"name"`
	Bio             validation.Optional `json:"bio"`
	ProfileImageURL validation.Optional `json:"profile_image_url"`
}

// UpdateInput carries a partial update. Absent fields are left untouched and
// null clears the stored value.
type UpdateInput struct {
	Name            validation.Optional `json:"name"`
	Bio             validation.Optional `json:"bio"`
	ProfileImageURL validation.Optional `json:"profile_image_url"`
}

// NormalizeUsername trims and lowercases a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// ValidateUsername checks an already normalized username.
func ValidateUsername(username string) error {
	if username == "" {
		return validation.Missing("username", "MISSING_USERNAME", "Username is required and cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return validation.Invalid("username", "USERNAME_TOO_SHORT",
			fmt.Sprintf("Username must be at least %d characters long", MinUsernameLength))
	}
	if len(username) > MaxUsernameLength {
		return validation.Invalid("username", "USERNAME_TOO_LONG",
			fmt.Sprintf("Username must not exceed %d characters", MaxUsernameLength))
	}
	if !usernamePattern.MatchString(username) {
		return validation.Invalid("username", "INVALID_USERNAME_FORMAT",
			"Username can only contain lowercase letters, numbers, underscores, and hyphens")
	}
	return nil
}

// FindByUsername retrieves a user by username, ignoring case.
func FindByUsername(db *gorm.DB, username string) (*User, error) {
	normalized := NormalizeUsername(username)
	if normalized == "" {
		return nil, NewUserNotFoundError(username)
	}

	var user User
	if err := db.Where("LOWER(username) = ?", normalized).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewUserNotFoundError(normalized)
		}
		return nil, fmt.Errorf("failed to query user %s: %w", normalized, err)
	}
	return &user, nil
}

// FindByID retrieves a user by ID.
func FindByID(db *gorm.DB, id uint) (*User, error) {
	var user User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &UserNotFoundError{ID: id}
		}
		return nil, fmt.Errorf("failed to query user %d: %w", id, err)
	}
	return &user, nil
}

// Count returns the number of users.
func Count(db *gorm.DB) (int64, error) {
	var count int64
	err := db.Model(&User{}).Count(&count).Error
	return count, err
}

// Create validates input and inserts a new user. It returns ErrUserExists if
// the username is already taken.
func Create(db *gorm.DB, logger *slog.Logger, input CreateInput) (*User, error) {
	if !input.Username.Present() {
		return nil, validation.Missing("username", "MISSING_USERNAME", "Username is required and cannot be empty")
	}

	username := NormalizeUsername(input.Username.Value)
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	// Check existence first
	_, err := FindByUsername(db, username)
	var notFound *UserNotFoundError
	switch {
	case err == nil:
		return nil, ErrUserExists
	case !errors.As(err, &notFound):
		return nil, err
	}

	now := time.Now().UTC()
	user := User{
		Username:        username,
		Name:            input.Name.Trimmed(),
		Bio:             input.Bio.Trimmed(),
		ProfileImageURL: input.ProfileImageURL.Trimmed(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(&user).Error
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logger.Info("Created user", slog.String("username", user.Username), slog.Uint64("id", uint64(user.ID)))
	return &user, nil
}

// Update applies a partial update to the user identified by username and
// always refreshes updated_at.
func Update(db *gorm.DB, logger *slog.Logger, username string, input UpdateInput) (*User, error) {
	user, err := FindByUsername(db, username)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"updated_at": time.Now().UTC(),
	}
	if input.Name.Set {
		updates["name"] = input.Name.Trimmed()
	}
	if input.Bio.Set {
		updates["bio"] = input.Bio.Nullable()
	}
	if input.ProfileImageURL.Set {
		updates["profile_image_url"] = input.ProfileImageURL.Nullable()
	}

	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Model(&User{}).Where("id = ?", user.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update user %s: %w", user.Username, err)
	}

	return FindByID(db, user.ID)
}

// IsUniqueViolation reports whether err comes from a unique index.
func IsUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}
