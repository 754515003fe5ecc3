package profiles

import (
	"time"

	"gorm.io/gorm"

	"linkpage/internal/links"
	"linkpage/internal/themes"
	"linkpage/internal/users"
)

// Profile is everything needed to render a user's public page.
type Profile struct {
	ID              uint          `json:"id"`
	Username        string        `json:"username"`
	Name            *string       `json:"name"`
	Bio             *string       `json:"bio"`
	ProfileImageURL *string       `json:"profileImageUrl"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
	Theme           *themes.Theme `json:"theme"`
	Links           []links.Link  `json:"links"`
}

// Get assembles the profile for username. Only active links are included.
func Get(db *gorm.DB, username string) (*Profile, error) {
	user, err := users.FindByUsername(db, username)
	if err != nil {
		return nil, err
	}

	theme, err := themes.FindByUserID(db, user.ID)
	if err != nil {
		return nil, err
	}

	active, err := links.ActiveForUser(db, user.ID)
	if err != nil {
		return nil, err
	}

	return &Profile{
		ID:              user.ID,
		Username:        user.Username,
		Name:            user.Name,
		Bio:             user.Bio,
		ProfileImageURL: user.ProfileImageURL,
		CreatedAt:       user.CreatedAt,
		UpdatedAt:       user.UpdatedAt,
		Theme:           theme,
		Links:           active,
	}, nil
}
