package events

import "time"

// Device types accepted for a profile view.
var DeviceTypes = []string{"mobile", "desktop", "tablet"}

// ProfileView records one visit to a user's public page.
type ProfileView struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     uint      `gorm:"index;not null" json:"userId"`
	ViewedAt   time.Time `gorm:"index;not null" json:"viewedAt"`
	Referrer   *string   `json:"referrer"`
	DeviceType *string   `json:"deviceType"`
	Country    *string   `gorm:"size:2" json:"country"`
}

// LinkClick records one click on a link.
type LinkClick struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	LinkID    uint      `gorm:"index;not null" json:"linkId"`
	ClickedAt time.Time `gorm:"index;not null" json:"clickedAt"`
	Referrer  *string   `json:"referrer"`
}
