package models

import "time"

// User repräsentiert ein Labor-Mitglied. Es gibt keine Passwörter:
// die Anwesenheit des Usernames in der Session gilt als Anmeldung.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Username    string `json:"username" gorm:"uniqueIndex;not null"`
	DisplayName string `json:"display_name,omitempty"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (User) TableName() string {
	return "users"
}
