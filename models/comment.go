package models

import "time"

// Comment ist append-only und wird für die Anzeige aufsteigend
// nach Erstellzeit sortiert.
type Comment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	ReportID uint   `json:"report_id" gorm:"index;not null"`
	UserID   uint   `json:"user_id" gorm:"index;not null"`
	Content  string `json:"content" gorm:"type:text;not null"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Comment) TableName() string {
	return "comments"
}
