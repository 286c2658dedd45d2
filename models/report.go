package models

import "time"

// Report ist die zentrale Entität: eine Vorstellung eines Papers in einem
// Lab-Meeting. User, Meeting und Paper sind alle optional — ein Report
// nur mit Titel ist erlaubt (verwaister Report).
type Report struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title      string `json:"title" gorm:"not null"`
	Summary    string `json:"summary,omitempty" gorm:"type:text"`
	SlidesLink string `json:"slides_link,omitempty"`

	UserID    *uint `json:"user_id,omitempty" gorm:"index"`
	MeetingID *uint `json:"meeting_id,omitempty" gorm:"index"`
	PaperID   *uint `json:"paper_id,omitempty" gorm:"index"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Report) TableName() string {
	return "reports"
}
