package models

import "time"

// Paper repräsentiert die vorgestellte Publikation inkl. ihrer
// Autoren- und Tag-Verknüpfungen (n:m über paper_authors / paper_tags).
type Paper struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Title          string `json:"title" gorm:"not null"`
	PublishedYear  int    `json:"published_year" gorm:"index"`
	PublishedMonth int    `json:"published_month"`
	Venue          string `json:"venue,omitempty"`

	Authors []Author `json:"authors,omitempty" gorm:"many2many:paper_authors"`
	Tags    []Tag    `json:"tags,omitempty" gorm:"many2many:paper_tags"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Paper) TableName() string {
	return "papers"
}
