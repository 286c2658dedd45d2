package models

// Author wird anhand des exakten Namens dedupliziert (Unique-Index,
// konflikttolerantes Insert im Service).
type Author struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;not null"`

	Affiliations []Affiliation `json:"affiliations,omitempty" gorm:"many2many:author_affiliations"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Author) TableName() string {
	return "authors"
}
