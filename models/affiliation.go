package models

// Affiliation wird anhand des exakten Namens dedupliziert.
type Affiliation struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;not null"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Affiliation) TableName() string {
	return "affiliations"
}
