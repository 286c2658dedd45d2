package models

import "time"

// LabMeeting repräsentiert einen Termin, an dem Reports vorgestellt werden.
// Das Datum ist optional: ein nicht parsebarer Datums-String beim Upload
// lässt das Feld leer.
type LabMeeting struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Title    string     `json:"title" gorm:"not null"`
	Date     *time.Time `json:"date,omitempty"`
	Location string     `json:"location,omitempty"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (LabMeeting) TableName() string {
	return "lab_meetings"
}
