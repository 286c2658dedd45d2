package services

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lab-reports/models"
)

// ReportService kümmert sich um Report-Ingestion und die Anreicherung
// von Reports für Listen- und Detailansichten.
type ReportService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewReportService erstellt eine neue Instanz des ReportService.
func NewReportService(db *gorm.DB, logger *zap.Logger) *ReportService {
	return &ReportService{DB: db, Logger: logger}
}

// AuthorInput ist ein Autor aus dem Upload-Formular: Name plus
// kommaseparierte Affiliations.
type AuthorInput struct {
	Name         string
	Affiliations string
}

// ReportInput sind die rohen Formularfelder des Upload-Handlers.
// Numerische Felder bleiben Strings: ungültige Werte degradieren
// still zu 0/leer statt den Request abzubrechen.
type ReportInput struct {
	Title      string
	Summary    string
	SlidesLink string

	ExistingMeetingID string
	MeetingTitle      string
	MeetingDate       string
	MeetingLocation   string

	ExistingPaperID string
	PaperTitle      string
	PublishedYear   string
	PublishedMonth  string
	Venue           string

	Authors []AuthorInput
	TagsRaw string
}

// EnrichedReport ist ein Report plus den für die Anzeige benötigten
// Nachbar-Entitäten.
type EnrichedReport struct {
	models.Report
	User    *models.User       `json:"user,omitempty"`
	Meeting *models.LabMeeting `json:"meeting,omitempty"`
	Tags    []models.Tag       `json:"tags"`
}

// EnrichedComment ist ein Comment plus Verfasser.
type EnrichedComment struct {
	models.Comment
	User *models.User `json:"user,omitempty"`
}

// ReportDetail bündelt alles für die Detailansicht.
type ReportDetail struct {
	EnrichedReport
	Paper    *models.Paper     `json:"paper,omitempty"`
	Comments []EnrichedComment `json:"comments"`
}

// Create legt einen Report gemäß Formular an. Meeting und Paper werden
// entweder über ihre IDs referenziert oder inline erstellt; Autoren,
// Affiliations und Tags nur im Neu-Paper-Zweig verarbeitet.
// user darf nil sein (Report ohne Besitzer).
func (s *ReportService) Create(in ReportInput, user *models.User) (*models.Report, error) {
	meetingID, err := s.resolveMeeting(in)
	if err != nil {
		return nil, err
	}

	paperID, err := s.resolvePaper(in)
	if err != nil {
		return nil, err
	}

	report := models.Report{
		Title:      in.Title,
		Summary:    in.Summary,
		SlidesLink: in.SlidesLink,
		MeetingID:  meetingID,
		PaperID:    paperID,
	}
	if user != nil {
		report.UserID = &user.ID
	}
	if err := s.DB.Create(&report).Error; err != nil {
		s.Logger.Error("Failed to create report", zap.Error(err))
		return nil, err
	}
	return &report, nil
}

// resolveMeeting gibt die ID eines bestehenden Meetings zurück oder legt
// ein neues an, wenn ein Titel angegeben wurde. Kein Titel, keine ID → nil.
func (s *ReportService) resolveMeeting(in ReportInput) (*uint, error) {
	if id, ok := s.parseID(in.ExistingMeetingID, "existing_meeting_id"); ok {
		return &id, nil
	}
	if in.MeetingTitle == "" {
		return nil, nil
	}

	meeting := models.LabMeeting{
		Title:    in.MeetingTitle,
		Location: in.MeetingLocation,
	}
	if in.MeetingDate != "" {
		if t, err := time.Parse("2006-01-02", in.MeetingDate); err == nil {
			meeting.Date = &t
		} else {
			// Best-effort: ungültiges Datum wird ignoriert, Feld bleibt leer.
			s.Logger.Warn("Ignoring unparseable meeting date",
				zap.String("meeting_date", in.MeetingDate))
		}
	}
	if err := s.DB.Create(&meeting).Error; err != nil {
		return nil, err
	}
	return &meeting.ID, nil
}

// resolvePaper gibt die ID eines bestehenden Papers zurück oder legt ein
// neues an. Autoren und Tags werden ausschließlich für neue Papers
// verarbeitet, die Auswahl eines bestehenden Papers überspringt beides.
func (s *ReportService) resolvePaper(in ReportInput) (*uint, error) {
	if id, ok := s.parseID(in.ExistingPaperID, "existing_paper_id"); ok {
		return &id, nil
	}
	if in.PaperTitle == "" {
		return nil, nil
	}

	paper := models.Paper{
		Title:          in.PaperTitle,
		PublishedYear:  s.parseInt(in.PublishedYear, "published_year"),
		PublishedMonth: s.parseInt(in.PublishedMonth, "published_month"),
		Venue:          in.Venue,
	}
	if err := s.DB.Create(&paper).Error; err != nil {
		return nil, err
	}

	for _, a := range in.Authors {
		author, err := s.findOrCreateAuthor(a.Name)
		if err != nil {
			return nil, err
		}
		for _, affName := range splitCommaList(a.Affiliations) {
			aff, err := s.findOrCreateAffiliation(affName)
			if err != nil {
				return nil, err
			}
			if err := s.DB.Model(author).Association("Affiliations").Append(aff); err != nil {
				return nil, err
			}
		}
		if err := s.DB.Model(&paper).Association("Authors").Append(author); err != nil {
			return nil, err
		}
	}

	for _, tagName := range splitCommaList(in.TagsRaw) {
		tag, err := s.findOrCreateTag(tagName)
		if err != nil {
			return nil, err
		}
		if err := s.DB.Model(&paper).Association("Tags").Append(tag); err != nil {
			return nil, err
		}
	}

	return &paper.ID, nil
}

// findOrCreateAuthor dedupliziert Autoren anhand des exakten Namens.
// Konflikttolerantes Insert gegen den Unique-Index, damit parallele
// Uploads keine Duplikate erzeugen; danach wird die Zeile gelesen.
func (s *ReportService) findOrCreateAuthor(name string) (*models.Author, error) {
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&models.Author{Name: name}).Error; err != nil {
		return nil, err
	}
	var author models.Author
	if err := s.DB.Where("name = ?", name).First(&author).Error; err != nil {
		return nil, err
	}
	return &author, nil
}

// findOrCreateAffiliation dedupliziert Affiliations anhand des exakten Namens.
func (s *ReportService) findOrCreateAffiliation(name string) (*models.Affiliation, error) {
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&models.Affiliation{Name: name}).Error; err != nil {
		return nil, err
	}
	var aff models.Affiliation
	if err := s.DB.Where("name = ?", name).First(&aff).Error; err != nil {
		return nil, err
	}
	return &aff, nil
}

// findOrCreateTag dedupliziert Tags anhand des exakten Namens.
func (s *ReportService) findOrCreateTag(name string) (*models.Tag, error) {
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&models.Tag{Name: name}).Error; err != nil {
		return nil, err
	}
	var tag models.Tag
	if err := s.DB.Where("name = ?", name).First(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

// List gibt alle Reports zurück, neueste zuerst, angereichert mit
// User/Meeting/Tags.
func (s *ReportService) List() ([]EnrichedReport, error) {
	var reports []models.Report
	if err := s.DB.Order("created_at desc").Find(&reports).Error; err != nil {
		return nil, err
	}
	return s.EnrichAll(reports), nil
}

// Detail lädt einen Report samt Paper (inkl. Autoren und deren
// Affiliations) und Kommentaren. Fehlt der Report, kommt
// gorm.ErrRecordNotFound zurück.
func (s *ReportService) Detail(id uint) (*ReportDetail, error) {
	var report models.Report
	if err := s.DB.First(&report, id).Error; err != nil {
		return nil, err
	}

	detail := ReportDetail{
		EnrichedReport: s.Enrich(report),
		Comments:       []EnrichedComment{},
	}

	if report.PaperID != nil {
		var paper models.Paper
		if err := s.DB.Preload("Authors.Affiliations").Preload("Tags").First(&paper, *report.PaperID).Error; err == nil {
			detail.Paper = &paper
		}
	}

	var comments []models.Comment
	if err := s.DB.Where("report_id = ?", report.ID).Order("created_at asc").Find(&comments).Error; err != nil {
		return nil, err
	}
	for _, c := range comments {
		ec := EnrichedComment{Comment: c}
		var u models.User
		if err := s.DB.First(&u, c.UserID).Error; err == nil {
			ec.User = &u
		}
		detail.Comments = append(detail.Comments, ec)
	}

	return &detail, nil
}

// Enrich holt User, Meeting und Tags zu einem Report.
func (s *ReportService) Enrich(r models.Report) EnrichedReport {
	enriched := EnrichedReport{Report: r, Tags: []models.Tag{}}

	if r.UserID != nil {
		var u models.User
		if err := s.DB.First(&u, *r.UserID).Error; err == nil {
			enriched.User = &u
		}
	}
	if r.MeetingID != nil {
		var m models.LabMeeting
		if err := s.DB.First(&m, *r.MeetingID).Error; err == nil {
			enriched.Meeting = &m
		}
	}
	enriched.Tags = s.reportTags(r)

	return enriched
}

// EnrichAll reichert eine Liste von Reports an.
func (s *ReportService) EnrichAll(reports []models.Report) []EnrichedReport {
	enriched := make([]EnrichedReport, 0, len(reports))
	for _, r := range reports {
		enriched = append(enriched, s.Enrich(r))
	}
	return enriched
}

// reportTags gibt die Tags des verknüpften Papers zurück; Reports ohne
// Paper haben keine Tags.
func (s *ReportService) reportTags(r models.Report) []models.Tag {
	tags := []models.Tag{}
	if r.PaperID == nil {
		return tags
	}
	var paper models.Paper
	if err := s.DB.Preload("Tags").First(&paper, *r.PaperID).Error; err != nil {
		return tags
	}
	if paper.Tags != nil {
		tags = paper.Tags
	}
	return tags
}

// parseID interpretiert ein optionales ID-Formularfeld. Alles, was kein
// gültiger nicht-negativer Integer ist, gilt als "nicht ausgewählt".
func (s *ReportService) parseID(raw, field string) (uint, bool) {
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		if err != nil {
			s.Logger.Warn("Ignoring invalid id field",
				zap.String("field", field), zap.String("value", raw))
		}
		return 0, false
	}
	return uint(id), true
}

// parseInt interpretiert ein numerisches Formularfeld best-effort:
// ungültige Werte werden geloggt und zu 0.
func (s *ReportService) parseInt(raw, field string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		s.Logger.Warn("Ignoring invalid numeric field",
			zap.String("field", field), zap.String("value", raw))
		return 0
	}
	return n
}

// splitCommaList zerlegt "a, b ,c" in ["a","b","c"] und verwirft leere Einträge.
func splitCommaList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
