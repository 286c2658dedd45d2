package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"lab-reports/models"
)

// QueryService baut aus (field, op, value)-Klauseln dynamische
// Report-Abfragen über die verknüpften Tabellen zusammen.
type QueryService struct {
	DB      *gorm.DB
	Logger  *zap.Logger
	Reports *ReportService
}

// NewQueryService erstellt eine neue Instanz des QueryService.
func NewQueryService(db *gorm.DB, logger *zap.Logger) *QueryService {
	return &QueryService{DB: db, Logger: logger, Reports: NewReportService(db, logger)}
}

// FilterClause ist eine einzelne Filterbedingung aus POST /query.
type FilterClause struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

// filterColumns bildet die unterstützten Feldnamen auf ihre Spalten ab.
// Felder außerhalb dieser Tabelle werden ignoriert.
var filterColumns = map[string]string{
	"report_title":     "reports.title",
	"presenter":        "users.display_name",
	"paper_year":       "papers.published_year",
	"paper_tag":        "tags.name",
	"author_name":      "authors.name",
	"affiliation_name": "affiliations.name",
}

// filterOps sind die zugelassenen Vergleichsoperatoren (neben "contains").
var filterOps = map[string]bool{
	"=": true, ">": true, ">=": true, "<": true, "<=": true,
}

// Run führt die zusammengesetzte Abfrage aus. Erster Durchlauf plant die
// Joins (jeder höchstens einmal, Paper vor Tag/Author/Affiliation),
// zweiter Durchlauf hängt die Prädikate als UND-Verknüpfung an.
// Eine leere Filterliste liefert alle Reports.
func (s *QueryService) Run(filters []FilterClause) ([]EnrichedReport, error) {
	q := s.DB.Model(&models.Report{})

	joined := map[string]bool{}
	for _, f := range filters {
		switch f.Field {
		case "paper_year", "paper_tag", "author_name", "affiliation_name":
			if !joined["paper"] {
				q = q.Joins("JOIN papers ON papers.id = reports.paper_id")
				joined["paper"] = true
			}
		}
		switch f.Field {
		case "paper_tag":
			if !joined["tag"] {
				q = q.Joins("JOIN paper_tags ON paper_tags.paper_id = papers.id").
					Joins("JOIN tags ON tags.id = paper_tags.tag_id")
				joined["tag"] = true
			}
		case "author_name", "affiliation_name":
			if !joined["author"] {
				q = q.Joins("JOIN paper_authors ON paper_authors.paper_id = papers.id").
					Joins("JOIN authors ON authors.id = paper_authors.author_id")
				joined["author"] = true
			}
			if f.Field == "affiliation_name" && !joined["affiliation"] {
				q = q.Joins("JOIN author_affiliations ON author_affiliations.author_id = authors.id").
					Joins("JOIN affiliations ON affiliations.id = author_affiliations.affiliation_id")
				joined["affiliation"] = true
			}
		case "presenter":
			if !joined["presenter"] {
				q = q.Joins("JOIN users ON users.id = reports.user_id")
				joined["presenter"] = true
			}
		}
	}

	for _, f := range filters {
		q = s.applyFilter(q, f)
	}

	// DISTINCT gleicht den Zeilen-Fan-out der n:m-Joins aus.
	var reports []models.Report
	if err := q.Distinct("reports.*").Order("reports.created_at desc").Find(&reports).Error; err != nil {
		s.Logger.Error("Dynamic report query failed", zap.Error(err))
		return nil, err
	}

	return s.Reports.EnrichAll(reports), nil
}

// applyFilter hängt das Prädikat einer Klausel an. Unbekannte Felder
// oder Operatoren werden geloggt und übersprungen statt abgelehnt.
func (s *QueryService) applyFilter(q *gorm.DB, f FilterClause) *gorm.DB {
	col, ok := filterColumns[f.Field]
	if !ok {
		s.Logger.Warn("Ignoring filter with unknown field", zap.String("field", f.Field))
		return q
	}

	switch {
	case f.Op == "contains":
		pattern := "%" + strings.ToLower(fmt.Sprint(f.Value)) + "%"
		return q.Where("LOWER("+col+") LIKE ?", pattern)
	case filterOps[f.Op]:
		return q.Where(col+" "+f.Op+" ?", s.coerceValue(f.Field, f.Value))
	default:
		s.Logger.Warn("Ignoring filter with unknown operator",
			zap.String("field", f.Field), zap.String("op", f.Op))
		return q
	}
}

// coerceValue wandelt String-Werte für paper_year best-effort in Integer
// um; alles andere geht unverändert an den Treiber.
func (s *QueryService) coerceValue(field string, value any) any {
	if field != "paper_year" {
		return value
	}
	raw, ok := value.(string)
	if !ok {
		return value
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		s.Logger.Warn("Ignoring unparseable paper_year value", zap.String("value", raw))
		return value
	}
	return n
}

// ReportsByTag gibt alle Reports zurück, deren Paper das Tag mit exakt
// diesem Namen trägt. Unbekanntes Tag → leere Liste, kein Fehler.
func (s *QueryService) ReportsByTag(name string) ([]EnrichedReport, error) {
	var tag models.Tag
	if err := s.DB.Where("name = ?", name).First(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []EnrichedReport{}, nil
		}
		return nil, err
	}

	var reports []models.Report
	if err := s.DB.Model(&models.Report{}).
		Joins("JOIN papers ON papers.id = reports.paper_id").
		Joins("JOIN paper_tags ON paper_tags.paper_id = papers.id").
		Where("paper_tags.tag_id = ?", tag.ID).
		Distinct("reports.*").
		Order("reports.created_at desc").
		Find(&reports).Error; err != nil {
		s.Logger.Error("Tag query failed", zap.String("tag", name), zap.Error(err))
		return nil, err
	}

	return s.Reports.EnrichAll(reports), nil
}
