package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lab-reports/models"
)

// seedQueryFixture legt drei Reports an: zwei mit Paper/Autoren/Tags
// und verschiedenen Presentern, einen verwaisten ohne alles.
func seedQueryFixture(t *testing.T) *QueryService {
	t.Helper()

	db := openTestDB(t)
	reports := NewReportService(db, zap.NewNop())

	alice := models.User{Username: "alice", DisplayName: "Alice Wang"}
	require.NoError(t, db.Create(&alice).Error)
	bob := models.User{Username: "bob", DisplayName: "Bob Chen"}
	require.NoError(t, db.Create(&bob).Error)

	_, err := reports.Create(ReportInput{
		Title:         "Attention Is All You Need",
		MeetingTitle:  "NLP reading group",
		PaperTitle:    "Attention Is All You Need",
		PublishedYear: "2017",
		Venue:         "NeurIPS",
		Authors:       []AuthorInput{{Name: "J. Doe", Affiliations: "MIT"}},
		TagsRaw:       "nlp, transformers",
	}, &alice)
	require.NoError(t, err)

	_, err = reports.Create(ReportInput{
		Title:         "Deep Residual Learning",
		PaperTitle:    "Deep Residual Learning for Image Recognition",
		PublishedYear: "2015",
		Venue:         "CVPR",
		Authors:       []AuthorInput{{Name: "K. He", Affiliations: "Microsoft Research"}},
		TagsRaw:       "vision",
	}, &bob)
	require.NoError(t, err)

	_, err = reports.Create(ReportInput{Title: "Journal club logistics"}, nil)
	require.NoError(t, err)

	return NewQueryService(db, zap.NewNop())
}

func titlesOf(results []EnrichedReport) []string {
	titles := make([]string, 0, len(results))
	for _, r := range results {
		titles = append(titles, r.Title)
	}
	return titles
}

func TestQueryEmptyFilterListReturnsAll(t *testing.T) {
	svc := seedQueryFixture(t)

	results, err := svc.Run(nil)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestQueryTitleContains(t *testing.T) {
	svc := seedQueryFixture(t)

	results, err := svc.Run([]FilterClause{
		{Field: "report_title", Op: "contains", Value: "ATTENTION"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Attention Is All You Need", results[0].Title)
}

func TestQueryPresenterEquals(t *testing.T) {
	svc := seedQueryFixture(t)

	results, err := svc.Run([]FilterClause{
		{Field: "presenter", Op: "=", Value: "Alice Wang"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Attention Is All You Need", results[0].Title)
}

func TestQueryPaperYearComparisons(t *testing.T) {
	svc := seedQueryFixture(t)

	cases := []struct {
		op    string
		value any
		want  []string
	}{
		{">", 2016, []string{"Attention Is All You Need"}},
		{">=", 2015, []string{"Attention Is All You Need", "Deep Residual Learning"}},
		{"<", 2016, []string{"Deep Residual Learning"}},
		{"<=", 2017, []string{"Attention Is All You Need", "Deep Residual Learning"}},
		{"=", "2015", []string{"Deep Residual Learning"}}, // String wird koerziert
	}
	for _, tc := range cases {
		results, err := svc.Run([]FilterClause{
			{Field: "paper_year", Op: tc.op, Value: tc.value},
		})
		require.NoError(t, err, "op %s", tc.op)
		assert.ElementsMatch(t, tc.want, titlesOf(results), "op %s", tc.op)
	}
}

func TestQueryPaperTagEquals(t *testing.T) {
	svc := seedQueryFixture(t)

	results, err := svc.Run([]FilterClause{
		{Field: "paper_tag", Op: "=", Value: "nlp"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Attention Is All You Need", results[0].Title)
}

func TestQueryAuthorAndAffiliation(t *testing.T) {
	svc := seedQueryFixture(t)

	results, err := svc.Run([]FilterClause{
		{Field: "author_name", Op: "=", Value: "K. He"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Deep Residual Learning"}, titlesOf(results))

	results, err = svc.Run([]FilterClause{
		{Field: "affiliation_name", Op: "=", Value: "MIT"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Attention Is All You Need"}, titlesOf(results))
}

func TestQueryConjunction(t *testing.T) {
	svc := seedQueryFixture(t)

	results, err := svc.Run([]FilterClause{
		{Field: "paper_year", Op: ">=", Value: 2015},
		{Field: "paper_tag", Op: "=", Value: "vision"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Deep Residual Learning"}, titlesOf(results))
}

func TestQueryDuplicateJoinsAndDistinct(t *testing.T) {
	svc := seedQueryFixture(t)

	// Zwei Tag-Klauseln: der Join darf nur einmal gebaut werden, und
	// ein Paper mit zwei passenden Tags liefert den Report genau einmal.
	results, err := svc.Run([]FilterClause{
		{Field: "paper_tag", Op: "contains", Value: "n"},
		{Field: "paper_tag", Op: "contains", Value: "n"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Attention Is All You Need", "Deep Residual Learning"}, titlesOf(results))
}

func TestQueryUnknownFieldIgnored(t *testing.T) {
	svc := seedQueryFixture(t)

	results, err := svc.Run([]FilterClause{
		{Field: "shoe_size", Op: "=", Value: 42},
	})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestQueryUnknownOperatorIgnored(t *testing.T) {
	svc := seedQueryFixture(t)

	results, err := svc.Run([]FilterClause{
		{Field: "report_title", Op: "~=", Value: "Attention"},
	})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestQueryResultsAreEnriched(t *testing.T) {
	svc := seedQueryFixture(t)

	results, err := svc.Run([]FilterClause{
		{Field: "paper_tag", Op: "=", Value: "nlp"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].User)
	assert.Equal(t, "Alice Wang", results[0].User.DisplayName)
	require.NotNil(t, results[0].Meeting)
	assert.Equal(t, "NLP reading group", results[0].Meeting.Title)

	tagNames := make([]string, 0, len(results[0].Tags))
	for _, tag := range results[0].Tags {
		tagNames = append(tagNames, tag.Name)
	}
	assert.ElementsMatch(t, []string{"nlp", "transformers"}, tagNames)
}

func TestReportsByTag(t *testing.T) {
	svc := seedQueryFixture(t)

	results, err := svc.ReportsByTag("nlp")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Attention Is All You Need"}, titlesOf(results))

	// Unbekanntes Tag: leere Liste, kein Fehler.
	results, err = svc.ReportsByTag("does-not-exist")
	require.NoError(t, err)
	assert.Empty(t, results)
}
