package services

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lab-reports/models"
)

// openTestDB öffnet eine In-Memory-SQLite-Datenbank mit dem vollen Schema.
// Shared-Cache + eine Connection, damit alle gorm-Sessions dieselbe DB sehen.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.LabMeeting{},
		&models.Author{},
		&models.Affiliation{},
		&models.Tag{},
		&models.Paper{},
		&models.Report{},
		&models.Comment{},
	))
	return db
}

func newTestReportService(t *testing.T) *ReportService {
	t.Helper()
	return NewReportService(openTestDB(t), zap.NewNop())
}
