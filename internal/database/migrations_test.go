package database

import (
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type legacyVisitorRow struct {
	ID      int64  `gorm:"column:id;primaryKey;autoIncrement"`
	IP      string `gorm:"column:ip"`
	Country string `gorm:"column:country"`
	City    string `gorm:"column:city"`
	Device  string `gorm:"column:device"`
	Browser string `gorm:"column:browser"`
	Page    string `gorm:"column:page"`
}

func (legacyVisitorRow) TableName() string {
	return visitorsTable
}

func TestApplyMigrationsNormalizesVisitorUnknowns(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&legacyVisitorRow{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	row := legacyVisitorRow{IP: "203.0.113.9", Country: "", City: "", Device: "desktop", Browser: "", Page: "/"}
	if err := database.Create(&row).Error; err != nil {
		testContext.Fatalf("failed to insert visitor: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var stored legacyVisitorRow
	if err := database.Where("id = ?", row.ID).Take(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload visitor: %v", err)
	}
	if stored.Country != unknownValue || stored.City != unknownValue || stored.Browser != unknownValue {
		testContext.Fatalf("expected blanks to be normalized, got %+v", stored)
	}
	if stored.IP != "203.0.113.9" || stored.Device != "desktop" {
		testContext.Fatalf("expected populated columns to be untouched, got %+v", stored)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationNormalizeVisitorUnknowns).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

func TestApplyMigrationsSkipsMissingVisitorsTable(testContext *testing.T) {
	database, err := gorm.Open(sqlite.Open("file:migrations-empty?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate ledger: %v", err)
	}
	if err := applyMigrations(database, nil); err != nil {
		testContext.Fatalf("expected migrations to tolerate a missing visitors table: %v", err)
	}
}
