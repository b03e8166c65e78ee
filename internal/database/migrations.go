package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationNormalizeVisitorUnknowns = "2026-10-01_normalize_visitor_unknowns"
	visitorsTable                     = "visitors"
	unknownValue                      = "Unknown"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationNormalizeVisitorUnknowns, apply: normalizeVisitorUnknowns},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Rows written before enrichment defaults existed carry blanks instead of "Unknown".
func normalizeVisitorUnknowns(db *gorm.DB) error {
	if !db.Migrator().HasTable(visitorsTable) {
		return nil
	}
	for _, column := range []string{"ip", "country", "city", "device", "browser"} {
		if err := db.Table(visitorsTable).
			Where(column+" = ''").
			Update(column, unknownValue).Error; err != nil {
			return err
		}
	}
	return nil
}
