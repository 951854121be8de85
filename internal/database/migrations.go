package database

import (
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationLowercaseNoteKeys = "2024-02-12_lowercase_note_keys"

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
		{name: migrationLowercaseNoteKeys, apply: lowercaseNoteKeys},
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
		if err := db.Transaction(migration.apply); err != nil {
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

// lowercaseNoteKeys rewrites note keys written with uppercase ids. When both spellings exist the
// lowercase row wins.
func lowercaseNoteKeys(tx *gorm.DB) error {
	var records []store.KeyValueRecord
	if err := tx.Where("store_key LIKE ? AND store_key <> LOWER(store_key)", "note:%").Find(&records).Error; err != nil {
		return err
	}
	for _, record := range records {
		canonical := strings.ToLower(record.Key)
		var existing int64
		if err := tx.Model(&store.KeyValueRecord{}).Where("store_key = ?", canonical).Count(&existing).Error; err != nil {
			return err
		}
		if existing == 0 {
			if err := tx.Create(&store.KeyValueRecord{
				Key:              canonical,
				Value:            record.Value,
				UpdatedAtSeconds: record.UpdatedAtSeconds,
			}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("store_key = ?", record.Key).Delete(&store.KeyValueRecord{}).Error; err != nil {
			return err
		}
	}
	return nil
}
