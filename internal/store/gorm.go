package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errMissingDatabase = errors.New("store: database handle is required")

// KeyValueRecord is the relational row backing GormStore.
type KeyValueRecord struct {
	Key              string `gorm:"column:store_key;primaryKey;size:190;not null"`
	Value            string `gorm:"column:store_value;type:text;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (KeyValueRecord) TableName() string {
	return "note_store"
}

// GormStore persists values in a single key/value table through GORM (SQLite or Postgres).
type GormStore struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewGormStore wraps an already migrated database handle.
func NewGormStore(db *gorm.DB, clock func() time.Time) (*GormStore, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	if clock == nil {
		clock = time.Now
	}
	return &GormStore{db: db, clock: clock}, nil
}

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	var record KeyValueRecord
	err := s.db.WithContext(ctx).Where("store_key = ?", key).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: select %s: %w", key, err)
	}
	return []byte(record.Value), true, nil
}

func (s *GormStore) Put(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	record := KeyValueRecord{
		Key:              key,
		Value:            string(value),
		UpdatedAtSeconds: s.clock().UTC().Unix(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "store_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"store_value", "updated_at_s"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("store: upsert %s: %w", key, err)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Where("store_key = ?", key).Delete(&KeyValueRecord{}).Error; err != nil {
		return fmt.Errorf("store: delete %s: %w", key, err)
	}
	return nil
}

// List orders keys lexically; the cursor is the last key scanned on the previous page.
func (s *GormStore) List(ctx context.Context, options ListOptions) (ListPage, error) {
	limit := options.limit()
	query := s.db.WithContext(ctx).Model(&KeyValueRecord{})
	if options.Prefix != "" {
		query = query.Where("store_key LIKE ? ESCAPE '\\'", escapeLike(options.Prefix)+"%")
	}
	if options.Cursor != "" {
		query = query.Where("store_key > ?", options.Cursor)
	}

	var scanned []string
	if err := query.Order("store_key ASC").Limit(limit+1).Pluck("store_key", &scanned).Error; err != nil {
		return ListPage{}, fmt.Errorf("store: list %q: %w", options.Prefix, err)
	}

	complete := len(scanned) <= limit
	if !complete {
		scanned = scanned[:limit]
	}
	// SQLite LIKE folds ASCII case, so the prefix is re-checked byte for byte.
	keys := make([]string, 0, len(scanned))
	for _, key := range scanned {
		if strings.HasPrefix(key, options.Prefix) {
			keys = append(keys, key)
		}
	}
	page := ListPage{Keys: keys, Complete: complete}
	if !complete && len(scanned) > 0 {
		page.Cursor = scanned[len(scanned)-1]
	}
	return page, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
