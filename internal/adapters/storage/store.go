package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"attendance.client/internal/core/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLiteStore is the local persisted state layer: a single-file database
// holding the device identity settings plus best-effort caches of the
// last-known sites and me-snapshot. Single process, single writer.
type SQLiteStore struct {
	db *gorm.DB
}

type setting struct {
	Key   string `gorm:"primaryKey;size:64"`
	Value string `gorm:"type:text"`
}

type cachedSite struct {
	ID      string `gorm:"primaryKey;size:128"`
	Name    string `gorm:"size:255"`
	Lat     float64
	Lon     float64
	RadiusM float64
	Rank    int `gorm:"index"` // preserves server order
}

type cachedState struct {
	ID        uint   `gorm:"primaryKey"`
	Payload   string `gorm:"type:text"` // JSON model.State
	UpdatedAt time.Time
}

// Open creates or opens the store at path and migrates its schema.
func Open(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	if err := db.AutoMigrate(&setting{}, &cachedSite{}, &cachedState{}); err != nil {
		return nil, fmt.Errorf("failed to migrate local store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Setting returns the stored value for key, or "" when absent.
func (s *SQLiteStore) Setting(ctx context.Context, key string) (string, error) {
	var row setting
	err := s.db.WithContext(ctx).First(&row, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return row.Value, nil
}

// PutSetting upserts one settings key.
func (s *SQLiteStore) PutSetting(ctx context.Context, key, value string) error {
	row := setting{Key: key, Value: value}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

// CachedSites returns the last-known site list in server order.
func (s *SQLiteStore) CachedSites(ctx context.Context) ([]model.Site, error) {
	var rows []cachedSite
	if err := s.db.WithContext(ctx).Order("rank").Find(&rows).Error; err != nil {
		return nil, err
	}
	sites := make([]model.Site, 0, len(rows))
	for _, r := range rows {
		sites = append(sites, model.Site{ID: r.ID, Name: r.Name, Lat: r.Lat, Lon: r.Lon, RadiusM: r.RadiusM})
	}
	return sites, nil
}

// SaveSites replaces the cached site list.
func (s *SQLiteStore) SaveSites(ctx context.Context, sites []model.Site) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&cachedSite{}).Error; err != nil {
			return err
		}
		for i, site := range sites {
			row := cachedSite{ID: site.ID, Name: site.Name, Lat: site.Lat, Lon: site.Lon, RadiusM: site.RadiusM, Rank: i}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// CachedState returns the last-known me-snapshot, or nil when none exists.
func (s *SQLiteStore) CachedState(ctx context.Context) (*model.State, error) {
	var row cachedState
	err := s.db.WithContext(ctx).First(&row, "id = ?", 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state model.State
	if err := json.Unmarshal([]byte(row.Payload), &state); err != nil {
		return nil, fmt.Errorf("corrupt cached state: %w", err)
	}
	return &state, nil
}

// SaveState replaces the cached me-snapshot.
func (s *SQLiteStore) SaveState(ctx context.Context, state *model.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	row := cachedState{ID: 1, Payload: string(payload), UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}
