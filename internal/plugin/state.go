package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// State is the persisted enable flag and settings of one plugin.
type State struct {
	ID           string `gorm:"primaryKey;size:64"`
	Enabled      bool   `gorm:"not null"`
	SettingsJSON string `gorm:"type:text"`
	UpdatedAt    time.Time
}

func (State) TableName() string { return "plugin_states" }

func (s State) Settings() (map[string]any, error) {
	if s.SettingsJSON == "" {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(s.SettingsJSON), &out); err != nil {
		return nil, fmt.Errorf("decode settings of %s: %w", s.ID, err)
	}
	return out, nil
}

type StateStore interface {
	LoadAll(ctx context.Context) (map[string]State, error)
	Save(ctx context.Context, id string, enabled bool, settings map[string]any) error
}

type GormStateStore struct {
	db *gorm.DB
}

func NewGormStateStore(db *gorm.DB) *GormStateStore {
	return &GormStateStore{db: db}
}

func (s *GormStateStore) LoadAll(ctx context.Context) (map[string]State, error) {
	var rows []State
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]State, len(rows))
	for _, r := range rows {
		out[r.ID] = r
	}
	return out, nil
}

func (s *GormStateStore) Save(ctx context.Context, id string, enabled bool, settings map[string]any) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	row := State{ID: id, Enabled: enabled, SettingsJSON: string(raw)}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"enabled", "settings_json", "updated_at"}),
		}).
		Create(&row).Error
}
