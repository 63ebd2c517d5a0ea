package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is one stored value of one visitor.
type Entry struct {
	VisitorID string `gorm:"primaryKey;size:36"`
	Key       string `gorm:"primaryKey;column:name;size:32"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (Entry) TableName() string { return "storage_entries" }

type GormOpener struct {
	DB       *gorm.DB
	Visitors VisitorCookie
}

func (o *GormOpener) Open(w http.ResponseWriter, r *http.Request) (Store, error) {
	return &GormStore{DB: o.DB, VisitorID: o.Visitors.Ensure(w, r)}, nil
}

// GormStore is the state of one visitor kept in a SQL table.
type GormStore struct {
	DB        *gorm.DB
	VisitorID string
}

func (s *GormStore) Get(ctx context.Context, key string) (string, error) {
	var e Entry
	err := s.DB.WithContext(ctx).
		Where("visitor_id = ? AND name = ?", s.VisitorID, key).
		First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return e.Value, nil
}

func (s *GormStore) Set(ctx context.Context, key, value string) error {
	e := Entry{VisitorID: s.VisitorID, Key: key, Value: value}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "visitor_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *GormStore) Remove(ctx context.Context, key string) error {
	err := s.DB.WithContext(ctx).
		Where("visitor_id = ? AND name = ?", s.VisitorID, key).
		Delete(&Entry{}).Error
	if err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
