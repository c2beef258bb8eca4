// Package audit appends who-did-what records for mutating operations.
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/junaidrashid-git/crm-admin-api/models"
)

type Actor struct {
	Type models.ActorType
	ID   uint
	Role string
}

type Entry struct {
	Actor      Actor
	Action     string // e.g. "order.cancel"
	EntityType string // e.g. "order"
	EntityID   uint
	Before     any
	After      any
}

// Record writes e using db, which should be the caller's transaction so the
// audit row commits or rolls back with the change it describes.
func Record(db *gorm.DB, e Entry) error {
	before, err := snapshot(e.Before)
	if err != nil {
		return fmt.Errorf("audit before snapshot: %w", err)
	}
	after, err := snapshot(e.After)
	if err != nil {
		return fmt.Errorf("audit after snapshot: %w", err)
	}

	row := models.AuditLog{
		ActorType:  e.Actor.Type,
		ActorID:    e.Actor.ID,
		ActorRole:  e.Actor.Role,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Before:     before,
		After:      after,
		CreatedAt:  time.Now(),
	}
	if err := db.Create(&row).Error; err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// snapshot serialises v through its JSON tags, so fields tagged `json:"-"`
// (password hashes, API keys) never reach the log.
func snapshot(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type Filter struct {
	EntityType string
	EntityID   uint
	ActorType  models.ActorType
	ActorID    uint
	Limit      int
}

// List returns the newest records first.
func List(db *gorm.DB, f Filter) ([]models.AuditLog, error) {
	q := db.Model(&models.AuditLog{})
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.ActorType != "" {
		q = q.Where("actor_type = ?", f.ActorType)
	}
	if f.ActorID != 0 {
		q = q.Where("actor_id = ?", f.ActorID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var logs []models.AuditLog
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
