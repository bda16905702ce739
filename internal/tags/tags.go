// Package tags manages tracking tags: named trigger definitions stored next
// to the event log.
package tags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"trackly/internal/events"
)

const (
	DefaultTagType     = "custom"
	DefaultTriggerType = events.PageViewEventName
	maxNameLength      = 100
)

type Tag struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	TagType     string    `gorm:"size:50;not null" json:"type"`
	TriggerType string    `gorm:"size:50;not null" json:"trigger"`
	Config      string    `gorm:"type:text" json:"-"`
	IsActive    bool      `gorm:"not null;index" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ConfigMap decodes the stored JSON config.
func (t *Tag) ConfigMap() map[string]any {
	if t.Config == "" {
		return map[string]any{}
	}
	m := map[string]any{}
	if err := json.Unmarshal([]byte(t.Config), &m); err != nil {
		return map[string]any{}
	}
	return m
}

// MarshalJSON renders Config as an object rather than a string.
func (t Tag) MarshalJSON() ([]byte, error) {
	type alias Tag
	return json.Marshal(struct {
		alias
		Config map[string]any `json:"config"`
	}{alias(t), t.ConfigMap()})
}

// Input carries create and update fields. Nil fields are left unchanged on update.
type Input struct {
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	TagType     *string        `json:"type"`
	TriggerType *string        `json:"trigger"`
	Config      map[string]any `json:"config"`
	IsActive    *bool          `json:"is_active"`
}

type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, logger: logger}
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", events.NewValidationError("name", "is required")
	}
	if len(name) > maxNameLength {
		return "", events.NewValidationError("name", "must be at most %d characters", maxNameLength)
	}
	return name, nil
}

func encodeConfig(cfg map[string]any) (string, error) {
	if cfg == nil {
		return "", nil
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return "", events.NewValidationError("config", "must be a JSON object")
	}
	return string(b), nil
}

func (s *Service) Create(ctx context.Context, in Input) (*Tag, error) {
	if in.Name == nil {
		return nil, events.NewValidationError("name", "is required")
	}
	name, err := validateName(*in.Name)
	if err != nil {
		return nil, err
	}
	cfg, err := encodeConfig(in.Config)
	if err != nil {
		return nil, err
	}

	tag := &Tag{
		Name:        name,
		TagType:     DefaultTagType,
		TriggerType: DefaultTriggerType,
		Config:      cfg,
		IsActive:    true,
	}
	if in.Description != nil {
		tag.Description = *in.Description
	}
	if in.TagType != nil && *in.TagType != "" {
		tag.TagType = *in.TagType
	}
	if in.TriggerType != nil && *in.TriggerType != "" {
		tag.TriggerType = *in.TriggerType
	}

	if err := s.ensureNameFree(ctx, name, 0); err != nil {
		return nil, err
	}

	var createErr error
	err = sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		createErr = tx.Create(tag).Error
		return createErr
	})
	if createErr != nil {
		err = createErr
	}
	if err != nil {
		return nil, storeError("error creating tag", err)
	}

	s.logger.Info("Created tag", slog.Uint64("tag_id", uint64(tag.ID)), slog.String("name", tag.Name))
	return tag, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*Tag, error) {
	var tag Tag
	err := s.db.WithContext(ctx).First(&tag, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("tag %d: %w", id, events.ErrNotFound)
	}
	if err != nil {
		return nil, storeError("error fetching tag", err)
	}
	return &tag, nil
}

// List returns tags ordered by name, active ones only unless includeInactive.
func (s *Service) List(ctx context.Context, includeInactive bool) ([]Tag, error) {
	q := s.db.WithContext(ctx).Order("name ASC")
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	var list []Tag
	if err := q.Find(&list).Error; err != nil {
		return nil, storeError("error listing tags", err)
	}
	return list, nil
}

func (s *Service) Update(ctx context.Context, id uint, in Input) (*Tag, error) {
	tag, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Name != nil {
		name, err := validateName(*in.Name)
		if err != nil {
			return nil, err
		}
		if name != tag.Name {
			if err := s.ensureNameFree(ctx, name, id); err != nil {
				return nil, err
			}
			updates["name"] = name
		}
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.TagType != nil {
		updates["tag_type"] = *in.TagType
	}
	if in.TriggerType != nil {
		updates["trigger_type"] = *in.TriggerType
	}
	if in.Config != nil {
		cfg, err := encodeConfig(in.Config)
		if err != nil {
			return nil, err
		}
		updates["config"] = cfg
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}

	if len(updates) == 0 {
		return tag, nil
	}

	err = sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Model(tag).Updates(updates).Error
	})
	if err != nil {
		return nil, storeError("error updating tag", err)
	}
	return s.Get(ctx, id)
}

// Delete deactivates the tag, or removes the row when hard is set.
func (s *Service) Delete(ctx context.Context, id uint, hard bool) error {
	tag, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	err = sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if hard {
			return tx.Delete(tag).Error
		}
		return tx.Model(tag).Update("is_active", false).Error
	})
	if err != nil {
		return storeError("error deleting tag", err)
	}

	s.logger.Info("Deleted tag", slog.Uint64("tag_id", uint64(id)), slog.Bool("hard", hard))
	return nil
}

func (s *Service) ensureNameFree(ctx context.Context, name string, exceptID uint) error {
	var n int64
	q := s.db.WithContext(ctx).Model(&Tag{}).Where("name = ?", name)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return storeError("error checking tag name", err)
	}
	if n > 0 {
		return fmt.Errorf("tag with name %q already exists: %w", name, events.ErrConstraintViolation)
	}
	return nil
}

func storeError(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%s: %w: %w", op, events.ErrConstraintViolation, err)
	}
	return fmt.Errorf("%s: %w: %w", op, events.ErrStoreUnavailable, err)
}
