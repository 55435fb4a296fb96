package whatsapp

import (
	"time"

	"github.com/eduardoaugusto358-droid/vivassce-baileys-backend/internal/domain"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// InstanceStore handles persistence for instance rows.
type InstanceStore interface {
	// Create inserts a new instance row
	Create(inst *domain.WaInstance) error

	// UpdateStatus persists the live status and phone of an instance
	UpdateStatus(id, status, phone string) error

	// Get retrieves an instance row by id
	Get(id string) (*domain.WaInstance, error)

	// GetByAPIKey retrieves an instance row by its api key
	GetByAPIKey(key string) (*domain.WaInstance, error)

	// List retrieves all instance rows, newest first
	List() ([]domain.WaInstance, error)

	// Delete removes an instance row
	Delete(id string) error
}

// AuditStore handles the append-only send attempt log.
type AuditStore interface {
	// Append inserts one audit record; records are never mutated afterwards
	Append(rec *domain.WaMessageLog) error

	// ListByInstance retrieves recent audit records for one instance
	ListByInstance(id string, limit int) ([]domain.WaMessageLog, error)

	// PurgeInstance removes the audit history of a deleted instance
	PurgeInstance(id string) error

	// DeleteOlderThan removes records older than N days
	DeleteOlderThan(days int) (int64, error)
}

// GormInstanceStore is the GORM implementation of InstanceStore.
type GormInstanceStore struct {
	db *gorm.DB
}

func NewGormInstanceStore(db *gorm.DB) *GormInstanceStore {
	return &GormInstanceStore{db: db}
}

func (s *GormInstanceStore) Create(inst *domain.WaInstance) error {
	return errors.Wrap(s.db.Create(inst).Error, "create instance")
}

func (s *GormInstanceStore) UpdateStatus(id, status, phone string) error {
	return s.db.Model(&domain.WaInstance{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"phone":      phone,
		"updated_at": time.Now(),
	}).Error
}

func (s *GormInstanceStore) Get(id string) (*domain.WaInstance, error) {
	var inst domain.WaInstance
	err := s.db.Where("id = ?", id).First(&inst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (s *GormInstanceStore) GetByAPIKey(key string) (*domain.WaInstance, error) {
	var inst domain.WaInstance
	err := s.db.Where("api_key = ?", key).First(&inst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (s *GormInstanceStore) List() ([]domain.WaInstance, error) {
	var insts []domain.WaInstance
	err := s.db.Order("created_at DESC").Find(&insts).Error
	return insts, err
}

func (s *GormInstanceStore) Delete(id string) error {
	return s.db.Where("id = ?", id).Delete(&domain.WaInstance{}).Error
}

// GormAuditStore is the GORM implementation of AuditStore.
type GormAuditStore struct {
	db *gorm.DB
}

func NewGormAuditStore(db *gorm.DB) *GormAuditStore {
	return &GormAuditStore{db: db}
}

func (s *GormAuditStore) Append(rec *domain.WaMessageLog) error {
	return errors.Wrap(s.db.Create(rec).Error, "append audit record")
}

func (s *GormAuditStore) ListByInstance(id string, limit int) ([]domain.WaMessageLog, error) {
	var recs []domain.WaMessageLog
	err := s.db.Where("instance_id = ?", id).Order("id DESC").Limit(limit).Find(&recs).Error
	return recs, err
}

func (s *GormAuditStore) PurgeInstance(id string) error {
	return s.db.Where("instance_id = ?", id).Delete(&domain.WaMessageLog{}).Error
}

func (s *GormAuditStore) DeleteOlderThan(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	res := s.db.Where("created_at < ?", cutoff).Delete(&domain.WaMessageLog{})
	return res.RowsAffected, res.Error
}
