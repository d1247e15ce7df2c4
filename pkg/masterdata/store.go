package masterdata

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sigeso/sst-registry/pkg/sentinel"
)

// Store provides CRUD for master-data records.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the master-data tables.
func (s *Store) AutoMigrate() error {
	for _, model := range []any{&WorkerRecord{}, &PPEItemRecord{}, &CompanyRecord{}} {
		if err := s.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("auto-migrate master data: %w", err)
		}
	}
	return nil
}

// SaveWorker inserts or updates a worker.
func (s *Store) SaveWorker(w *WorkerRecord) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	if w.Company == "" {
		w.Company = "default"
	}
	if err := s.db.Save(w).Error; err != nil {
		return fmt.Errorf("save worker: %w", err)
	}
	return nil
}

// GetWorker loads a worker by id.
func (s *Store) GetWorker(id string) (*WorkerRecord, error) {
	var w WorkerRecord
	err := s.db.Where("id = ?", id).First(&w).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("worker %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get worker: %w", err)
	}
	return &w, nil
}

// ListWorkers returns all active workers of a company.
func (s *Store) ListWorkers(company string) ([]WorkerRecord, error) {
	if company == "" {
		company = "default"
	}
	var workers []WorkerRecord
	if err := s.db.Where("company = ? AND active = ? AND deleted_at IS NULL", company, true).
		Order("full_name ASC").Find(&workers).Error; err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	return workers, nil
}

// SavePPEItem inserts or updates a PPE catalog entry.
func (s *Store) SavePPEItem(p *PPEItemRecord) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Company == "" {
		p.Company = "default"
	}
	if err := s.db.Save(p).Error; err != nil {
		return fmt.Errorf("save ppe item: %w", err)
	}
	return nil
}

// GetPPEItem loads a PPE catalog entry by id.
func (s *Store) GetPPEItem(id string) (*PPEItemRecord, error) {
	var p PPEItemRecord
	err := s.db.Where("id = ?", id).First(&p).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("ppe item %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get ppe item: %w", err)
	}
	return &p, nil
}

// SaveCompany inserts or updates a company.
func (s *Store) SaveCompany(c *CompanyRecord) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if err := s.db.Save(c).Error; err != nil {
		return fmt.Errorf("save company: %w", err)
	}
	return nil
}

// GetCompanyBySlug loads a company by its slug.
func (s *Store) GetCompanyBySlug(slug string) (*CompanyRecord, error) {
	var c CompanyRecord
	err := s.db.Where("slug = ?", slug).First(&c).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("company %s: %w", slug, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &c, nil
}
