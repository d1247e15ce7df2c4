package delivery

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sigeso/sst-registry/pkg/documents"
	"github.com/sigeso/sst-registry/pkg/lifecycle"
	"github.com/sigeso/sst-registry/pkg/sentinel"
)

// Store provides persistence for PPE delivery certificates.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the delivery tables.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&Record{}, &Line{})
}

func (s *Store) get(tx *gorm.DB, company, id string, lock bool) (*Record, error) {
	q := tx
	if lock {
		q = documents.LockForUpdate(tx)
	}
	var rec Record
	if err := q.Where("company = ? AND id = ?", company, id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("delivery %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Store) lines(tx *gorm.DB, docID string) ([]Line, error) {
	var lines []Line
	err := tx.Where("document_id = ?", docID).Order("sequence_index").Find(&lines).Error
	return lines, err
}

func (s *Store) replaceLines(tx *gorm.DB, docID string, lines []Line) error {
	if err := tx.Where("document_id = ?", docID).Delete(&Line{}).Error; err != nil {
		return err
	}
	for i := range lines {
		lines[i].ID = uuid.NewString()
		lines[i].DocumentID = docID
		lines[i].SequenceIndex = i + 1
	}
	if len(lines) > 0 {
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}
	}
	return nil
}

// Get loads a delivery with its lines.
func (s *Store) Get(company, id string) (*Document, error) {
	rec, err := s.get(s.db, company, id, false)
	if err != nil {
		return nil, err
	}
	lines, err := s.lines(s.db, rec.ID)
	if err != nil {
		return nil, err
	}
	return &Document{Record: *rec, Lines: lines}, nil
}

// List returns the company's deliveries, optionally filtered by state or
// worker, newest first.
func (s *Store) List(company, state, workerID string) ([]Record, error) {
	q := s.db.Where("company = ?", company)
	if state != "" {
		q = q.Where("state = ?", state)
	}
	if workerID != "" {
		q = q.Where("worker_id = ?", workerID)
	}
	var recs []Record
	if err := q.Order("created_at DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// missingSnapshots returns confirmed, non-exempt records of a company whose
// worker or line snapshot fields are incomplete. The repair pass walks this
// set; drafts, cancelled certificates and exempt deliveries are never
// candidates for backfill.
func (s *Store) missingSnapshots(tx *gorm.DB, company string) ([]Record, error) {
	var recs []Record
	err := tx.Where("company = ? AND state = ? AND exempt = ?",
		company, lifecycle.StateFinalizado, false).
		Where("worker_name = '' OR worker_document = '' OR worker_job_title = ''"+
			" OR EXISTS (SELECT 1 FROM ppe_delivery_lines l"+
			" WHERE l.document_id = ppe_deliveries.id"+
			" AND (l.name = '' OR l.validity_days = 0))").
		Find(&recs).Error
	return recs, err
}
