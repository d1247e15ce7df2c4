package ats

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sigeso/sst-registry/pkg/documents"
	"github.com/sigeso/sst-registry/pkg/sentinel"
)

// Store provides persistence for ATS documents and their lines.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the ATS tables.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&Record{}, &HazardLine{}, &StepLine{})
}

func (s *Store) get(tx *gorm.DB, company, id string, lock bool) (*Record, error) {
	q := tx
	if lock {
		q = documents.LockForUpdate(tx)
	}
	var rec Record
	if err := q.Where("company = ? AND id = ?", company, id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("ats %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Store) lines(tx *gorm.DB, docID string) ([]HazardLine, []StepLine, error) {
	var hazards []HazardLine
	if err := tx.Where("document_id = ?", docID).Order("sequence_index").Find(&hazards).Error; err != nil {
		return nil, nil, err
	}
	var steps []StepLine
	if err := tx.Where("document_id = ?", docID).Order("sequence_index").Find(&steps).Error; err != nil {
		return nil, nil, err
	}
	return hazards, steps, nil
}

// replaceLines swaps the full line collections of a document. Lines are
// always written wholesale; there is no per-line edit.
func (s *Store) replaceLines(tx *gorm.DB, docID string, hazards []HazardLine, steps []StepLine) error {
	if err := tx.Where("document_id = ?", docID).Delete(&HazardLine{}).Error; err != nil {
		return err
	}
	if err := tx.Where("document_id = ?", docID).Delete(&StepLine{}).Error; err != nil {
		return err
	}
	for i := range hazards {
		hazards[i].ID = uuid.NewString()
		hazards[i].DocumentID = docID
		hazards[i].SequenceIndex = i + 1
	}
	for i := range steps {
		steps[i].ID = uuid.NewString()
		steps[i].DocumentID = docID
		steps[i].SequenceIndex = i + 1
	}
	if len(hazards) > 0 {
		if err := tx.Create(&hazards).Error; err != nil {
			return err
		}
	}
	if len(steps) > 0 {
		if err := tx.Create(&steps).Error; err != nil {
			return err
		}
	}
	return nil
}

// Get loads a document with its lines.
func (s *Store) Get(company, id string) (*Document, error) {
	rec, err := s.get(s.db, company, id, false)
	if err != nil {
		return nil, err
	}
	hazards, steps, err := s.lines(s.db, rec.ID)
	if err != nil {
		return nil, err
	}
	return &Document{Record: *rec, Hazards: hazards, Steps: steps}, nil
}

// List returns the documents of a company, optionally filtered by state,
// newest first.
func (s *Store) List(company, state string) ([]Record, error) {
	q := s.db.Where("company = ?", company)
	if state != "" {
		q = q.Where("state = ?", state)
	}
	var recs []Record
	if err := q.Order("created_at DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
