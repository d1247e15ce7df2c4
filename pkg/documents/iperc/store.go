package iperc

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sigeso/sst-registry/pkg/documents"
	"github.com/sigeso/sst-registry/pkg/sentinel"
)

// Store provides persistence for IPERC documents and their matrix lines.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the IPERC tables.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&Record{}, &MatrixLine{})
}

func (s *Store) get(tx *gorm.DB, company, id string, lock bool) (*Record, error) {
	q := tx
	if lock {
		q = documents.LockForUpdate(tx)
	}
	var rec Record
	if err := q.Where("company = ? AND id = ?", company, id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("iperc %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Store) lines(tx *gorm.DB, docID string) ([]MatrixLine, error) {
	var lines []MatrixLine
	err := tx.Where("document_id = ?", docID).Order("sequence_index").Find(&lines).Error
	return lines, err
}

func (s *Store) replaceLines(tx *gorm.DB, docID string, lines []MatrixLine) error {
	if err := tx.Where("document_id = ?", docID).Delete(&MatrixLine{}).Error; err != nil {
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

// Get loads a document with its lines.
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
