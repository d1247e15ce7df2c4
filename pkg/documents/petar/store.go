package petar

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sigeso/sst-registry/pkg/documents"
	"github.com/sigeso/sst-registry/pkg/sentinel"
)

// Store provides persistence for PETAR documents and their lines.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the PETAR tables.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&Record{}, &ChecklistItem{}, &Condition{}, &PersonnelLine{})
}

func (s *Store) get(tx *gorm.DB, company, id string, lock bool) (*Record, error) {
	q := tx
	if lock {
		q = documents.LockForUpdate(tx)
	}
	var rec Record
	if err := q.Where("company = ? AND id = ?", company, id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("petar %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Store) lines(tx *gorm.DB, docID string) ([]ChecklistItem, []Condition, []PersonnelLine, error) {
	var checklist []ChecklistItem
	if err := tx.Where("document_id = ?", docID).Order("sequence_index").Find(&checklist).Error; err != nil {
		return nil, nil, nil, err
	}
	var conds []Condition
	if err := tx.Where("document_id = ?", docID).Order("sequence_index").Find(&conds).Error; err != nil {
		return nil, nil, nil, err
	}
	var personnel []PersonnelLine
	if err := tx.Where("document_id = ?", docID).Order("sequence_index").Find(&personnel).Error; err != nil {
		return nil, nil, nil, err
	}
	return checklist, conds, personnel, nil
}

func (s *Store) replaceLines(tx *gorm.DB, docID string, checklist []ChecklistItem, conds []Condition, personnel []PersonnelLine) error {
	for _, model := range []any{&ChecklistItem{}, &Condition{}, &PersonnelLine{}} {
		if err := tx.Where("document_id = ?", docID).Delete(model).Error; err != nil {
			return err
		}
	}
	for i := range checklist {
		checklist[i].ID = uuid.NewString()
		checklist[i].DocumentID = docID
		checklist[i].SequenceIndex = i + 1
	}
	for i := range conds {
		conds[i].ID = uuid.NewString()
		conds[i].DocumentID = docID
		conds[i].SequenceIndex = i + 1
	}
	for i := range personnel {
		personnel[i].ID = uuid.NewString()
		personnel[i].DocumentID = docID
		personnel[i].SequenceIndex = i + 1
	}
	if len(checklist) > 0 {
		if err := tx.Create(&checklist).Error; err != nil {
			return err
		}
	}
	if len(conds) > 0 {
		if err := tx.Create(&conds).Error; err != nil {
			return err
		}
	}
	if len(personnel) > 0 {
		if err := tx.Create(&personnel).Error; err != nil {
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
	checklist, conds, personnel, err := s.lines(s.db, rec.ID)
	if err != nil {
		return nil, err
	}
	return &Document{Record: *rec, Checklist: checklist, Condiciones: conds, Personnel: personnel}, nil
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
