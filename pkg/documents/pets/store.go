package pets

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sigeso/sst-registry/pkg/documents"
	"github.com/sigeso/sst-registry/pkg/sentinel"
)

// Store provides persistence for PETS procedure versions and their lines.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the PETS tables.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&Record{}, &StepLine{}, &PPERequirement{})
}

func (s *Store) get(tx *gorm.DB, company, id string, lock bool) (*Record, error) {
	q := tx
	if lock {
		q = documents.LockForUpdate(tx)
	}
	var rec Record
	if err := q.Where("company = ? AND id = ?", company, id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("pets %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Store) lines(tx *gorm.DB, docID string) ([]StepLine, []PPERequirement, error) {
	var steps []StepLine
	if err := tx.Where("document_id = ?", docID).Order("sequence_index").Find(&steps).Error; err != nil {
		return nil, nil, err
	}
	var ppe []PPERequirement
	if err := tx.Where("document_id = ?", docID).Order("sequence_index").Find(&ppe).Error; err != nil {
		return nil, nil, err
	}
	return steps, ppe, nil
}

func (s *Store) replaceLines(tx *gorm.DB, docID string, steps []StepLine, ppe []PPERequirement) error {
	if err := tx.Where("document_id = ?", docID).Delete(&StepLine{}).Error; err != nil {
		return err
	}
	if err := tx.Where("document_id = ?", docID).Delete(&PPERequirement{}).Error; err != nil {
		return err
	}
	for i := range steps {
		steps[i].ID = uuid.NewString()
		steps[i].DocumentID = docID
		steps[i].SequenceIndex = i + 1
	}
	for i := range ppe {
		ppe[i].ID = uuid.NewString()
		ppe[i].DocumentID = docID
		ppe[i].SequenceIndex = i + 1
	}
	if len(steps) > 0 {
		if err := tx.Create(&steps).Error; err != nil {
			return err
		}
	}
	if len(ppe) > 0 {
		if err := tx.Create(&ppe).Error; err != nil {
			return err
		}
	}
	return nil
}

// siblingsInState returns other versions of the same procedure currently in
// the given state.
func (s *Store) siblingsInState(tx *gorm.DB, company, code, excludeID string, state string) ([]Record, error) {
	var recs []Record
	err := documents.LockForUpdate(tx).
		Where("company = ? AND code = ? AND id <> ? AND state = ?", company, code, excludeID, state).
		Find(&recs).Error
	return recs, err
}

// Get loads a procedure version with its lines.
func (s *Store) Get(company, id string) (*Document, error) {
	rec, err := s.get(s.db, company, id, false)
	if err != nil {
		return nil, err
	}
	steps, ppe, err := s.lines(s.db, rec.ID)
	if err != nil {
		return nil, err
	}
	return &Document{Record: *rec, Steps: steps, PPE: ppe}, nil
}

// List returns the company's procedure versions, optionally filtered by
// state or code, newest first.
func (s *Store) List(company, state, code string) ([]Record, error) {
	q := s.db.Where("company = ?", company)
	if state != "" {
		q = q.Where("state = ?", state)
	}
	if code != "" {
		q = q.Where("code = ?", code)
	}
	var recs []Record
	if err := q.Order("code, version DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
