// Package sequence generates the human-readable document codes
// (<PREFIX>-<YEAR>-<NNN>). Codes are legally assigned identifiers: they may
// leave gaps but must never repeat, so the count-then-format step is
// serialized per (company, type, year) through a locked counter row instead
// of optimistic retry.
package sequence

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sigeso/sst-registry/pkg/sentinel"
)

// Pad widths per document family. Certificates carry a wider series because
// they are issued per worker, not per job.
const (
	defaultPad     = 3
	certificatePad = 6
)

// CounterRecord tracks the last issued sequence number for one
// (company, doc_type, year) scope.
type CounterRecord struct {
	ID       string `gorm:"primaryKey;column:id;type:varchar(36)"`
	Company  string `gorm:"column:company;uniqueIndex:idx_counter_scope,priority:1;default:default;not null"`
	DocType  string `gorm:"column:doc_type;uniqueIndex:idx_counter_scope,priority:2;not null"`
	Year     int    `gorm:"column:year;uniqueIndex:idx_counter_scope,priority:3;not null"`
	LastSeq  int    `gorm:"column:last_seq;not null;default:0"`
}

// TableName returns the GORM table name.
func (CounterRecord) TableName() string { return "document_counters" }

// Sequencer issues collision-free sequential document codes.
type Sequencer struct {
	db *gorm.DB
}

// New creates a Sequencer.
func New(db *gorm.DB) *Sequencer {
	return &Sequencer{db: db}
}

// AutoMigrate creates or updates the document_counters table.
func (s *Sequencer) AutoMigrate() error {
	if err := s.db.AutoMigrate(&CounterRecord{}); err != nil {
		return fmt.Errorf("auto-migrate document_counters: %w", err)
	}
	return nil
}

// Next reserves the next code for (company, docType, year) inside tx. The
// counter row is claimed FOR UPDATE so two concurrent creations cannot read
// the same value; on databases without row locks (SQLite) the single-writer
// transaction gives the same guarantee. Callers must pass the transaction
// that also inserts the document, so an aborted create does not burn a
// transaction boundary mid-request.
func (s *Sequencer) Next(tx *gorm.DB, company, docType string, year int) (string, error) {
	if company == "" {
		company = "default"
	}
	docType = strings.ToUpper(docType)

	var counter CounterRecord
	locked := tx.Raw(`
		SELECT * FROM document_counters
		WHERE company = ? AND doc_type = ? AND year = ?
		FOR UPDATE
	`, company, docType, year).Scan(&counter)
	if locked.Error != nil || counter.ID == "" {
		// Plain lookup for engines without FOR UPDATE, and for the
		// first issue in a scope.
		err := tx.Where("company = ? AND doc_type = ? AND year = ?", company, docType, year).
			First(&counter).Error
		if err != nil && err != gorm.ErrRecordNotFound {
			return "", fmt.Errorf("load counter: %w", err)
		}
	}

	if counter.ID == "" {
		counter = CounterRecord{
			ID:      uuid.New().String(),
			Company: company,
			DocType: docType,
			Year:    year,
			LastSeq: 1,
		}
		if err := tx.Create(&counter).Error; err != nil {
			// A concurrent first issue won the unique index; surface as
			// conflict so the request can be repeated with a fresh number.
			return "", fmt.Errorf("create counter: %w: %v", sentinel.ErrConflict, err)
		}
	} else {
		counter.LastSeq++
		if err := tx.Model(&CounterRecord{}).Where("id = ?", counter.ID).
			Update("last_seq", counter.LastSeq).Error; err != nil {
			return "", fmt.Errorf("advance counter: %w", err)
		}
	}

	return Format(docType, year, counter.LastSeq), nil
}

// Format renders a document code. Certificates use the wide pad.
func Format(docType string, year, seq int) string {
	pad := defaultPad
	if strings.EqualFold(docType, "CERT") {
		pad = certificatePad
	}
	return fmt.Sprintf("%s-%d-%0*d", strings.ToUpper(docType), year, pad, seq)
}

// Peek reports the last issued sequence for a scope without reserving one.
// Used by the operator CLI.
func (s *Sequencer) Peek(company, docType string, year int) (int, error) {
	if company == "" {
		company = "default"
	}
	var counter CounterRecord
	err := s.db.Where("company = ? AND doc_type = ? AND year = ?", company, strings.ToUpper(docType), year).
		First(&counter).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load counter: %w", err)
	}
	return counter.LastSeq, nil
}

// Scopes lists all known counter scopes for a company.
func (s *Sequencer) Scopes(company string) ([]CounterRecord, error) {
	if company == "" {
		company = "default"
	}
	var counters []CounterRecord
	if err := s.db.Where("company = ?", company).
		Order("doc_type ASC, year ASC").Find(&counters).Error; err != nil {
		return nil, fmt.Errorf("list counters: %w", err)
	}
	return counters, nil
}
