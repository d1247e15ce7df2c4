package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// JSONAny is a map stored as a JSON column.
type JSONAny map[string]any

// Scan implements sql.Scanner for JSONAny.
func (m *JSONAny) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONAny: %T", value)
	}
	return json.Unmarshal(bytes, m)
}

// Value implements driver.Valuer for JSONAny.
func (m JSONAny) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// AuditEventRecord is an immutable registry-wide audit log entry. The HTTP
// audit middleware appends one per mutating request; per-document transitions
// live in each record's History column.
type AuditEventRecord struct {
	ID           string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	Company      string    `gorm:"column:company;index:idx_audit_company_time,priority:1;default:default;not null"`
	EventType    string    `gorm:"column:event_type;index:idx_audit_type_time,priority:1;not null"`
	Actor        string    `gorm:"column:actor;index:idx_audit_actor_time,priority:1;not null"`
	DocumentType string    `gorm:"column:document_type;index:idx_audit_doc,priority:1"`
	DocumentID   string    `gorm:"column:document_id;index:idx_audit_doc,priority:2"`
	DocumentCode string    `gorm:"column:document_code"`
	Action       string    `gorm:"column:action"`
	Outcome      string    `gorm:"column:outcome;not null"` // success, rejected, failure
	Reason       string    `gorm:"column:reason"`
	OldValue     JSONAny   `gorm:"column:old_value;type:text"`
	NewValue     JSONAny   `gorm:"column:new_value;type:text"`
	RequestID    string    `gorm:"column:request_id;index"`
	StatusCode   int       `gorm:"column:status_code"`
	CreatedAt    time.Time `gorm:"column:created_at;index:idx_audit_type_time,priority:2;index:idx_audit_actor_time,priority:2;index:idx_audit_company_time,priority:2;autoCreateTime"`
}

// TableName returns the GORM table name.
func (AuditEventRecord) TableName() string { return "audit_events" }

// AuditStore provides append-only operations for audit event records.
type AuditStore struct {
	db *gorm.DB
}

// NewAuditStore creates a new AuditStore.
func NewAuditStore(db *gorm.DB) *AuditStore {
	return &AuditStore{db: db}
}

// AutoMigrate creates or updates the audit_events table.
func (s *AuditStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&AuditEventRecord{}); err != nil {
		return fmt.Errorf("auto-migrate audit_events: %w", err)
	}
	return nil
}

// Append creates a new immutable audit event record.
func (s *AuditStore) Append(event *AuditEventRecord) error {
	if event.Company == "" {
		event.Company = "default"
	}
	if err := s.db.Create(event).Error; err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// ListByDocument returns paginated audit events for one document, newest
// first. pageToken is an RFC3339Nano timestamp; events created before it are
// returned.
func (s *AuditStore) ListByDocument(docType, docID string, pageSize int, pageToken string) ([]AuditEventRecord, string, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	var totalSize int64
	if err := s.db.Model(&AuditEventRecord{}).
		Where("document_type = ? AND document_id = ?", docType, docID).
		Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count audit events: %w", err)
	}

	query := s.db.Where("document_type = ? AND document_id = ?", docType, docID).
		Order("created_at DESC").Limit(pageSize + 1)
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", 0, fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("created_at < ?", t)
	}

	var records []AuditEventRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list audit events: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].CreatedAt.Format(time.RFC3339Nano)
		records = records[:pageSize]
	}

	return records, nextToken, int(totalSize), nil
}

// ListAll returns paginated audit events across the registry, newest first,
// optionally filtered by event type.
func (s *AuditStore) ListAll(pageSize int, pageToken string, filterEventType string) ([]AuditEventRecord, string, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	baseQuery := s.db.Model(&AuditEventRecord{})
	if filterEventType != "" {
		baseQuery = baseQuery.Where("event_type = ?", filterEventType)
	}

	var totalSize int64
	if err := baseQuery.Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count audit events: %w", err)
	}

	query := s.db.Order("created_at DESC").Limit(pageSize + 1)
	if filterEventType != "" {
		query = query.Where("event_type = ?", filterEventType)
	}
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", 0, fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("created_at < ?", t)
	}

	var records []AuditEventRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list all audit events: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].CreatedAt.Format(time.RFC3339Nano)
		records = records[:pageSize]
	}

	return records, nextToken, int(totalSize), nil
}

// DeleteOlderThan deletes audit events created before the cutoff. Used by the
// retention loop; document histories are never pruned.
func (s *AuditStore) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", cutoff).Delete(&AuditEventRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete old audit events: %w", result.Error)
	}
	return result.RowsAffected, nil
}
