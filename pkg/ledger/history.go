// Package ledger keeps the append-only transition history of every safety
// document, plus the registry-wide audit event table. The ledger is the sole
// source of truth for who changed what and when; entries are never mutated,
// reordered or pruned.
package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sigeso/sst-registry/pkg/lifecycle"
)

// Entry is one accepted state transition. VersionOrdinal is the 1-based
// position of the entry in the document's history.
type Entry struct {
	VersionOrdinal int             `json:"version"`
	Timestamp      time.Time       `json:"fecha"`
	Actor          string          `json:"usuario"`
	Action         string          `json:"accion"`
	StateBefore    lifecycle.State `json:"estado_anterior"`
	StateAfter     lifecycle.State `json:"estado_nuevo"`
}

// History is the ordered transition log of one document, persisted as a JSON
// column (historial_versiones). Insertion order is chronological order.
type History []Entry

// Append returns the history grown by one entry. The receiver is not
// modified; callers persist the returned slice in the same transaction as
// the state change it records.
func (h History) Append(actor, action string, from, to lifecycle.State, now time.Time) History {
	entry := Entry{
		VersionOrdinal: len(h) + 1,
		Timestamp:      now,
		Actor:          actor,
		Action:         action,
		StateBefore:    from,
		StateAfter:     to,
	}
	out := make(History, len(h), len(h)+1)
	copy(out, h)
	return append(out, entry)
}

// Scan implements sql.Scanner for History.
func (h *History) Scan(value any) error {
	if value == nil {
		*h = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for History: %T", value)
	}
	return json.Unmarshal(bytes, h)
}

// Value implements driver.Valuer for History.
func (h History) Value() (driver.Value, error) {
	if h == nil {
		return nil, nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
