// Package delivery implements PPE delivery certificates (Entrega de Equipos
// de Protección Personal). Worker and item data are frozen onto the record
// at delivery time; the printed certificate must not change when master data
// does.
package delivery

import (
	"time"

	"github.com/sigeso/sst-registry/pkg/ledger"
	"github.com/sigeso/sst-registry/pkg/lifecycle"
)

// Record is the GORM model for a PPE delivery certificate.
type Record struct {
	ID             string          `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	Company        string          `gorm:"column:company;uniqueIndex:idx_delivery_company_code,priority:1;default:default;not null" json:"empresa"`
	Code           string          `gorm:"column:code;uniqueIndex:idx_delivery_company_code,priority:2;not null" json:"codigo"`
	State          lifecycle.State `gorm:"column:state;index:idx_delivery_state;not null" json:"estado"`
	WorkerID       string          `gorm:"column:worker_id;index:idx_delivery_worker;not null" json:"trabajador_id"`
	WorkerName     string          `gorm:"column:worker_name" json:"trabajador_nombre"`
	WorkerDocument string          `gorm:"column:worker_document" json:"trabajador_documento"`
	WorkerJobTitle string          `gorm:"column:worker_job_title" json:"trabajador_puesto"`
	ConfirmedAt    *time.Time      `gorm:"column:confirmed_at" json:"fecha_confirmacion,omitempty"`
	SignatureURL   string          `gorm:"column:signature_url" json:"firma_url,omitempty"`
	Exempt         bool            `gorm:"column:exempt" json:"exonerado_firma"`
	ExemptReason   string          `gorm:"column:exempt_reason" json:"motivo_exoneracion,omitempty"`
	History        ledger.History  `gorm:"column:history;type:text" json:"historial_versiones"`
	CreatedAt      time.Time       `gorm:"column:created_at" json:"fecha_creacion"`
	UpdatedAt      time.Time       `gorm:"column:updated_at" json:"fecha_actualizacion"`
}

// TableName returns the GORM table name.
func (Record) TableName() string { return "ppe_deliveries" }

// Line is one delivered item. Name and validity are frozen at delivery time.
type Line struct {
	ID            string `gorm:"primaryKey;column:id;type:varchar(36)" json:"-"`
	DocumentID    string `gorm:"column:document_id;index:idx_delivery_line_doc;not null" json:"-"`
	SequenceIndex int    `gorm:"column:sequence_index;not null" json:"orden"`
	PPEItemID     string `gorm:"column:ppe_item_id;not null" json:"epp_id"`
	Name          string `gorm:"column:name" json:"epp_nombre"`
	Category      string `gorm:"column:category" json:"epp_categoria"`
	ValidityDays  int    `gorm:"column:validity_days" json:"dias_vigencia"`
	Cantidad      int    `gorm:"column:cantidad;default:1" json:"cantidad"`
}

// TableName returns the GORM table name.
func (Line) TableName() string { return "ppe_delivery_lines" }

// Document bundles a record with its lines for API responses.
type Document struct {
	Record
	Lines []Line `json:"items"`
}
