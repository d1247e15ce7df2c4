// Package petar implements the high-risk work permit (Permiso Escrito de
// Trabajo de Alto Riesgo) document aggregate.
package petar

import (
	"time"

	"github.com/sigeso/sst-registry/pkg/ledger"
	"github.com/sigeso/sst-registry/pkg/lifecycle"
)

// Record is the GORM model for a PETAR document.
type Record struct {
	ID             string          `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	Company        string          `gorm:"column:company;uniqueIndex:idx_petar_company_code,priority:1;default:default;not null" json:"empresa"`
	Code           string          `gorm:"column:code;uniqueIndex:idx_petar_company_code,priority:2;not null" json:"codigo"`
	State          lifecycle.State `gorm:"column:state;index:idx_petar_state;not null" json:"estado"`
	Area           string          `gorm:"column:area" json:"area"`
	Lugar          string          `gorm:"column:lugar" json:"lugar"`
	Descripcion    string          `gorm:"column:descripcion;not null" json:"descripcion_trabajo"`
	TipoTrabajo    string          `gorm:"column:tipo_trabajo" json:"tipo_trabajo"`
	FechaInicio    *time.Time      `gorm:"column:fecha_inicio" json:"fecha_inicio,omitempty"`
	FechaFin       *time.Time      `gorm:"column:fecha_fin" json:"fecha_fin,omitempty"`
	SupervisorID   string          `gorm:"column:supervisor_id" json:"supervisor_id"`
	SupervisorName string          `gorm:"column:supervisor_name" json:"supervisor_nombre"`
	History        ledger.History  `gorm:"column:history;type:text" json:"historial_versiones"`
	CreatedAt      time.Time       `gorm:"column:created_at" json:"fecha_creacion"`
	UpdatedAt      time.Time       `gorm:"column:updated_at" json:"fecha_actualizacion"`
}

// TableName returns the GORM table name.
func (Record) TableName() string { return "petar_documents" }

// ChecklistItem is one verification item. Every item must be marked cumple
// before the permit can be submitted for approval.
type ChecklistItem struct {
	ID            string `gorm:"primaryKey;column:id;type:varchar(36)" json:"-"`
	DocumentID    string `gorm:"column:document_id;index:idx_petar_check_doc;not null" json:"-"`
	SequenceIndex int    `gorm:"column:sequence_index;not null" json:"orden"`
	Descripcion   string `gorm:"column:descripcion;not null" json:"descripcion"`
	Cumple        bool   `gorm:"column:cumple" json:"cumple"`
}

// TableName returns the GORM table name.
func (ChecklistItem) TableName() string { return "petar_checklist_items" }

// Condition is a previous condition. Every condition must be verified before
// the permit can be approved.
type Condition struct {
	ID            string `gorm:"primaryKey;column:id;type:varchar(36)" json:"-"`
	DocumentID    string `gorm:"column:document_id;index:idx_petar_cond_doc;not null" json:"-"`
	SequenceIndex int    `gorm:"column:sequence_index;not null" json:"orden"`
	Descripcion   string `gorm:"column:descripcion;not null" json:"descripcion"`
	Verificado    bool   `gorm:"column:verificado" json:"verificado"`
}

// TableName returns the GORM table name.
func (Condition) TableName() string { return "petar_condiciones" }

// PersonnelLine is one involved worker. Name and document number are frozen
// at the moment the worker is attached.
type PersonnelLine struct {
	ID             string `gorm:"primaryKey;column:id;type:varchar(36)" json:"-"`
	DocumentID     string `gorm:"column:document_id;index:idx_petar_pers_doc;not null" json:"-"`
	SequenceIndex  int    `gorm:"column:sequence_index;not null" json:"orden"`
	WorkerID       string `gorm:"column:worker_id;not null" json:"trabajador_id"`
	WorkerName     string `gorm:"column:worker_name" json:"trabajador_nombre"`
	WorkerDocument string `gorm:"column:worker_document" json:"trabajador_documento"`
	Rol            string `gorm:"column:rol" json:"rol"`
}

// TableName returns the GORM table name.
func (PersonnelLine) TableName() string { return "petar_personnel_lines" }

// Document bundles a record with its line collections for API responses.
type Document struct {
	Record
	Checklist   []ChecklistItem `json:"checklist"`
	Condiciones []Condition     `json:"condiciones_previas"`
	Personnel   []PersonnelLine `json:"personal_involucrado"`
}
