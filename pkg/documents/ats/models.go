// Package ats implements the job-hazard analysis (Análisis de Trabajo Seguro)
// document aggregate.
package ats

import (
	"time"

	"github.com/sigeso/sst-registry/pkg/ledger"
	"github.com/sigeso/sst-registry/pkg/lifecycle"
)

// Record is the GORM model for an ATS document.
type Record struct {
	ID             string          `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	Company        string          `gorm:"column:company;uniqueIndex:idx_ats_company_code,priority:1;default:default;not null" json:"empresa"`
	Code           string          `gorm:"column:code;uniqueIndex:idx_ats_company_code,priority:2;not null" json:"codigo"`
	State          lifecycle.State `gorm:"column:state;index:idx_ats_state;not null" json:"estado"`
	Area           string          `gorm:"column:area" json:"area"`
	Lugar          string          `gorm:"column:lugar" json:"lugar"`
	Trabajo        string          `gorm:"column:trabajo;not null" json:"trabajo_a_realizar"`
	SupervisorID   string          `gorm:"column:supervisor_id" json:"supervisor_id"`
	SupervisorName string          `gorm:"column:supervisor_name" json:"supervisor_nombre"`
	History        ledger.History  `gorm:"column:history;type:text" json:"historial_versiones"`
	CreatedAt      time.Time       `gorm:"column:created_at" json:"fecha_creacion"`
	UpdatedAt      time.Time       `gorm:"column:updated_at" json:"fecha_actualizacion"`
}

// TableName returns the GORM table name.
func (Record) TableName() string { return "ats_documents" }

// HazardLine is one identified hazard with its control measure.
type HazardLine struct {
	ID            string `gorm:"primaryKey;column:id;type:varchar(36)" json:"-"`
	DocumentID    string `gorm:"column:document_id;index:idx_ats_hazard_doc;not null" json:"-"`
	SequenceIndex int    `gorm:"column:sequence_index;not null" json:"orden"`
	Peligro       string `gorm:"column:peligro;not null" json:"peligro"`
	Riesgo        string `gorm:"column:riesgo" json:"riesgo"`
	MedidaControl string `gorm:"column:medida_control" json:"medida_control"`
}

// TableName returns the GORM table name.
func (HazardLine) TableName() string { return "ats_hazard_lines" }

// StepLine is one step of the analyzed task.
type StepLine struct {
	ID            string `gorm:"primaryKey;column:id;type:varchar(36)" json:"-"`
	DocumentID    string `gorm:"column:document_id;index:idx_ats_step_doc;not null" json:"-"`
	SequenceIndex int    `gorm:"column:sequence_index;not null" json:"orden"`
	Descripcion   string `gorm:"column:descripcion;not null" json:"descripcion"`
	Responsable   string `gorm:"column:responsable" json:"responsable"`
}

// TableName returns the GORM table name.
func (StepLine) TableName() string { return "ats_step_lines" }

// Document bundles a record with its line collections for API responses.
type Document struct {
	Record
	Hazards []HazardLine `json:"peligros"`
	Steps   []StepLine   `json:"pasos"`
}
