// Package pets implements the versioned safe-work procedure (Procedimiento
// Escrito de Trabajo Seguro) aggregate. A procedure keeps its code for life;
// revisions are new rows sharing the code with an incremented version.
package pets

import (
	"time"

	"github.com/sigeso/sst-registry/pkg/ledger"
	"github.com/sigeso/sst-registry/pkg/lifecycle"
)

// Record is the GORM model for one version of a PETS procedure.
type Record struct {
	ID        string          `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	Company   string          `gorm:"column:company;uniqueIndex:idx_pets_company_code_ver,priority:1;default:default;not null" json:"empresa"`
	Code      string          `gorm:"column:code;uniqueIndex:idx_pets_company_code_ver,priority:2;not null" json:"codigo"`
	Version   int             `gorm:"column:version;uniqueIndex:idx_pets_company_code_ver,priority:3;not null;default:1" json:"version"`
	State     lifecycle.State `gorm:"column:state;index:idx_pets_state;not null" json:"estado"`
	Titulo    string          `gorm:"column:titulo;not null" json:"titulo"`
	Objetivo  string          `gorm:"column:objetivo" json:"objetivo"`
	Alcance   string          `gorm:"column:alcance" json:"alcance"`
	Area      string          `gorm:"column:area" json:"area"`
	History   ledger.History  `gorm:"column:history;type:text" json:"historial_versiones"`
	CreatedAt time.Time       `gorm:"column:created_at" json:"fecha_creacion"`
	UpdatedAt time.Time       `gorm:"column:updated_at" json:"fecha_actualizacion"`
}

// TableName returns the GORM table name.
func (Record) TableName() string { return "pets_documents" }

// StepLine is one ordered step of the procedure.
type StepLine struct {
	ID            string `gorm:"primaryKey;column:id;type:varchar(36)" json:"-"`
	DocumentID    string `gorm:"column:document_id;index:idx_pets_step_doc;not null" json:"-"`
	SequenceIndex int    `gorm:"column:sequence_index;not null" json:"orden"`
	Descripcion   string `gorm:"column:descripcion;not null" json:"descripcion"`
	Responsable   string `gorm:"column:responsable" json:"responsable"`
}

// TableName returns the GORM table name.
func (StepLine) TableName() string { return "pets_step_lines" }

// PPERequirement references a PPE item with its name frozen at attach time.
type PPERequirement struct {
	ID            string `gorm:"primaryKey;column:id;type:varchar(36)" json:"-"`
	DocumentID    string `gorm:"column:document_id;index:idx_pets_ppe_doc;not null" json:"-"`
	SequenceIndex int    `gorm:"column:sequence_index;not null" json:"orden"`
	PPEItemID     string `gorm:"column:ppe_item_id;not null" json:"epp_id"`
	Name          string `gorm:"column:name" json:"epp_nombre"`
}

// TableName returns the GORM table name.
func (PPERequirement) TableName() string { return "pets_ppe_requirements" }

// Document bundles a record with its line collections for API responses.
type Document struct {
	Record
	Steps []StepLine       `json:"pasos"`
	PPE   []PPERequirement `json:"epp_requerido"`
}
