// Package riskeval implements standalone risk evaluations scored with the
// qualitative 5x5 lookup matrix.
package riskeval

import (
	"time"

	"github.com/sigeso/sst-registry/pkg/ledger"
	"github.com/sigeso/sst-registry/pkg/lifecycle"
	"github.com/sigeso/sst-registry/pkg/risk"
)

// Record is the GORM model for a risk evaluation.
type Record struct {
	ID          string          `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	Company     string          `gorm:"column:company;uniqueIndex:idx_eval_company_code,priority:1;default:default;not null" json:"empresa"`
	Code        string          `gorm:"column:code;uniqueIndex:idx_eval_company_code,priority:2;not null" json:"codigo"`
	State       lifecycle.State `gorm:"column:state;index:idx_eval_state;not null" json:"estado"`
	Titulo      string          `gorm:"column:titulo;not null" json:"titulo"`
	Descripcion string          `gorm:"column:descripcion" json:"descripcion"`
	Area        string          `gorm:"column:area" json:"area"`
	History     ledger.History  `gorm:"column:history;type:text" json:"historial_versiones"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"fecha_creacion"`
	UpdatedAt   time.Time       `gorm:"column:updated_at" json:"fecha_actualizacion"`
}

// TableName returns the GORM table name.
func (Record) TableName() string { return "risk_evaluations" }

// EvaluationLine is one evaluated risk. Levels are always derived from the
// matrix; residual ordinals are optional and, when present, must not derive
// a level above the initial one.
type EvaluationLine struct {
	ID                   string            `gorm:"primaryKey;column:id;type:varchar(36)" json:"-"`
	DocumentID           string            `gorm:"column:document_id;index:idx_eval_line_doc;not null" json:"-"`
	SequenceIndex        int               `gorm:"column:sequence_index;not null" json:"orden"`
	Peligro              string            `gorm:"column:peligro;not null" json:"peligro"`
	MedidasControl       string            `gorm:"column:medidas_control" json:"medidas_control"`
	Probabilidad         risk.Probabilidad `gorm:"column:probabilidad;not null" json:"probabilidad"`
	Consecuencia         risk.Consecuencia `gorm:"column:consecuencia;not null" json:"consecuencia"`
	NivelRiesgo          risk.Level        `gorm:"column:nivel_riesgo" json:"nivel_riesgo"`
	ProbabilidadResidual risk.Probabilidad `gorm:"column:probabilidad_residual" json:"probabilidad_residual,omitempty"`
	ConsecuenciaResidual risk.Consecuencia `gorm:"column:consecuencia_residual" json:"consecuencia_residual,omitempty"`
	NivelResidual        risk.Level        `gorm:"column:nivel_residual" json:"nivel_residual,omitempty"`
}

// TableName returns the GORM table name.
func (EvaluationLine) TableName() string { return "risk_evaluation_lines" }

// Document bundles a record with its lines for API responses.
type Document struct {
	Record
	Lines []EvaluationLine `json:"lineas"`
}
