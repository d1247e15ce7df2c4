// Package iperc implements the hazard identification and risk evaluation
// matrix (Identificación de Peligros, Evaluación de Riesgos y Controles)
// document aggregate. Line scores are derived server-side with the
// weighted-sum strategy.
package iperc

import (
	"time"

	"github.com/sigeso/sst-registry/pkg/ledger"
	"github.com/sigeso/sst-registry/pkg/lifecycle"
	"github.com/sigeso/sst-registry/pkg/risk"
)

// Record is the GORM model for an IPERC document.
type Record struct {
	ID        string          `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	Company   string          `gorm:"column:company;uniqueIndex:idx_iperc_company_code,priority:1;default:default;not null" json:"empresa"`
	Code      string          `gorm:"column:code;uniqueIndex:idx_iperc_company_code,priority:2;not null" json:"codigo"`
	State     lifecycle.State `gorm:"column:state;index:idx_iperc_state;not null" json:"estado"`
	Proceso   string          `gorm:"column:proceso;not null" json:"proceso"`
	Actividad string          `gorm:"column:actividad" json:"actividad"`
	Area      string          `gorm:"column:area" json:"area"`
	History   ledger.History  `gorm:"column:history;type:text" json:"historial_versiones"`
	CreatedAt time.Time       `gorm:"column:created_at" json:"fecha_creacion"`
	UpdatedAt time.Time       `gorm:"column:updated_at" json:"fecha_actualizacion"`
}

// TableName returns the GORM table name.
func (Record) TableName() string { return "iperc_documents" }

// MatrixLine is one evaluated hazard. The probability facets come from the
// client; the index, value and level columns are always recomputed on write.
type MatrixLine struct {
	ID                   string     `gorm:"primaryKey;column:id;type:varchar(36)" json:"-"`
	DocumentID           string     `gorm:"column:document_id;index:idx_iperc_line_doc;not null" json:"-"`
	SequenceIndex        int        `gorm:"column:sequence_index;not null" json:"orden"`
	Peligro              string     `gorm:"column:peligro;not null" json:"peligro"`
	Riesgo               string     `gorm:"column:riesgo" json:"riesgo"`
	MedidasControl       string     `gorm:"column:medidas_control" json:"medidas_control"`
	PersonasExpuestas    int        `gorm:"column:personas_expuestas" json:"indice_personas_expuestas"`
	Procedimientos       int        `gorm:"column:procedimientos" json:"indice_procedimientos"`
	Capacitacion         int        `gorm:"column:capacitacion" json:"indice_capacitacion"`
	FrecuenciaExposicion int        `gorm:"column:frecuencia_exposicion" json:"indice_frecuencia"`
	Severidad            int        `gorm:"column:severidad" json:"indice_severidad"`
	IndiceProbabilidad   int        `gorm:"column:indice_probabilidad" json:"indice_probabilidad"`
	ValorRiesgo          int        `gorm:"column:valor_riesgo" json:"valor_riesgo"`
	NivelRiesgo          risk.Level `gorm:"column:nivel_riesgo" json:"nivel_riesgo"`
}

// TableName returns the GORM table name.
func (MatrixLine) TableName() string { return "iperc_matrix_lines" }

// Document bundles a record with its matrix lines for API responses.
type Document struct {
	Record
	Lines []MatrixLine `json:"lineas"`
}
