// Package masterdata holds the mutable reference records the documents bind
// to: workers, the PPE catalog and companies. These rows change over time;
// documents protect themselves by snapshotting display fields at binding
// time, so edits here never rewrite an issued legal record.
package masterdata

import "time"

// WorkerRecord is an employee registered by a company.
type WorkerRecord struct {
	ID             string     `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	Company        string     `gorm:"column:company;index:idx_worker_company;default:default;not null" json:"empresa"`
	FullName       string     `gorm:"column:full_name;not null" json:"nombre_completo"`
	DocumentNumber string     `gorm:"column:document_number;index;not null" json:"numero_documento"`
	JobTitle       string     `gorm:"column:job_title" json:"puesto"`
	Area           string     `gorm:"column:area" json:"area"`
	Active         bool       `gorm:"column:active;default:true;not null" json:"activo"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime" json:"fecha_creacion"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"fecha_actualizacion"`
	DeletedAt      *time.Time `gorm:"column:deleted_at;index" json:"-"`
}

// TableName returns the GORM table name.
func (WorkerRecord) TableName() string { return "workers" }

// PPEItemRecord is one personal-protective-equipment catalog entry.
type PPEItemRecord struct {
	ID           string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	Company      string    `gorm:"column:company;index:idx_ppe_company;default:default;not null" json:"empresa"`
	Name         string    `gorm:"column:name;not null" json:"nombre"`
	Category     string    `gorm:"column:category" json:"categoria"`
	ValidityDays int       `gorm:"column:validity_days" json:"dias_vigencia"`
	Norm         string    `gorm:"column:norm" json:"norma"`
	Active       bool      `gorm:"column:active;default:true;not null" json:"activo"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"fecha_creacion"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"fecha_actualizacion"`
}

// TableName returns the GORM table name.
func (PPEItemRecord) TableName() string { return "ppe_items" }

// CompanyRecord is a registered company (tenant).
type CompanyRecord struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	Slug      string    `gorm:"column:slug;uniqueIndex;not null" json:"slug"`
	Name      string    `gorm:"column:name;not null" json:"nombre"`
	RUC       string    `gorm:"column:ruc;index" json:"ruc"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"fecha_creacion"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"fecha_actualizacion"`
}

// TableName returns the GORM table name.
func (CompanyRecord) TableName() string { return "companies" }
