package iperc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sigeso/sst-registry/pkg/authz"
	"github.com/sigeso/sst-registry/pkg/documents"
	"github.com/sigeso/sst-registry/pkg/lifecycle"
	"github.com/sigeso/sst-registry/pkg/risk"
	"github.com/sigeso/sst-registry/pkg/sentinel"
	"github.com/sigeso/sst-registry/pkg/sequence"
)

// Service implements the IPERC document operations.
type Service struct {
	db      *gorm.DB
	store   *Store
	seq     *sequence.Sequencer
	machine *lifecycle.Machine
	clock   func() time.Time
}

// NewService wires the IPERC aggregate. A matrix with no evaluated lines
// cannot be approved.
func NewService(db *gorm.DB, seq *sequence.Sequencer) *Service {
	guards := map[string]lifecycle.GuardFunc{
		lifecycle.GuardHazardLines: func(doc any) error {
			d := doc.(*Document)
			if len(d.Lines) == 0 {
				return sentinel.NewRuleError("IPERC_NO_LINES",
					"matrix %s cannot be approved without evaluated hazards", d.Code)
			}
			return nil
		},
	}
	return &Service{
		db:      db,
		store:   NewStore(db),
		seq:     seq,
		machine: lifecycle.NewPermitMachine("IPERC", guards),
		clock:   time.Now,
	}
}

// Store exposes the underlying store, mainly for migrations.
func (svc *Service) Store() *Store { return svc.store }

// LineInput is one hazard line in a request. Scores are never accepted from
// the client; they are derived from the facets.
type LineInput struct {
	Peligro        string `json:"peligro"`
	Riesgo         string `json:"riesgo"`
	MedidasControl string `json:"medidas_control"`
	risk.WeightedInput
	// DeclaredLevel, when present, must match the derived level.
	DeclaredLevel risk.Level `json:"nivel_riesgo_declarado,omitempty"`
}

// CreateInput is the payload for creating an IPERC document.
type CreateInput struct {
	Proceso   string      `json:"proceso"`
	Actividad string      `json:"actividad"`
	Area      string      `json:"area"`
	Lines     []LineInput `json:"lineas"`
}

// UpdateInput is the payload for updating a matrix before approval.
type UpdateInput struct {
	Code string `json:"codigo"`
	CreateInput
}

func scoreLines(inputs []LineInput) ([]MatrixLine, error) {
	lines := make([]MatrixLine, 0, len(inputs))
	for i, in := range inputs {
		res, err := risk.WeightedScore(in.WeightedInput)
		if err != nil {
			return nil, err
		}
		if in.DeclaredLevel != "" {
			if err := risk.CheckDeclared(res.NivelRiesgo, in.DeclaredLevel); err != nil {
				return nil, err
			}
		}
		lines = append(lines, MatrixLine{
			SequenceIndex:        i + 1,
			Peligro:              in.Peligro,
			Riesgo:               in.Riesgo,
			MedidasControl:       in.MedidasControl,
			PersonasExpuestas:    in.PersonasExpuestas,
			Procedimientos:       in.Procedimientos,
			Capacitacion:         in.Capacitacion,
			FrecuenciaExposicion: in.FrecuenciaExposicion,
			Severidad:            in.Severidad,
			IndiceProbabilidad:   res.IndiceProbabilidad,
			ValorRiesgo:          res.ValorRiesgo,
			NivelRiesgo:          res.NivelRiesgo,
		})
	}
	return lines, nil
}

// Create issues a code, scores the lines and persists the matrix in one
// transaction.
func (svc *Service) Create(_ context.Context, company, actor string, in CreateInput) (*Document, error) {
	company = documents.CompanyOrDefault(company)
	if in.Proceso == "" {
		return nil, sentinel.NewRuleError("DOC_MISSING_FIELD", "proceso is required")
	}
	lines, err := scoreLines(in.Lines)
	if err != nil {
		return nil, err
	}

	now := svc.clock()
	rec := &Record{
		ID:        uuid.NewString(),
		Company:   company,
		State:     lifecycle.StateBorrador,
		Proceso:   in.Proceso,
		Actividad: in.Actividad,
		Area:      in.Area,
		CreatedAt: now,
		UpdatedAt: now,
	}
	rec.History = rec.History.Append(actor, "crear", "", lifecycle.StateBorrador, now)

	err = svc.db.Transaction(func(tx *gorm.DB) error {
		code, err := svc.seq.Next(tx, company, string(documents.TypeIPERC), now.Year())
		if err != nil {
			return err
		}
		rec.Code = code
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		return svc.store.replaceLines(tx, rec.ID, lines)
	})
	if err != nil {
		return nil, err
	}
	return &Document{Record: *rec, Lines: lines}, nil
}

// Get loads one matrix with its lines.
func (svc *Service) Get(_ context.Context, company, id string) (*Document, error) {
	return svc.store.Get(documents.CompanyOrDefault(company), id)
}

// List returns the company's matrices, optionally filtered by state.
func (svc *Service) List(_ context.Context, company, state string) ([]Record, error) {
	return svc.store.List(documents.CompanyOrDefault(company), state)
}

// Update rewrites the matrix and rescores its lines. Terminal documents are
// immutable and the issued code cannot change.
func (svc *Service) Update(_ context.Context, company, id, actor string, in UpdateInput) (*Document, error) {
	company = documents.CompanyOrDefault(company)
	var out *Document
	err := svc.db.Transaction(func(tx *gorm.DB) error {
		rec, err := svc.store.get(tx, company, id, true)
		if err != nil {
			return err
		}
		if svc.machine.Terminal(rec.State) {
			return documents.ErrImmutable(documents.TypeIPERC, rec.Code, rec.State)
		}
		if in.Code != "" && in.Code != rec.Code {
			return documents.ErrCodeImmutable(documents.TypeIPERC, rec.Code)
		}
		if in.Proceso == "" {
			return sentinel.NewRuleError("DOC_MISSING_FIELD", "proceso is required")
		}
		lines, err := scoreLines(in.Lines)
		if err != nil {
			return err
		}

		rec.Proceso = in.Proceso
		rec.Actividad = in.Actividad
		rec.Area = in.Area

		now := svc.clock()
		rec.History = rec.History.Append(actor, "actualizar", rec.State, rec.State, now)
		rec.UpdatedAt = now

		if err := svc.store.replaceLines(tx, rec.ID, lines); err != nil {
			return err
		}
		if err := tx.Save(rec).Error; err != nil {
			return err
		}
		out = &Document{Record: *rec, Lines: lines}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Transition moves the matrix to the requested state. Approval runs the
// zero-lines guard against the loaded document.
func (svc *Service) Transition(_ context.Context, company, id string, to lifecycle.State, caller authz.Identity) (*Document, error) {
	company = documents.CompanyOrDefault(company)
	if documents.ApprovalState(to) {
		if err := authz.RequireApprover(caller); err != nil {
			return nil, err
		}
	}

	var out *Document
	err := svc.db.Transaction(func(tx *gorm.DB) error {
		rec, err := svc.store.get(tx, company, id, true)
		if err != nil {
			return err
		}
		lines, err := svc.store.lines(tx, rec.ID)
		if err != nil {
			return err
		}
		doc := &Document{Record: *rec, Lines: lines}
		if err := svc.machine.ValidateTransition(rec.State, to, doc); err != nil {
			return err
		}

		now := svc.clock()
		from := rec.State
		rec.State = to
		rec.History = rec.History.Append(caller.User, documents.ActionForState(to), from, to, now)
		rec.UpdatedAt = now
		if err := tx.Save(rec).Error; err != nil {
			return err
		}
		out = &Document{Record: *rec, Lines: lines}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a non-terminal matrix with its lines.
func (svc *Service) Delete(_ context.Context, company, id string) error {
	company = documents.CompanyOrDefault(company)
	return svc.db.Transaction(func(tx *gorm.DB) error {
		rec, err := svc.store.get(tx, company, id, true)
		if err != nil {
			return err
		}
		if svc.machine.Terminal(rec.State) {
			return documents.ErrImmutable(documents.TypeIPERC, rec.Code, rec.State)
		}
		if err := tx.Where("document_id = ?", rec.ID).Delete(&MatrixLine{}).Error; err != nil {
			return err
		}
		return tx.Delete(rec).Error
	})
}
