package riskeval

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

// Service implements the risk evaluation operations.
type Service struct {
	db      *gorm.DB
	store   *Store
	seq     *sequence.Sequencer
	machine *lifecycle.Machine
	clock   func() time.Time
}

// NewService wires the evaluation aggregate.
func NewService(db *gorm.DB, seq *sequence.Sequencer) *Service {
	return &Service{
		db:      db,
		store:   NewStore(db),
		seq:     seq,
		machine: lifecycle.NewEvaluationMachine(),
		clock:   time.Now,
	}
}

// Store exposes the underlying store, mainly for migrations.
func (svc *Service) Store() *Store { return svc.store }

// LineInput is one evaluated risk in a request. Levels are derived
// server-side from the ordinals.
type LineInput struct {
	Peligro              string            `json:"peligro"`
	MedidasControl       string            `json:"medidas_control"`
	Probabilidad         risk.Probabilidad `json:"probabilidad"`
	Consecuencia         risk.Consecuencia `json:"consecuencia"`
	ProbabilidadResidual risk.Probabilidad `json:"probabilidad_residual,omitempty"`
	ConsecuenciaResidual risk.Consecuencia `json:"consecuencia_residual,omitempty"`
}

// CreateInput is the payload for creating a risk evaluation.
type CreateInput struct {
	Titulo      string      `json:"titulo"`
	Descripcion string      `json:"descripcion"`
	Area        string      `json:"area"`
	Lines       []LineInput `json:"lineas"`
}

// UpdateInput is the payload for updating a draft evaluation.
type UpdateInput struct {
	Code string `json:"codigo"`
	CreateInput
}

func scoreLines(inputs []LineInput) ([]EvaluationLine, error) {
	lines := make([]EvaluationLine, 0, len(inputs))
	for i, in := range inputs {
		level, err := risk.MatrixScore(in.Probabilidad, in.Consecuencia)
		if err != nil {
			return nil, err
		}
		line := EvaluationLine{
			SequenceIndex:  i + 1,
			Peligro:        in.Peligro,
			MedidasControl: in.MedidasControl,
			Probabilidad:   in.Probabilidad,
			Consecuencia:   in.Consecuencia,
			NivelRiesgo:    level,
		}
		if in.ProbabilidadResidual != "" || in.ConsecuenciaResidual != "" {
			residual, err := risk.MatrixScore(in.ProbabilidadResidual, in.ConsecuenciaResidual)
			if err != nil {
				return nil, err
			}
			if err := risk.CheckResidual(level, residual); err != nil {
				return nil, err
			}
			line.ProbabilidadResidual = in.ProbabilidadResidual
			line.ConsecuenciaResidual = in.ConsecuenciaResidual
			line.NivelResidual = residual
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Create issues a code, scores the lines and persists the evaluation in one
// transaction.
func (svc *Service) Create(_ context.Context, company, actor string, in CreateInput) (*Document, error) {
	company = documents.CompanyOrDefault(company)
	if in.Titulo == "" {
		return nil, sentinel.NewRuleError("DOC_MISSING_FIELD", "titulo is required")
	}
	lines, err := scoreLines(in.Lines)
	if err != nil {
		return nil, err
	}

	now := svc.clock()
	rec := &Record{
		ID:          uuid.NewString(),
		Company:     company,
		State:       lifecycle.StateBorrador,
		Titulo:      in.Titulo,
		Descripcion: in.Descripcion,
		Area:        in.Area,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	rec.History = rec.History.Append(actor, "crear", "", lifecycle.StateBorrador, now)

	err = svc.db.Transaction(func(tx *gorm.DB) error {
		code, err := svc.seq.Next(tx, company, string(documents.TypeEvaluacion), now.Year())
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

// Get loads one evaluation with its lines.
func (svc *Service) Get(_ context.Context, company, id string) (*Document, error) {
	return svc.store.Get(documents.CompanyOrDefault(company), id)
}

// List returns the company's evaluations, optionally filtered by state.
func (svc *Service) List(_ context.Context, company, state string) ([]Record, error) {
	return svc.store.List(documents.CompanyOrDefault(company), state)
}

// Update rewrites a draft evaluation and rescores its lines.
func (svc *Service) Update(_ context.Context, company, id, actor string, in UpdateInput) (*Document, error) {
	company = documents.CompanyOrDefault(company)
	var out *Document
	err := svc.db.Transaction(func(tx *gorm.DB) error {
		rec, err := svc.store.get(tx, company, id, true)
		if err != nil {
			return err
		}
		if svc.machine.Terminal(rec.State) {
			return documents.ErrImmutable(documents.TypeEvaluacion, rec.Code, rec.State)
		}
		if in.Code != "" && in.Code != rec.Code {
			return documents.ErrCodeImmutable(documents.TypeEvaluacion, rec.Code)
		}
		if in.Titulo == "" {
			return sentinel.NewRuleError("DOC_MISSING_FIELD", "titulo is required")
		}
		lines, err := scoreLines(in.Lines)
		if err != nil {
			return err
		}

		rec.Titulo = in.Titulo
		rec.Descripcion = in.Descripcion
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

// Transition approves or cancels the evaluation.
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

// Delete removes a non-terminal evaluation with its lines.
func (svc *Service) Delete(_ context.Context, company, id string) error {
	company = documents.CompanyOrDefault(company)
	return svc.db.Transaction(func(tx *gorm.DB) error {
		rec, err := svc.store.get(tx, company, id, true)
		if err != nil {
			return err
		}
		if svc.machine.Terminal(rec.State) {
			return documents.ErrImmutable(documents.TypeEvaluacion, rec.Code, rec.State)
		}
		if err := tx.Where("document_id = ?", rec.ID).Delete(&EvaluationLine{}).Error; err != nil {
			return err
		}
		return tx.Delete(rec).Error
	})
}
