package ats

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sigeso/sst-registry/pkg/authz"
	"github.com/sigeso/sst-registry/pkg/documents"
	"github.com/sigeso/sst-registry/pkg/lifecycle"
	"github.com/sigeso/sst-registry/pkg/sentinel"
	"github.com/sigeso/sst-registry/pkg/sequence"
	"github.com/sigeso/sst-registry/pkg/snapshot"
)

// Service implements the ATS document operations.
type Service struct {
	db       *gorm.DB
	store    *Store
	seq      *sequence.Sequencer
	machine  *lifecycle.Machine
	resolver snapshot.Resolver
	clock    func() time.Time
}

// NewService wires the ATS aggregate.
func NewService(db *gorm.DB, seq *sequence.Sequencer, resolver snapshot.Resolver) *Service {
	return &Service{
		db:       db,
		store:    NewStore(db),
		seq:      seq,
		machine:  lifecycle.NewATSMachine(),
		resolver: resolver,
		clock:    time.Now,
	}
}

// Store exposes the underlying store, mainly for migrations.
func (svc *Service) Store() *Store { return svc.store }

// HazardInput is one hazard line in a create or update request.
type HazardInput struct {
	Peligro       string `json:"peligro"`
	Riesgo        string `json:"riesgo"`
	MedidaControl string `json:"medida_control"`
}

// StepInput is one task step in a create or update request.
type StepInput struct {
	Descripcion string `json:"descripcion"`
	Responsable string `json:"responsable"`
}

// CreateInput is the payload for creating an ATS document.
type CreateInput struct {
	Area         string        `json:"area"`
	Lugar        string        `json:"lugar"`
	Trabajo      string        `json:"trabajo_a_realizar"`
	SupervisorID string        `json:"supervisor_id"`
	Hazards      []HazardInput `json:"peligros"`
	Steps        []StepInput   `json:"pasos"`
}

// UpdateInput is the payload for updating a draft. A non-empty Code that
// differs from the issued one is rejected.
type UpdateInput struct {
	Code string `json:"codigo"`
	CreateInput
}

func buildLines(in CreateInput) ([]HazardLine, []StepLine) {
	hazards := make([]HazardLine, 0, len(in.Hazards))
	for _, h := range in.Hazards {
		hazards = append(hazards, HazardLine{Peligro: h.Peligro, Riesgo: h.Riesgo, MedidaControl: h.MedidaControl})
	}
	steps := make([]StepLine, 0, len(in.Steps))
	for _, s := range in.Steps {
		steps = append(steps, StepLine{Descripcion: s.Descripcion, Responsable: s.Responsable})
	}
	return hazards, steps
}

// Create issues a code, freezes the supervisor snapshot, and persists the
// document with its lines in one transaction.
func (svc *Service) Create(ctx context.Context, company, actor string, in CreateInput) (*Document, error) {
	company = documents.CompanyOrDefault(company)
	if in.Trabajo == "" {
		return nil, sentinel.NewRuleError("DOC_MISSING_FIELD", "trabajo_a_realizar is required")
	}

	now := svc.clock()
	rec := &Record{
		ID:        uuid.NewString(),
		Company:   company,
		State:     lifecycle.StateBorrador,
		Area:      in.Area,
		Lugar:     in.Lugar,
		Trabajo:   in.Trabajo,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.SupervisorID != "" {
		ws, err := svc.resolver.ResolveWorker(ctx, in.SupervisorID)
		if err != nil {
			return nil, err
		}
		rec.SupervisorID = in.SupervisorID
		snapshot.FreezeIfAbsent(&rec.SupervisorName, ws.FullName)
	}
	rec.History = rec.History.Append(actor, "crear", "", lifecycle.StateBorrador, now)

	hazards, steps := buildLines(in)
	err := svc.db.Transaction(func(tx *gorm.DB) error {
		code, err := svc.seq.Next(tx, company, string(documents.TypeATS), now.Year())
		if err != nil {
			return err
		}
		rec.Code = code
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		return svc.store.replaceLines(tx, rec.ID, hazards, steps)
	})
	if err != nil {
		return nil, err
	}
	return &Document{Record: *rec, Hazards: hazards, Steps: steps}, nil
}

// Get loads one document with its lines.
func (svc *Service) Get(_ context.Context, company, id string) (*Document, error) {
	return svc.store.Get(documents.CompanyOrDefault(company), id)
}

// List returns the company's documents, optionally filtered by state.
func (svc *Service) List(_ context.Context, company, state string) ([]Record, error) {
	return svc.store.List(documents.CompanyOrDefault(company), state)
}

// Update rewrites the document fields and replaces its lines. Terminal
// documents are immutable and the issued code cannot change.
func (svc *Service) Update(ctx context.Context, company, id, actor string, in UpdateInput) (*Document, error) {
	company = documents.CompanyOrDefault(company)
	var out *Document
	err := svc.db.Transaction(func(tx *gorm.DB) error {
		rec, err := svc.store.get(tx, company, id, true)
		if err != nil {
			return err
		}
		if svc.machine.Terminal(rec.State) {
			return documents.ErrImmutable(documents.TypeATS, rec.Code, rec.State)
		}
		if in.Code != "" && in.Code != rec.Code {
			return documents.ErrCodeImmutable(documents.TypeATS, rec.Code)
		}
		if in.Trabajo == "" {
			return sentinel.NewRuleError("DOC_MISSING_FIELD", "trabajo_a_realizar is required")
		}

		rec.Area = in.Area
		rec.Lugar = in.Lugar
		rec.Trabajo = in.Trabajo
		if in.SupervisorID != "" && in.SupervisorID != rec.SupervisorID {
			ws, err := svc.resolver.ResolveWorker(ctx, in.SupervisorID)
			if err != nil {
				return err
			}
			rec.SupervisorID = in.SupervisorID
			rec.SupervisorName = ws.FullName
		}

		now := svc.clock()
		rec.History = rec.History.Append(actor, "actualizar", rec.State, rec.State, now)
		rec.UpdatedAt = now

		hazards, steps := buildLines(in.CreateInput)
		if err := svc.store.replaceLines(tx, rec.ID, hazards, steps); err != nil {
			return err
		}
		if err := tx.Save(rec).Error; err != nil {
			return err
		}
		out = &Document{Record: *rec, Hazards: hazards, Steps: steps}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Transition moves the document to the requested state after validating the
// edge against the ATS machine. The state change and the ledger append share
// one transaction.
func (svc *Service) Transition(ctx context.Context, company, id string, to lifecycle.State, caller authz.Identity) (*Document, error) {
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
		hazards, steps, err := svc.store.lines(tx, rec.ID)
		if err != nil {
			return err
		}
		doc := &Document{Record: *rec, Hazards: hazards, Steps: steps}
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
		out = &Document{Record: *rec, Hazards: hazards, Steps: steps}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a non-terminal document with its lines.
func (svc *Service) Delete(_ context.Context, company, id string) error {
	company = documents.CompanyOrDefault(company)
	return svc.db.Transaction(func(tx *gorm.DB) error {
		rec, err := svc.store.get(tx, company, id, true)
		if err != nil {
			return err
		}
		if svc.machine.Terminal(rec.State) {
			return documents.ErrImmutable(documents.TypeATS, rec.Code, rec.State)
		}
		if err := tx.Where("document_id = ?", rec.ID).Delete(&HazardLine{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", rec.ID).Delete(&StepLine{}).Error; err != nil {
			return err
		}
		return tx.Delete(rec).Error
	})
}
