package pets

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

// Service implements the PETS procedure operations.
type Service struct {
	db       *gorm.DB
	store    *Store
	seq      *sequence.Sequencer
	machine  *lifecycle.Machine
	resolver snapshot.Resolver
	clock    func() time.Time
}

// NewService wires the PETS aggregate.
func NewService(db *gorm.DB, seq *sequence.Sequencer, resolver snapshot.Resolver) *Service {
	return &Service{
		db:       db,
		store:    NewStore(db),
		seq:      seq,
		machine:  lifecycle.NewPETSMachine(),
		resolver: resolver,
		clock:    time.Now,
	}
}

// Store exposes the underlying store, mainly for migrations.
func (svc *Service) Store() *Store { return svc.store }

// StepInput is one procedure step in a request.
type StepInput struct {
	Descripcion string `json:"descripcion"`
	Responsable string `json:"responsable"`
}

// PPEInput references a PPE catalog item; the name is frozen server-side.
type PPEInput struct {
	PPEItemID string `json:"epp_id"`
}

// CreateInput is the payload for creating a new procedure (version 1).
type CreateInput struct {
	Titulo   string      `json:"titulo"`
	Objetivo string      `json:"objetivo"`
	Alcance  string      `json:"alcance"`
	Area     string      `json:"area"`
	Steps    []StepInput `json:"pasos"`
	PPE      []PPEInput  `json:"epp_requerido"`
}

// UpdateInput is the payload for updating a draft version.
type UpdateInput struct {
	Code string `json:"codigo"`
	CreateInput
}

func (svc *Service) buildLines(ctx context.Context, in CreateInput) ([]StepLine, []PPERequirement, error) {
	steps := make([]StepLine, 0, len(in.Steps))
	for _, s := range in.Steps {
		steps = append(steps, StepLine{Descripcion: s.Descripcion, Responsable: s.Responsable})
	}
	ppe := make([]PPERequirement, 0, len(in.PPE))
	for _, p := range in.PPE {
		ps, err := svc.resolver.ResolvePPEItem(ctx, p.PPEItemID)
		if err != nil {
			return nil, nil, err
		}
		ppe = append(ppe, PPERequirement{PPEItemID: p.PPEItemID, Name: ps.Name})
	}
	return steps, ppe, nil
}

// Create issues a code and persists version 1 as a draft.
func (svc *Service) Create(ctx context.Context, company, actor string, in CreateInput) (*Document, error) {
	company = documents.CompanyOrDefault(company)
	if in.Titulo == "" {
		return nil, sentinel.NewRuleError("DOC_MISSING_FIELD", "titulo is required")
	}

	now := svc.clock()
	rec := &Record{
		ID:        uuid.NewString(),
		Company:   company,
		Version:   1,
		State:     lifecycle.StateBorrador,
		Titulo:    in.Titulo,
		Objetivo:  in.Objetivo,
		Alcance:   in.Alcance,
		Area:      in.Area,
		CreatedAt: now,
		UpdatedAt: now,
	}
	rec.History = rec.History.Append(actor, "crear", "", lifecycle.StateBorrador, now)

	steps, ppe, err := svc.buildLines(ctx, in)
	if err != nil {
		return nil, err
	}
	err = svc.db.Transaction(func(tx *gorm.DB) error {
		code, err := svc.seq.Next(tx, company, string(documents.TypePETS), now.Year())
		if err != nil {
			return err
		}
		rec.Code = code
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		return svc.store.replaceLines(tx, rec.ID, steps, ppe)
	})
	if err != nil {
		return nil, err
	}
	return &Document{Record: *rec, Steps: steps, PPE: ppe}, nil
}

// Get loads a procedure version with its lines.
func (svc *Service) Get(_ context.Context, company, id string) (*Document, error) {
	return svc.store.Get(documents.CompanyOrDefault(company), id)
}

// List returns the company's procedure versions.
func (svc *Service) List(_ context.Context, company, state, code string) ([]Record, error) {
	return svc.store.List(documents.CompanyOrDefault(company), state, code)
}

// Update rewrites a draft version's content. Current (Vigente) and obsolete
// versions are immutable; NewVersion is the only way to revise them.
func (svc *Service) Update(ctx context.Context, company, id, actor string, in UpdateInput) (*Document, error) {
	company = documents.CompanyOrDefault(company)
	var out *Document
	err := svc.db.Transaction(func(tx *gorm.DB) error {
		rec, err := svc.store.get(tx, company, id, true)
		if err != nil {
			return err
		}
		if svc.machine.Terminal(rec.State) {
			return documents.ErrImmutable(documents.TypePETS, rec.Code, rec.State)
		}
		if in.Code != "" && in.Code != rec.Code {
			return documents.ErrCodeImmutable(documents.TypePETS, rec.Code)
		}
		if in.Titulo == "" {
			return sentinel.NewRuleError("DOC_MISSING_FIELD", "titulo is required")
		}

		rec.Titulo = in.Titulo
		rec.Objetivo = in.Objetivo
		rec.Alcance = in.Alcance
		rec.Area = in.Area

		now := svc.clock()
		rec.History = rec.History.Append(actor, "actualizar", rec.State, rec.State, now)
		rec.UpdatedAt = now

		steps, ppe, err := svc.buildLines(ctx, in.CreateInput)
		if err != nil {
			return err
		}
		if err := svc.store.replaceLines(tx, rec.ID, steps, ppe); err != nil {
			return err
		}
		if err := tx.Save(rec).Error; err != nil {
			return err
		}
		out = &Document{Record: *rec, Steps: steps, PPE: ppe}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Transition moves a version along the review flow. Entering Vigente
// obsoletes any sibling Vigente version of the same code in the same
// transaction, so at most one version of a procedure is current.
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
		steps, ppe, err := svc.store.lines(tx, rec.ID)
		if err != nil {
			return err
		}
		doc := &Document{Record: *rec, Steps: steps, PPE: ppe}
		if err := svc.machine.ValidateTransition(rec.State, to, doc); err != nil {
			return err
		}

		now := svc.clock()
		if to == lifecycle.StateVigente {
			siblings, err := svc.store.siblingsInState(tx, company, rec.Code, rec.ID, string(lifecycle.StateVigente))
			if err != nil {
				return err
			}
			for i := range siblings {
				old := &siblings[i]
				from := old.State
				old.State = lifecycle.StateObsoleto
				old.History = old.History.Append(caller.User, "obsoletar", from, lifecycle.StateObsoleto, now)
				old.UpdatedAt = now
				if err := tx.Save(old).Error; err != nil {
					return err
				}
			}
		}

		from := rec.State
		rec.State = to
		rec.History = rec.History.Append(caller.User, documents.ActionForState(to), from, to, now)
		rec.UpdatedAt = now
		if err := tx.Save(rec).Error; err != nil {
			return err
		}
		out = &Document{Record: *rec, Steps: steps, PPE: ppe}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// NewVersion clones a current (Vigente) version into a new draft sharing the
// code with version+1. This is the only mutation path for a current
// procedure.
func (svc *Service) NewVersion(ctx context.Context, company, id, actor string) (*Document, error) {
	company = documents.CompanyOrDefault(company)
	var out *Document
	err := svc.db.Transaction(func(tx *gorm.DB) error {
		src, err := svc.store.get(tx, company, id, true)
		if err != nil {
			return err
		}
		if src.State != lifecycle.StateVigente {
			return sentinel.NewRuleError("PETS_NOT_VIGENTE",
				"only a Vigente version can be revised, %s v%d is %s", src.Code, src.Version, src.State)
		}

		var maxVersion int
		if err := tx.Model(&Record{}).
			Where("company = ? AND code = ?", company, src.Code).
			Select("COALESCE(MAX(version), 0)").Scan(&maxVersion).Error; err != nil {
			return err
		}

		steps, ppe, err := svc.store.lines(tx, src.ID)
		if err != nil {
			return err
		}

		now := svc.clock()
		clone := &Record{
			ID:        uuid.NewString(),
			Company:   company,
			Code:      src.Code,
			Version:   maxVersion + 1,
			State:     lifecycle.StateBorrador,
			Titulo:    src.Titulo,
			Objetivo:  src.Objetivo,
			Alcance:   src.Alcance,
			Area:      src.Area,
			CreatedAt: now,
			UpdatedAt: now,
		}
		clone.History = clone.History.Append(actor, "nueva_version", "", lifecycle.StateBorrador, now)
		if err := tx.Create(clone).Error; err != nil {
			return err
		}

		cloneSteps := make([]StepLine, len(steps))
		for i, s := range steps {
			cloneSteps[i] = StepLine{Descripcion: s.Descripcion, Responsable: s.Responsable}
		}
		clonePPE := make([]PPERequirement, len(ppe))
		for i, p := range ppe {
			clonePPE[i] = PPERequirement{PPEItemID: p.PPEItemID, Name: p.Name}
		}
		if err := svc.store.replaceLines(tx, clone.ID, cloneSteps, clonePPE); err != nil {
			return err
		}
		out = &Document{Record: *clone, Steps: cloneSteps, PPE: clonePPE}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a non-terminal draft version with its lines.
func (svc *Service) Delete(_ context.Context, company, id string) error {
	company = documents.CompanyOrDefault(company)
	return svc.db.Transaction(func(tx *gorm.DB) error {
		rec, err := svc.store.get(tx, company, id, true)
		if err != nil {
			return err
		}
		if svc.machine.Terminal(rec.State) {
			return documents.ErrImmutable(documents.TypePETS, rec.Code, rec.State)
		}
		if err := tx.Where("document_id = ?", rec.ID).Delete(&StepLine{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", rec.ID).Delete(&PPERequirement{}).Error; err != nil {
			return err
		}
		return tx.Delete(rec).Error
	})
}
