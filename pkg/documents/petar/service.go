package petar

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

// Service implements the PETAR document operations.
type Service struct {
	db       *gorm.DB
	store    *Store
	seq      *sequence.Sequencer
	machine  *lifecycle.Machine
	resolver snapshot.Resolver
	policy   Policy
	clock    func() time.Time
}

// NewService wires the PETAR aggregate. The machine guards are closed over
// the document passed to ValidateTransition.
func NewService(db *gorm.DB, seq *sequence.Sequencer, resolver snapshot.Resolver, policy Policy) *Service {
	guards := map[string]lifecycle.GuardFunc{
		lifecycle.GuardChecklistComplete: func(doc any) error {
			d := doc.(*Document)
			if len(d.Checklist) == 0 {
				return sentinel.NewRuleError("PETAR_CHECKLIST_EMPTY",
					"permit %s cannot be submitted without checklist items", d.Code)
			}
			for _, it := range d.Checklist {
				if !it.Cumple {
					return sentinel.NewRuleError("PETAR_CHECKLIST_INCOMPLETE",
						"checklist item %d (%s) is not marked cumple", it.SequenceIndex, it.Descripcion)
				}
			}
			return nil
		},
		lifecycle.GuardCondicionesPrevias: func(doc any) error {
			d := doc.(*Document)
			for _, c := range d.Condiciones {
				if !c.Verificado {
					return sentinel.NewRuleError("PETAR_CONDICION_NO_VERIFICADA",
						"previous condition %d (%s) is not verified", c.SequenceIndex, c.Descripcion)
				}
			}
			return nil
		},
	}
	return &Service{
		db:       db,
		store:    NewStore(db),
		seq:      seq,
		machine:  lifecycle.NewPETARMachine(guards),
		resolver: resolver,
		policy:   policy,
		clock:    time.Now,
	}
}

// Store exposes the underlying store, mainly for migrations.
func (svc *Service) Store() *Store { return svc.store }

// ChecklistInput is one checklist item in a request.
type ChecklistInput struct {
	Descripcion string `json:"descripcion"`
	Cumple      bool   `json:"cumple"`
}

// ConditionInput is one previous condition in a request.
type ConditionInput struct {
	Descripcion string `json:"descripcion"`
	Verificado  bool   `json:"verificado"`
}

// PersonnelInput attaches a worker by id; name and document number are
// resolved and frozen server-side.
type PersonnelInput struct {
	WorkerID string `json:"trabajador_id"`
	Rol      string `json:"rol"`
}

// CreateInput is the payload for creating a PETAR document.
type CreateInput struct {
	Area         string           `json:"area"`
	Lugar        string           `json:"lugar"`
	Descripcion  string           `json:"descripcion_trabajo"`
	TipoTrabajo  string           `json:"tipo_trabajo"`
	FechaInicio  *time.Time       `json:"fecha_inicio,omitempty"`
	FechaFin     *time.Time       `json:"fecha_fin,omitempty"`
	SupervisorID string           `json:"supervisor_id"`
	Checklist    []ChecklistInput `json:"checklist"`
	Condiciones  []ConditionInput `json:"condiciones_previas"`
	Personnel    []PersonnelInput `json:"personal_involucrado"`
}

// UpdateInput is the payload for updating a permit before it is approved.
type UpdateInput struct {
	Code string `json:"codigo"`
	CreateInput
}

func (svc *Service) validateInterval(in CreateInput) error {
	if in.Descripcion == "" {
		return sentinel.NewRuleError("DOC_MISSING_FIELD", "descripcion_trabajo is required")
	}
	if in.FechaInicio == nil || in.FechaFin == nil {
		return nil
	}
	if !in.FechaFin.After(*in.FechaInicio) {
		return sentinel.NewRuleError("PETAR_INVALID_INTERVAL",
			"fecha_fin must be after fecha_inicio")
	}
	if d := in.FechaFin.Sub(*in.FechaInicio); d > svc.policy.PermitCap {
		return sentinel.NewRuleError("PETAR_DURATION_EXCEEDS_CAP",
			"permit validity %s exceeds the maximum of %s", d, svc.policy.PermitCap)
	}
	return nil
}

func (svc *Service) buildLines(ctx context.Context, in CreateInput) ([]ChecklistItem, []Condition, []PersonnelLine, error) {
	checklist := make([]ChecklistItem, 0, len(in.Checklist))
	for _, c := range in.Checklist {
		checklist = append(checklist, ChecklistItem{Descripcion: c.Descripcion, Cumple: c.Cumple})
	}
	conds := make([]Condition, 0, len(in.Condiciones))
	for _, c := range in.Condiciones {
		conds = append(conds, Condition{Descripcion: c.Descripcion, Verificado: c.Verificado})
	}
	personnel := make([]PersonnelLine, 0, len(in.Personnel))
	for _, p := range in.Personnel {
		ws, err := svc.resolver.ResolveWorker(ctx, p.WorkerID)
		if err != nil {
			return nil, nil, nil, err
		}
		personnel = append(personnel, PersonnelLine{
			WorkerID:       p.WorkerID,
			WorkerName:     ws.FullName,
			WorkerDocument: ws.DocumentNumber,
			Rol:            p.Rol,
		})
	}
	return checklist, conds, personnel, nil
}

// Create issues a code, freezes worker snapshots, and persists the permit
// with its lines in one transaction.
func (svc *Service) Create(ctx context.Context, company, actor string, in CreateInput) (*Document, error) {
	company = documents.CompanyOrDefault(company)
	if err := svc.validateInterval(in); err != nil {
		return nil, err
	}

	now := svc.clock()
	rec := &Record{
		ID:          uuid.NewString(),
		Company:     company,
		State:       lifecycle.StateBorrador,
		Area:        in.Area,
		Lugar:       in.Lugar,
		Descripcion: in.Descripcion,
		TipoTrabajo: in.TipoTrabajo,
		FechaInicio: in.FechaInicio,
		FechaFin:    in.FechaFin,
		CreatedAt:   now,
		UpdatedAt:   now,
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

	checklist, conds, personnel, err := svc.buildLines(ctx, in)
	if err != nil {
		return nil, err
	}
	err = svc.db.Transaction(func(tx *gorm.DB) error {
		code, err := svc.seq.Next(tx, company, string(documents.TypePETAR), now.Year())
		if err != nil {
			return err
		}
		rec.Code = code
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		return svc.store.replaceLines(tx, rec.ID, checklist, conds, personnel)
	})
	if err != nil {
		return nil, err
	}
	return &Document{Record: *rec, Checklist: checklist, Condiciones: conds, Personnel: personnel}, nil
}

// Get loads one permit with its lines.
func (svc *Service) Get(_ context.Context, company, id string) (*Document, error) {
	return svc.store.Get(documents.CompanyOrDefault(company), id)
}

// List returns the company's permits, optionally filtered by state.
func (svc *Service) List(_ context.Context, company, state string) ([]Record, error) {
	return svc.store.List(documents.CompanyOrDefault(company), state)
}

// editable reports whether content edits are allowed in the given state.
// Conditions get verified while the permit waits for approval, so both
// authoring states accept edits; an approved or executing permit does not.
func (svc *Service) editable(state lifecycle.State) bool {
	return state == lifecycle.StateBorrador || state == lifecycle.StatePendienteAprobacion
}

// Update rewrites the permit fields and replaces its lines.
func (svc *Service) Update(ctx context.Context, company, id, actor string, in UpdateInput) (*Document, error) {
	company = documents.CompanyOrDefault(company)
	var out *Document
	err := svc.db.Transaction(func(tx *gorm.DB) error {
		rec, err := svc.store.get(tx, company, id, true)
		if err != nil {
			return err
		}
		if svc.machine.Terminal(rec.State) {
			return documents.ErrImmutable(documents.TypePETAR, rec.Code, rec.State)
		}
		if !svc.editable(rec.State) {
			return sentinel.NewRuleError("PETAR_NOT_EDITABLE",
				"permit %s in state %s does not accept edits", rec.Code, rec.State)
		}
		if in.Code != "" && in.Code != rec.Code {
			return documents.ErrCodeImmutable(documents.TypePETAR, rec.Code)
		}
		if err := svc.validateInterval(in.CreateInput); err != nil {
			return err
		}

		rec.Area = in.Area
		rec.Lugar = in.Lugar
		rec.Descripcion = in.Descripcion
		rec.TipoTrabajo = in.TipoTrabajo
		rec.FechaInicio = in.FechaInicio
		rec.FechaFin = in.FechaFin
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

		checklist, conds, personnel, err := svc.buildLines(ctx, in.CreateInput)
		if err != nil {
			return err
		}
		if err := svc.store.replaceLines(tx, rec.ID, checklist, conds, personnel); err != nil {
			return err
		}
		if err := tx.Save(rec).Error; err != nil {
			return err
		}
		out = &Document{Record: *rec, Checklist: checklist, Condiciones: conds, Personnel: personnel}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Transition moves the permit to the requested state. The approval gates run
// as machine guards against the loaded document.
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
		checklist, conds, personnel, err := svc.store.lines(tx, rec.ID)
		if err != nil {
			return err
		}
		doc := &Document{Record: *rec, Checklist: checklist, Condiciones: conds, Personnel: personnel}
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
		out = &Document{Record: *rec, Checklist: checklist, Condiciones: conds, Personnel: personnel}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a non-terminal permit with its lines.
func (svc *Service) Delete(_ context.Context, company, id string) error {
	company = documents.CompanyOrDefault(company)
	return svc.db.Transaction(func(tx *gorm.DB) error {
		rec, err := svc.store.get(tx, company, id, true)
		if err != nil {
			return err
		}
		if svc.machine.Terminal(rec.State) {
			return documents.ErrImmutable(documents.TypePETAR, rec.Code, rec.State)
		}
		for _, model := range []any{&ChecklistItem{}, &Condition{}, &PersonnelLine{}} {
			if err := tx.Where("document_id = ?", rec.ID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(rec).Error
	})
}
