package delivery

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sigeso/sst-registry/pkg/blob"
	"github.com/sigeso/sst-registry/pkg/documents"
	"github.com/sigeso/sst-registry/pkg/lifecycle"
	"github.com/sigeso/sst-registry/pkg/sentinel"
	"github.com/sigeso/sst-registry/pkg/sequence"
	"github.com/sigeso/sst-registry/pkg/snapshot"
)

// newMachine returns the delivery lifecycle: a certificate is drafted,
// handed over, and closed by the worker's confirmation. Cancellation is
// possible until the receipt is confirmed.
func newMachine() *lifecycle.Machine {
	return lifecycle.New(lifecycle.Config{
		DocType: "EntregaEPP",
		Transitions: []lifecycle.TransitionRule{
			{From: lifecycle.StateBorrador, To: lifecycle.StateCompletado},
			{From: lifecycle.StateCompletado, To: lifecycle.StateFinalizado},
			{From: lifecycle.StateBorrador, To: lifecycle.StateCancelado},
			{From: lifecycle.StateCompletado, To: lifecycle.StateCancelado},
		},
		Terminal: []lifecycle.State{lifecycle.StateFinalizado, lifecycle.StateCancelado},
	})
}

// Service implements the PPE delivery operations.
type Service struct {
	db       *gorm.DB
	store    *Store
	seq      *sequence.Sequencer
	machine  *lifecycle.Machine
	resolver snapshot.Resolver
	blobs    blob.Store
	clock    func() time.Time
}

// NewService wires the delivery aggregate.
func NewService(db *gorm.DB, seq *sequence.Sequencer, resolver snapshot.Resolver, blobs blob.Store) *Service {
	return &Service{
		db:       db,
		store:    NewStore(db),
		seq:      seq,
		machine:  newMachine(),
		resolver: resolver,
		blobs:    blobs,
		clock:    time.Now,
	}
}

// Store exposes the underlying store, mainly for migrations.
func (svc *Service) Store() *Store { return svc.store }

// LineInput references a PPE catalog item; name, category and validity are
// frozen server-side.
type LineInput struct {
	PPEItemID string `json:"epp_id"`
	Cantidad  int    `json:"cantidad"`
}

// CreateInput is the payload for creating a delivery certificate.
type CreateInput struct {
	WorkerID string      `json:"trabajador_id"`
	Lines    []LineInput `json:"items"`
}

// ConfirmInput is the payload for confirming receipt. The signature comes as
// base64-encoded image bytes unless the delivery is exempt.
type ConfirmInput struct {
	Signature    string `json:"firma,omitempty"`
	Exempt       bool   `json:"exonerado_firma,omitempty"`
	ExemptReason string `json:"motivo_exoneracion,omitempty"`
}

func (svc *Service) buildLines(ctx context.Context, inputs []LineInput) ([]Line, error) {
	lines := make([]Line, 0, len(inputs))
	for _, in := range inputs {
		ps, err := svc.resolver.ResolvePPEItem(ctx, in.PPEItemID)
		if err != nil {
			return nil, err
		}
		qty := in.Cantidad
		if qty <= 0 {
			qty = 1
		}
		lines = append(lines, Line{
			PPEItemID:    in.PPEItemID,
			Name:         ps.Name,
			Category:     ps.Category,
			ValidityDays: ps.ValidityDays,
			Cantidad:     qty,
		})
	}
	return lines, nil
}

// Create issues a CERT code, freezes the worker and item snapshots, and
// persists the certificate in one transaction.
func (svc *Service) Create(ctx context.Context, company, actor string, in CreateInput) (*Document, error) {
	company = documents.CompanyOrDefault(company)
	if in.WorkerID == "" {
		return nil, sentinel.NewRuleError("DOC_MISSING_FIELD", "trabajador_id is required")
	}
	if len(in.Lines) == 0 {
		return nil, sentinel.NewRuleError("DELIVERY_NO_ITEMS", "a delivery needs at least one item")
	}

	ws, err := svc.resolver.ResolveWorker(ctx, in.WorkerID)
	if err != nil {
		return nil, err
	}
	lines, err := svc.buildLines(ctx, in.Lines)
	if err != nil {
		return nil, err
	}

	now := svc.clock()
	rec := &Record{
		ID:        uuid.NewString(),
		Company:   company,
		State:     lifecycle.StateBorrador,
		WorkerID:  in.WorkerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	snapshot.FreezeIfAbsent(&rec.WorkerName, ws.FullName)
	snapshot.FreezeIfAbsent(&rec.WorkerDocument, ws.DocumentNumber)
	snapshot.FreezeIfAbsent(&rec.WorkerJobTitle, ws.JobTitle)
	rec.History = rec.History.Append(actor, "crear", "", lifecycle.StateBorrador, now)

	err = svc.db.Transaction(func(tx *gorm.DB) error {
		code, err := svc.seq.Next(tx, company, string(documents.TypeEntregaEPP), now.Year())
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

// Get loads one delivery with its lines.
func (svc *Service) Get(_ context.Context, company, id string) (*Document, error) {
	return svc.store.Get(documents.CompanyOrDefault(company), id)
}

// List returns the company's deliveries, optionally filtered by state and
// worker.
func (svc *Service) List(_ context.Context, company, state, workerID string) ([]Record, error) {
	return svc.store.List(documents.CompanyOrDefault(company), state, workerID)
}

// Deliver marks the certificate as handed over to the worker.
func (svc *Service) Deliver(_ context.Context, company, id, actor string) (*Document, error) {
	return svc.transition(company, id, actor, lifecycle.StateCompletado)
}

// Cancel voids an unconfirmed certificate.
func (svc *Service) Cancel(_ context.Context, company, id, actor string) (*Document, error) {
	return svc.transition(company, id, actor, lifecycle.StateCancelado)
}

func (svc *Service) transition(company, id, actor string, to lifecycle.State) (*Document, error) {
	company = documents.CompanyOrDefault(company)
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
		rec.History = rec.History.Append(actor, documents.ActionForState(to), from, to, now)
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

// Confirm records the worker's receipt. A second confirmation is a conflict.
// Unless the delivery is exempt, a signature image is required and uploaded
// to the blob store before the record is closed.
func (svc *Service) Confirm(ctx context.Context, company, id, actor string, in ConfirmInput) (*Document, error) {
	company = documents.CompanyOrDefault(company)

	var signature []byte
	if !in.Exempt {
		if in.Signature == "" {
			return nil, sentinel.NewRuleError("DELIVERY_SIGNATURE_REQUIRED",
				"a signature is required unless the delivery is exempt")
		}
		var err error
		signature, err = base64.StdEncoding.DecodeString(in.Signature)
		if err != nil {
			return nil, sentinel.NewRuleError("DELIVERY_SIGNATURE_INVALID",
				"firma must be base64 encoded: %v", err)
		}
	} else if in.ExemptReason == "" {
		return nil, sentinel.NewRuleError("DELIVERY_EXEMPT_REASON_REQUIRED",
			"motivo_exoneracion is required for an exempt delivery")
	}

	var out *Document
	err := svc.db.Transaction(func(tx *gorm.DB) error {
		rec, err := svc.store.get(tx, company, id, true)
		if err != nil {
			return err
		}
		if rec.ConfirmedAt != nil {
			return fmt.Errorf("delivery %s was already confirmed at %s: %w",
				rec.Code, rec.ConfirmedAt.Format(time.RFC3339), sentinel.ErrConflict)
		}
		lines, err := svc.store.lines(tx, rec.ID)
		if err != nil {
			return err
		}
		doc := &Document{Record: *rec, Lines: lines}
		if err := svc.machine.ValidateTransition(rec.State, lifecycle.StateFinalizado, doc); err != nil {
			return err
		}

		if len(signature) > 0 {
			url, err := svc.blobs.Upload(ctx, signature, "signatures")
			if err != nil {
				return fmt.Errorf("storing signature: %w", err)
			}
			rec.SignatureURL = url
		}
		rec.Exempt = in.Exempt
		rec.ExemptReason = in.ExemptReason

		now := svc.clock()
		from := rec.State
		rec.ConfirmedAt = &now
		rec.State = lifecycle.StateFinalizado
		rec.History = rec.History.Append(actor, "confirmar", from, lifecycle.StateFinalizado, now)
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

// Delete removes a non-terminal delivery with its lines.
func (svc *Service) Delete(_ context.Context, company, id string) error {
	company = documents.CompanyOrDefault(company)
	return svc.db.Transaction(func(tx *gorm.DB) error {
		rec, err := svc.store.get(tx, company, id, true)
		if err != nil {
			return err
		}
		if svc.machine.Terminal(rec.State) {
			return documents.ErrImmutable(documents.TypeEntregaEPP, rec.Code, rec.State)
		}
		if err := tx.Where("document_id = ?", rec.ID).Delete(&Line{}).Error; err != nil {
			return err
		}
		return tx.Delete(rec).Error
	})
}

// RepairSnapshots backfills empty snapshot fields from master data. Only
// confirmed, non-exempt certificates are candidates, only empty fields are
// written, so the pass is idempotent and never rewrites a frozen value.
// Returns the number of repaired records.
func (svc *Service) RepairSnapshots(ctx context.Context, company string) (int, error) {
	company = documents.CompanyOrDefault(company)
	repaired := 0
	err := svc.db.Transaction(func(tx *gorm.DB) error {
		recs, err := svc.store.missingSnapshots(tx, company)
		if err != nil {
			return err
		}
		for i := range recs {
			rec := &recs[i]
			changed := false
			if rec.WorkerName == "" || rec.WorkerDocument == "" || rec.WorkerJobTitle == "" {
				ws, err := svc.resolver.ResolveWorker(ctx, rec.WorkerID)
				if err != nil {
					// Workers can disappear from master data; leave the
					// worker fields for a later pass instead of failing
					// the batch. Line repair below still applies.
				} else {
					changed = snapshot.FreezeIfAbsent(&rec.WorkerName, ws.FullName)
					changed = snapshot.FreezeIfAbsent(&rec.WorkerDocument, ws.DocumentNumber) || changed
					changed = snapshot.FreezeIfAbsent(&rec.WorkerJobTitle, ws.JobTitle) || changed
				}
			}

			lines, err := svc.store.lines(tx, rec.ID)
			if err != nil {
				return err
			}
			for j := range lines {
				line := &lines[j]
				if line.Name != "" && line.ValidityDays != 0 {
					continue
				}
				ps, err := svc.resolver.ResolvePPEItem(ctx, line.PPEItemID)
				if err != nil {
					continue
				}
				lineChanged := snapshot.FreezeIfAbsent(&line.Name, ps.Name)
				lineChanged = snapshot.FreezeIfAbsent(&line.Category, ps.Category) || lineChanged
				lineChanged = snapshot.FreezeIntIfAbsent(&line.ValidityDays, ps.ValidityDays) || lineChanged
				if lineChanged {
					if err := tx.Save(line).Error; err != nil {
						return err
					}
					changed = true
				}
			}
			if !changed {
				continue
			}

			now := svc.clock()
			rec.History = rec.History.Append("system", "reparar_snapshot", rec.State, rec.State, now)
			rec.UpdatedAt = now
			if err := tx.Save(rec).Error; err != nil {
				return err
			}
			repaired++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return repaired, nil
}
