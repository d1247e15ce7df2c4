package lifecycle

import (
	"errors"
	"testing"
)

func TestATSMachine_ForwardOnlyChain(t *testing.T) {
	m := NewATSMachine()

	tests := []struct {
		name    string
		from    State
		to      State
		wantErr bool
	}{
		{"borrador to completado", StateBorrador, StateCompletado, false},
		{"completado to aprobado", StateCompletado, StateAprobado, false},
		{"aprobado to ejecucion", StateAprobado, StateEnEjecucion, false},
		{"ejecucion to finalizado", StateEnEjecucion, StateFinalizado, false},

		{"no skip borrador to aprobado", StateBorrador, StateAprobado, true},
		{"no skip borrador to finalizado", StateBorrador, StateFinalizado, true},
		{"no backwards", StateAprobado, StateBorrador, true},
		{"same state rejected", StateBorrador, StateBorrador, true},
		{"nothing leaves finalizado", StateFinalizado, StateBorrador, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.ValidateTransition(tt.from, tt.to, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTransition(%s, %s) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
			}
			if tt.wantErr {
				var te *TransitionError
				if !errors.As(err, &te) {
					t.Fatalf("expected TransitionError, got %T", err)
				}
				if te.From != tt.from || te.To != tt.to {
					t.Errorf("error names states %s->%s, want %s->%s", te.From, te.To, tt.from, tt.to)
				}
			}
		})
	}
}

func TestPETARMachine_Guards(t *testing.T) {
	guardErr := errors.New("checklist incomplete")
	calls := 0
	m := NewPETARMachine(map[string]GuardFunc{
		GuardChecklistComplete:  func(doc any) error { calls++; return guardErr },
		GuardCondicionesPrevias: func(doc any) error { return nil },
	})

	if err := m.ValidateTransition(StateBorrador, StatePendienteAprobacion, nil); !errors.Is(err, guardErr) {
		t.Fatalf("expected guard error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("guard called %d times, want 1", calls)
	}
	if err := m.ValidateTransition(StatePendienteAprobacion, StateAprobado, nil); err != nil {
		t.Fatalf("condiciones guard passed but transition rejected: %v", err)
	}
}

func TestPETARMachine_AnuladoOnlyBeforeExecution(t *testing.T) {
	m := NewPETARMachine(nil)

	for _, from := range []State{StateBorrador, StatePendienteAprobacion, StateAprobado} {
		if err := m.ValidateTransition(from, StateAnulado, nil); err != nil {
			// Guarded edges are not involved in voiding.
			t.Errorf("voiding from %s rejected: %v", from, err)
		}
	}
	if err := m.ValidateTransition(StateEnEjecucion, StateAnulado, nil); err == nil {
		t.Error("voiding a permit already in execution must be rejected")
	}
	if err := m.ValidateTransition(StateCerrado, StateAnulado, nil); err == nil {
		t.Error("voiding a closed permit must be rejected")
	}
}

func TestPETSMachine_ReviewLoop(t *testing.T) {
	m := NewPETSMachine()

	if err := m.ValidateTransition(StateEnRevision, StateBorrador, nil); err != nil {
		t.Errorf("review may send a draft back: %v", err)
	}
	if err := m.ValidateTransition(StateEnRevision, StateVigente, nil); err != nil {
		t.Errorf("review may publish: %v", err)
	}
	if err := m.ValidateTransition(StateVigente, StateBorrador, nil); err == nil {
		t.Error("a current procedure never changes state in place")
	}
	if !m.Terminal(StateVigente) || !m.Terminal(StateObsoleto) {
		t.Error("Vigente and Obsoleto are terminal for PETS")
	}
}

func TestPermitMachine_CancelFromAnywhere(t *testing.T) {
	m := NewPermitMachine("IPERC", nil)

	for _, from := range []State{StateBorrador, StatePendienteAprobacion, StateCompletado, StateAprobado, StateEnEjecucion} {
		for _, to := range []State{StateCancelado, StateRechazado} {
			if err := m.ValidateTransition(from, to, nil); err != nil {
				t.Errorf("transition %s -> %s rejected: %v", from, to, err)
			}
		}
	}
	if err := m.ValidateTransition(StateFinalizado, StateCancelado, nil); err == nil {
		t.Error("finalized documents cannot be cancelled")
	}
}

func TestPermitMachine_HazardGuardOnApprove(t *testing.T) {
	guardErr := errors.New("no hazard lines")
	m := NewPermitMachine("IPERC", map[string]GuardFunc{
		GuardHazardLines: func(doc any) error { return guardErr },
	})

	if err := m.ValidateTransition(StatePendienteAprobacion, StateAprobado, nil); !errors.Is(err, guardErr) {
		t.Fatalf("expected hazard guard error, got %v", err)
	}
	if err := m.ValidateTransition(StateCompletado, StateAprobado, nil); !errors.Is(err, guardErr) {
		t.Fatalf("expected hazard guard error on completado path, got %v", err)
	}
}

func TestMachine_AllowedTransitions(t *testing.T) {
	m := NewATSMachine()
	got := m.AllowedTransitions(StateBorrador)
	if len(got) != 1 || got[0] != StateCompletado {
		t.Errorf("AllowedTransitions(Borrador) = %v, want [Completado]", got)
	}
	if got := m.AllowedTransitions(StateFinalizado); got != nil {
		t.Errorf("AllowedTransitions(Finalizado) = %v, want none", got)
	}
}
