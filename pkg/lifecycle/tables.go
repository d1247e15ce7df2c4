package lifecycle

// Lifecycle states. The same label can appear in more than one machine; each
// machine owns its legal edges.
const (
	StateBorrador            State = "Borrador"
	StateCompletado          State = "Completado"
	StateAprobado            State = "Aprobado"
	StateAprobada            State = "Aprobada"
	StateEnEjecucion         State = "EnEjecucion"
	StateFinalizado          State = "Finalizado"
	StatePendienteAprobacion State = "PendienteAprobacion"
	StateCerrado             State = "Cerrado"
	StateAnulado             State = "Anulado"
	StatePendienteRevision   State = "PendienteRevision"
	StateEnRevision          State = "EnRevision"
	StateVigente             State = "Vigente"
	StateObsoleto            State = "Obsoleto"
	StateCancelado           State = "Cancelado"
	StateRechazado           State = "Rechazado"
)

// Guard names referenced by the transition tables. The owning document
// package registers the matching GuardFunc when it builds its machine.
const (
	GuardChecklistComplete  = "checklistComplete"
	GuardCondicionesPrevias = "condicionesPrevias"
	GuardHazardLines        = "hazardLines"
)

// NewATSMachine returns the machine for job-hazard analysis documents:
// a forward-only chain with no skips.
func NewATSMachine() *Machine {
	return New(Config{
		DocType: "ATS",
		Transitions: []TransitionRule{
			{From: StateBorrador, To: StateCompletado},
			{From: StateCompletado, To: StateAprobado},
			{From: StateAprobado, To: StateEnEjecucion},
			{From: StateEnEjecucion, To: StateFinalizado},
		},
		Terminal: []State{StateFinalizado},
	})
}

// NewPETARMachine returns the machine for high-risk work permits. Submitting
// for approval requires every checklist item marked cumple; approving
// requires every previous condition verified. Any pre-execution state can be
// voided.
func NewPETARMachine(guards map[string]GuardFunc) *Machine {
	return New(Config{
		DocType: "PETAR",
		Transitions: []TransitionRule{
			{From: StateBorrador, To: StatePendienteAprobacion, Guard: GuardChecklistComplete},
			{From: StatePendienteAprobacion, To: StateAprobado, Guard: GuardCondicionesPrevias},
			{From: StateAprobado, To: StateEnEjecucion},
			{From: StateEnEjecucion, To: StateCerrado},
			{From: StateBorrador, To: StateAnulado},
			{From: StatePendienteAprobacion, To: StateAnulado},
			{From: StateAprobado, To: StateAnulado},
		},
		Terminal: []State{StateCerrado, StateAnulado},
		Guards:   guards,
	})
}

// NewPETSMachine returns the machine for versioned safe-work procedures.
// Review can send a draft back; entering Vigente is handled by the service,
// which also obsoletes the previously current version.
func NewPETSMachine() *Machine {
	return New(Config{
		DocType: "PETS",
		Transitions: []TransitionRule{
			{From: StateBorrador, To: StatePendienteRevision},
			{From: StatePendienteRevision, To: StateEnRevision},
			{From: StateEnRevision, To: StateVigente},
			{From: StateEnRevision, To: StateBorrador},
		},
		Terminal: []State{StateVigente, StateObsoleto},
	})
}

// NewPermitMachine returns the general machine shared by hazard/risk matrix
// documents and generic work permits. Cancelado and Rechazado are reachable
// from every non-terminal state.
func NewPermitMachine(docType string, guards map[string]GuardFunc) *Machine {
	approveGuard := ""
	if _, ok := guards[GuardHazardLines]; ok {
		approveGuard = GuardHazardLines
	}
	transitions := []TransitionRule{
		{From: StateBorrador, To: StatePendienteAprobacion},
		{From: StateBorrador, To: StateCompletado},
		{From: StatePendienteAprobacion, To: StateAprobado, Guard: approveGuard},
		{From: StateCompletado, To: StateAprobado, Guard: approveGuard},
		{From: StateAprobado, To: StateEnEjecucion},
		{From: StateEnEjecucion, To: StateCompletado},
		{From: StateEnEjecucion, To: StateFinalizado},
	}
	for _, from := range []State{StateBorrador, StatePendienteAprobacion, StateCompletado, StateAprobado, StateEnEjecucion} {
		transitions = append(transitions,
			TransitionRule{From: from, To: StateCancelado},
			TransitionRule{From: from, To: StateRechazado},
		)
	}
	return New(Config{
		DocType:     docType,
		Transitions: transitions,
		Terminal:    []State{StateFinalizado, StateCancelado, StateRechazado},
		Guards:      guards,
	})
}

// NewEvaluationMachine returns the machine for standalone risk evaluations,
// which are approved in a single step.
func NewEvaluationMachine() *Machine {
	return New(Config{
		DocType: "EvaluacionRiesgo",
		Transitions: []TransitionRule{
			{From: StateBorrador, To: StateAprobada},
			{From: StateBorrador, To: StateCancelado},
		},
		Terminal: []State{StateAprobada, StateCancelado},
	})
}
