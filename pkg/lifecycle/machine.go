// Package lifecycle implements the per-document-type state machines that
// govern authoring, review, approval, execution and obsolescence of the
// legally-mandated safety documents.
package lifecycle

import "fmt"

// State is a document lifecycle state. Persisted values are the Spanish
// labels used on the printed documents, so they are part of the data contract.
type State string

// TransitionRule defines one allowed edge of a machine. Guard, when set, is
// evaluated after the edge is matched; a non-nil error vetoes the transition.
type TransitionRule struct {
	From  State
	To    State
	Guard string // name of the guard the service must satisfy, "" for none
}

// Machine validates lifecycle state transitions for one document type.
// Transitions are requested by target state, not by verb: the machine's only
// job is to accept or reject the (from, to) pair.
type Machine struct {
	docType     string
	transitions []TransitionRule
	terminal    map[State]bool
	guards      map[string]GuardFunc
}

// GuardFunc checks a type-specific precondition for a transition. The value
// passed is the document aggregate the service is transitioning.
type GuardFunc func(doc any) error

// Config assembles a Machine.
type Config struct {
	DocType     string
	Transitions []TransitionRule
	Terminal    []State
	Guards      map[string]GuardFunc
}

// New builds a Machine from a transition table.
func New(cfg Config) *Machine {
	term := make(map[State]bool, len(cfg.Terminal))
	for _, s := range cfg.Terminal {
		term[s] = true
	}
	guards := cfg.Guards
	if guards == nil {
		guards = map[string]GuardFunc{}
	}
	return &Machine{
		docType:     cfg.DocType,
		transitions: cfg.Transitions,
		terminal:    term,
		guards:      guards,
	}
}

// Terminal reports whether state is terminal. Documents in a terminal state
// are immutable: no field mutation, no line replacement, no deletion.
func (m *Machine) Terminal(state State) bool {
	return m.terminal[state]
}

// ValidateTransition checks that from->to is a legal edge and that its guard,
// if any, passes against doc. Returns nil when the transition may proceed.
func (m *Machine) ValidateTransition(from, to State, doc any) error {
	if from == to {
		return &TransitionError{
			Code:    "LIFECYCLE_NOOP_TRANSITION",
			DocType: m.docType,
			From:    from,
			To:      to,
			Message: fmt.Sprintf("%s is already in state %s", m.docType, from),
		}
	}
	for _, t := range m.transitions {
		if t.From != from || t.To != to {
			continue
		}
		if t.Guard == "" {
			return nil
		}
		guard, ok := m.guards[t.Guard]
		if !ok {
			return fmt.Errorf("machine %s: guard %q not registered", m.docType, t.Guard)
		}
		return guard(doc)
	}
	return &TransitionError{
		Code:    "LIFECYCLE_INVALID_TRANSITION",
		DocType: m.docType,
		From:    from,
		To:      to,
		Message: fmt.Sprintf("%s cannot move from %s to %s", m.docType, from, to),
	}
}

// AllowedTransitions returns all target states reachable from the given state.
func (m *Machine) AllowedTransitions(from State) []State {
	var allowed []State
	for _, t := range m.transitions {
		if t.From == from {
			allowed = append(allowed, t.To)
		}
	}
	return allowed
}

// TransitionError is a structured rejection naming the current and requested
// state. It maps to a 400 response.
type TransitionError struct {
	Code    string `json:"code"`
	DocType string `json:"docType"`
	From    State  `json:"from"`
	To      State  `json:"to"`
	Message string `json:"message"`
}

func (e *TransitionError) Error() string {
	return e.Message
}
