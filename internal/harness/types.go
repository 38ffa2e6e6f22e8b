package harness

import (
	"time"

	"github.com/PiperEve/BlueGhost/internal/model"
	"github.com/PiperEve/BlueGhost/internal/persist"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step matched its expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	// Errors contains one message per failed expectation or assertion.
	Errors []string `json:"errors,omitempty"`

	// Events are all notifications in Seq order.
	Events []model.Event `json:"events"`

	// Refs maps save_as names to the ids they captured.
	Refs map[string]string `json:"refs"`

	// Final is the reconciled state after the last step.
	Final persist.Snapshot `json:"final"`

	// Now is the clock reading after the last step.
	Now time.Time `json:"now"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
		Refs:   make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Count returns the number of events of kind.
func (r *Result) Count(kind model.EventKind) int {
	n := 0
	for _, ev := range r.Events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}
