package orchestrator

import "time"

// State is the derived health of the primary provider.
type State string

const (
	StateHealthy        State = "healthy"
	StateDegraded       State = "degraded"
	StateForcedFallback State = "forced_fallback"
)

// Status is an operator-facing snapshot.
type Status struct {
	State          State           `json:"state"`
	FailureCount   int             `json:"failureCount"`
	LastFailure    *time.Time      `json:"lastFailure,omitempty"`
	ForcedFallback bool            `json:"forcedFallback"`
	UsingFallback  bool            `json:"usingFallback"`
	MaxFailures    int             `json:"maxFailures"`
	CooldownMs     int64           `json:"cooldownMs"`
	ResetPolicy    string          `json:"resetPolicy"`
	Primary        string          `json:"primary"`
	Secondary      string          `json:"secondary"`
	Providers      []ProviderStats `json:"providers"`
}

// Status reports the current failure state and provider counters.
func (o *Orchestrator) Status() Status {
	snap := o.failures.Snapshot()
	st := Status{
		State:          deriveState(snap, o.cfg.MaxFailures),
		FailureCount:   snap.FailureCount,
		ForcedFallback: snap.ForcedFallback,
		UsingFallback:  snap.UsingFallback,
		MaxFailures:    o.cfg.MaxFailures,
		CooldownMs:     o.cfg.CooldownPeriod.Milliseconds(),
		ResetPolicy:    o.cfg.ResetPolicy.String(),
		Primary:        o.primary.Name(),
		Secondary:      o.secondary.Name(),
		Providers:      o.Stats(),
	}
	if !snap.LastFailure.IsZero() {
		t := snap.LastFailure
		st.LastFailure = &t
	}
	return st
}

func deriveState(snap FailureSnapshot, maxFailures int) State {
	switch {
	case snap.ForcedFallback:
		return StateForcedFallback
	case snap.FailureCount >= maxFailures:
		return StateDegraded
	default:
		return StateHealthy
	}
}
