package deployment

import "time"

// State is the persisted lifecycle record of a deployment. It changes on
// disk only through Store.Persist, which replaces the file atomically.
type State struct {
	Phase    Phase `yaml:"phase"`
	FailedAt Phase `yaml:"failed_at,omitempty"`

	// Provider records which backend actually holds the infrastructure.
	// Set when provisioning starts; compared against the configuration
	// record after edits to detect conflicts.
	Provider string `yaml:"provider,omitempty"`

	Address    string `yaml:"address,omitempty"`
	InstanceID string `yaml:"instance_id,omitempty"`

	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// Fail moves the state into the failed resting phase, recording the phase
// the failure happened in. Calling it while already failed keeps the
// original failed-at phase.
func (s *State) Fail(at Phase) {
	if at == PhaseFailed {
		at = s.FailedAt
	}
	s.Phase = PhaseFailed
	s.FailedAt = at
}

// Advance sets a new forward phase and clears any failure marker.
func (s *State) Advance(p Phase) {
	s.Phase = p
	s.FailedAt = ""
}

// EffectivePhase returns the phase a resume decision should reason about:
// the failed-at phase when failed, the phase itself otherwise.
func (s *State) EffectivePhase() Phase {
	if s.Phase == PhaseFailed && s.FailedAt != "" {
		return s.FailedAt
	}
	return s.Phase
}
