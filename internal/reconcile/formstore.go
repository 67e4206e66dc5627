package reconcile

import "sync"

// Field identifies one logical form field on the setup and settings panels.
type Field string

const (
	FieldDifficulty  Field = "difficulty"
	FieldTimerLength Field = "timer_length"
	FieldTeamCount   Field = "team_count"
	FieldTeamName    Field = "team_name"
	FieldTeamUser    Field = "team_user"
)

// FormKey addresses one pending form entry. Team is the 1-based team number
// for the per-team fields and zero for the scalar ones.
type FormKey struct {
	Field Field
	Team  int
}

// ScalarKey returns the key for a field without a team dimension.
func ScalarKey(f Field) FormKey { return FormKey{Field: f} }

// TeamKey returns the key for a per-team field.
func TeamKey(f Field, team int) FormKey { return FormKey{Field: f, Team: team} }

// FormStore holds locally entered form values the host has not yet echoed
// back. An entry exists from the moment the user edits a control until the
// matching service call is confirmed; a failed call leaves the entry in
// place so the edit is not silently lost.
//
// Values are kept as the raw control strings, the same shape they leave the
// display in and enter a service payload in.
type FormStore struct {
	mu      sync.Mutex
	pending map[FormKey]string
}

func NewFormStore() *FormStore {
	return &FormStore{pending: make(map[FormKey]string)}
}

// Set records a local edit, overwriting any previous pending value.
func (s *FormStore) Set(k FormKey, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[k] = value
}

// Effective returns the pending value for k if one exists, else fallback.
// Every render path reads form values through here so in-flight edits are
// never painted over by a stale authoritative value.
func (s *FormStore) Effective(k FormKey, fallback string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.pending[k]; ok {
		return v
	}
	return fallback
}

// Clear removes a pending entry. Called only once the matching service call
// has been confirmed by the host.
func (s *FormStore) Clear(k FormKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, k)
}

// HasPending reports whether any field holds an unconfirmed edit.
func (s *FormStore) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) > 0
}
