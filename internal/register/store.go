package register

import "sync"

// Storage keys shared between the flow and the post-redirect dashboard.
const (
	// FirstNameKey holds the name captured on the first step, reused to
	// personalize later step text.
	FirstNameKey = "firstName"
	// WelcomeFlagKey is the one-shot flag that triggers the welcome modal
	// on the next page load.
	WelcomeFlagKey = "showFirstLoginModal"
)

// ValueStore is the small keyed store the flow persists step values into. It
// outlives a single flow instance in the same way browser storage outlives a
// page.
type ValueStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// MemStore is the in-process ValueStore.
type MemStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{values: make(map[string]string)}
}

func (s *MemStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *MemStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// ConsumeWelcomeFlag reports whether the welcome modal should be shown and
// clears the flag, so a second read never re-triggers the modal.
func ConsumeWelcomeFlag(store ValueStore) bool {
	v, ok := store.Get(WelcomeFlagKey)
	if !ok {
		return false
	}
	store.Delete(WelcomeFlagKey)
	return v == "true"
}
