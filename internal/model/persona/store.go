package persona

// Store exposes persona lookup to the prompt builder and HTTP handlers.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore is a read-only Store backed by a fixed slice.
type MemoryStore struct {
	items []Persona
	byID  map[string]int
}

// NewMemoryStore copies items into a new store.
func NewMemoryStore(items []Persona) *MemoryStore {
	s := &MemoryStore{
		items: append([]Persona(nil), items...),
		byID:  make(map[string]int, len(items)),
	}
	for i, item := range s.items {
		s.byID[item.ID] = i
	}
	return s
}

// List returns a copy of every persona.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Persona{}, false
	}
	return s.items[i], true
}
