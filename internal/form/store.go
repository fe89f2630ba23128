package form

import (
	"reflect"
	"sort"

	"github.com/Cheertaboi/coupon-form-service/internal/models"
)

// Change describes one attribute mutation.
type Change struct {
	Name string
	Old  any
	New  any // nil when the attribute was unset
}

// Listener receives change notifications for one attribute.
type Listener func(Change)

// Attributes is the read side of a Store. Derivation only ever reads.
type Attributes interface {
	Get(name string) (any, bool)
	Has(name string) bool
	String(name string) string
	Int(name string) (int, bool)
	Number(name string) (float64, bool)
	Ints(name string) []int
	Strings(name string) []string
	Editing() bool
}

// Store is the mutable key/value state of one coupon being created or edited.
// Writes notify the listeners registered for the written attribute; writes
// that do not change the value are silent. A Store is not safe for concurrent
// use: it is owned by one form session's event loop.
type Store struct {
	values    map[string]any
	listeners map[string][]Listener
	editing   bool
}

// NewStore returns an empty store in create mode.
func NewStore() *Store {
	return &Store{
		values:    make(map[string]any),
		listeners: make(map[string][]Listener),
	}
}

// NewStoreFromRecord seeds a store in edit mode. No listeners fire.
func NewStoreFromRecord(rec models.Attributes) (*Store, error) {
	s := NewStore()
	s.editing = true
	if err := s.load(rec); err != nil {
		return nil, err
	}
	return s, nil
}

// Editing reports whether the store was seeded from a persisted record.
func (s *Store) Editing() bool { return s.editing }

// OnChange registers fn for changes to attribute name.
func (s *Store) OnChange(name string, fn Listener) {
	s.listeners[name] = append(s.listeners[name], fn)
}

// Set coerces value and writes it. A nil or empty coerced value unsets the
// attribute, except for strings where "" is a legal value. It reports whether
// the stored value changed.
func (s *Store) Set(name string, value any) (bool, error) {
	v, err := Coerce(name, value)
	if err != nil {
		return false, err
	}
	if v == nil {
		return s.Unset(name), nil
	}

	old, had := s.values[name]
	if had && reflect.DeepEqual(old, v) {
		return false, nil
	}
	s.values[name] = v
	s.notify(Change{Name: name, Old: old, New: v})
	return true, nil
}

// Unset removes the attribute and reports whether it was present.
func (s *Store) Unset(name string) bool {
	old, had := s.values[name]
	if !had {
		return false
	}
	delete(s.values, name)
	s.notify(Change{Name: name, Old: old})
	return true
}

func (s *Store) notify(c Change) {
	for _, fn := range s.listeners[c.Name] {
		fn(c)
	}
}

// Replace swaps the whole contents for rec without notifying anyone.
func (s *Store) Replace(rec models.Attributes) error {
	s.values = make(map[string]any)
	return s.load(rec)
}

func (s *Store) load(rec models.Attributes) error {
	for name, raw := range rec {
		v, err := Coerce(name, raw)
		if err != nil {
			return err
		}
		if v != nil {
			s.values[name] = v
		}
	}
	return nil
}

// Snapshot copies the current contents.
func (s *Store) Snapshot() models.Attributes {
	return models.Attributes(s.values).Clone()
}

// Names returns the set attribute names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.values))
	for k := range s.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (s *Store) Get(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

func (s *Store) Has(name string) bool {
	_, ok := s.values[name]
	return ok
}

func (s *Store) String(name string) string {
	v, _ := s.values[name].(string)
	return v
}

func (s *Store) Int(name string) (int, bool) {
	v, ok := s.values[name].(int)
	return v, ok
}

func (s *Store) Number(name string) (float64, bool) {
	switch v := s.values[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func (s *Store) Ints(name string) []int {
	v, _ := s.values[name].([]int)
	return v
}

func (s *Store) Strings(name string) []string {
	v, _ := s.values[name].([]string)
	return v
}

// Ref returns a reference pair attribute.
func (s *Store) Ref(name string) (models.RefItem, bool) {
	v, ok := s.values[name].(models.RefItem)
	return v, ok
}
