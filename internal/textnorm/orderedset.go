package textnorm

// OrderedSet is a set of strings that remembers insertion order, so that
// pooled keyword sets are reproducible from run to run.
type OrderedSet struct {
	items []string
	index map[string]struct{}
}

// NewOrderedSet returns a set holding items in order, duplicates dropped.
func NewOrderedSet(items ...string) *OrderedSet {
	s := &OrderedSet{index: make(map[string]struct{}, len(items))}
	s.AddAll(items...)
	return s
}

// Add inserts v if absent. Empty strings are ignored.
func (s *OrderedSet) Add(v string) bool {
	if v == "" {
		return false
	}
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = struct{}{}
	s.items = append(s.items, v)
	return true
}

// AddAll inserts every item in order.
func (s *OrderedSet) AddAll(items ...string) {
	for _, v := range items {
		s.Add(v)
	}
}

// Contains reports membership.
func (s *OrderedSet) Contains(v string) bool {
	_, ok := s.index[v]
	return ok
}

// Len is the number of items.
func (s *OrderedSet) Len() int { return len(s.items) }

// Items returns a copy of the items in insertion order.
func (s *OrderedSet) Items() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}
