package tracker

import "container/list"

// RecentSet is a bounded set of strings that evicts its oldest insertions first.
// It is not safe for concurrent use.
type RecentSet struct {
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = newest
}

// NewRecentSet creates a set holding at most capacity entries.
// A non-positive capacity is treated as 1.
func NewRecentSet(capacity int) *RecentSet {
	if capacity <= 0 {
		capacity = 1
	}
	return &RecentSet{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Has reports whether key is present.
func (s *RecentSet) Has(key string) bool {
	_, ok := s.items[key]
	return ok
}

// Add inserts key and reports whether it was new.
// Re-adding a present key does not refresh its position.
func (s *RecentSet) Add(key string) bool {
	if _, ok := s.items[key]; ok {
		return false
	}
	if s.order.Len() >= s.capacity {
		s.evictOldest()
	}
	s.items[key] = s.order.PushFront(key)
	return true
}

// Len returns the number of entries.
func (s *RecentSet) Len() int {
	return s.order.Len()
}

// Capacity returns the maximum number of entries.
func (s *RecentSet) Capacity() int {
	return s.capacity
}

func (s *RecentSet) evictOldest() {
	elem := s.order.Back()
	if elem == nil {
		return
	}
	s.order.Remove(elem)
	delete(s.items, elem.Value.(string))
}
