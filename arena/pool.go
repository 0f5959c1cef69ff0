// Package arena provides dense, integer-keyed storage for IR entities and
// their side-table attributes. Two container kinds are provided: Pool, a
// primary map that densely appends new entities and hands back fresh
// handles, and SecondaryMap, which sparsely associates an attribute with an
// already-allocated handle, returning a default value for absent keys.
//
// Both containers are ordered (iteration follows handle order) and support
// O(1) append/lookup, which is what the rest of this module relies on for
// deterministic serialization (see the cache package).
package arena

const poolPageSize = 128

// Pool is a page-allocated arena of T, indexed by dense integer handles.
// Allocating never invalidates previously returned pointers, unlike
// append-based growth of a single slice.
type Pool[T any] struct {
	pages            []*[poolPageSize]T
	allocated, index int
}

// NewPool returns a ready-to-use Pool.
func NewPool[T any]() Pool[T] {
	var p Pool[T]
	p.Reset()
	return p
}

// Allocated returns the number of items allocated so far.
func (p *Pool[T]) Allocated() int {
	return p.allocated
}

// Allocate reserves and returns a pointer to a new zero-valued T, along with
// its dense handle.
func (p *Pool[T]) Allocate() (*T, int) {
	if p.index == poolPageSize {
		if len(p.pages) == cap(p.pages) {
			p.pages = append(p.pages, new([poolPageSize]T))
		} else {
			i := len(p.pages)
			p.pages = p.pages[:i+1]
			if p.pages[i] == nil {
				p.pages[i] = new([poolPageSize]T)
			}
		}
		p.index = 0
	}
	id := (len(p.pages)-1)*poolPageSize + p.index
	ret := &p.pages[len(p.pages)-1][p.index]
	p.index++
	p.allocated++
	return ret, id
}

// View returns a pointer to the i-th allocated item.
func (p *Pool[T]) View(i int) *T {
	page, index := i/poolPageSize, i%poolPageSize
	return &p.pages[page][index]
}

// Reset clears the pool for reuse, retaining the backing pages.
func (p *Pool[T]) Reset() {
	for _, page := range p.pages {
		var zero T
		for i := range page {
			page[i] = zero
		}
	}
	p.pages = p.pages[:0]
	p.index = poolPageSize
	p.allocated = 0
}

// SecondaryMap sparsely associates a value of type V with handles of type K
// (any type whose underlying type is uint32), returning a caller-supplied default for any
// handle that was never explicitly set. It never shrinks; Set grows the
// backing slice as needed.
type SecondaryMap[K ~uint32, V any] struct {
	values  []V
	deflt   V
	present []bool
}

// NewSecondaryMap returns a SecondaryMap whose Get returns deflt for any key
// that hasn't been Set.
func NewSecondaryMap[K ~uint32, V any](deflt V) SecondaryMap[K, V] {
	return SecondaryMap[K, V]{deflt: deflt}
}

// Set associates value with key, growing the backing storage if necessary.
func (m *SecondaryMap[K, V]) Set(key K, value V) {
	i := int(key)
	m.growTo(i)
	m.values[i] = value
	m.present[i] = true
}

// Get returns the value associated with key, or the configured default.
func (m *SecondaryMap[K, V]) Get(key K) V {
	i := int(key)
	if i >= len(m.values) {
		return m.deflt
	}
	return m.values[i]
}

// IsSet reports whether key has an explicitly assigned value.
func (m *SecondaryMap[K, V]) IsSet(key K) bool {
	i := int(key)
	return i < len(m.present) && m.present[i]
}

func (m *SecondaryMap[K, V]) growTo(i int) {
	if i < len(m.values) {
		return
	}
	grown := make([]V, i+1)
	copy(grown, m.values)
	for j := len(m.values); j <= i; j++ {
		grown[j] = m.deflt
	}
	m.values = grown

	presentGrown := make([]bool, i+1)
	copy(presentGrown, m.present)
	m.present = presentGrown
}

// Reset clears all associations, retaining backing storage capacity.
func (m *SecondaryMap[K, V]) Reset() {
	for i := range m.values {
		m.values[i] = m.deflt
		m.present[i] = false
	}
}
