// Package hopscotch implements an associative container over hopscotch
// hashing: open addressing with a per-bucket neighborhood bitmap, a
// bounded hop-closer displacement search, and a doubly-linked overflow
// list for the rare key that cannot be placed within any neighborhood.
package hopscotch

import (
	"iter"
	"math"
	"math/bits"
	"reflect"

	"github.com/cockroachdb/errors"
)

const debug = false

// Map is a hash table keyed by K, mapping to values of type V. The zero
// value is not usable; construct one with New or MustNew.
type Map[K comparable, V any] struct {
	buckets      []Bucket[K, V]
	overflow     overflowList[K, V]
	n            int
	b            uintptr
	threshold    uintptr
	neighborhood uintptr
	growthNum    uint32
	growthDen    uint32
	powerOfTwo   bool
	maxLoad      float64
	hash         HashFunc[K]
	eq           EqualFunc[K]
	valueEqual   ValueEqualFunc[V]
	allocator    Allocator[K, V]
}

// position names where a live entry lives: either a physical bucket
// index, or a node in the overflow list. home is the bucket whose
// neighborhood bitmap (or overflow flag) claims the entry.
type position[K comparable, V any] struct {
	inBucket  bool
	bucketIdx uintptr
	home      uintptr
	node      *overflowNode[K, V]
}

const defaultInitialBuckets = 16

// New constructs a Map with the given hash function and options. hash
// must be non-nil: spec.md 3 and 6 require the caller to supply it,
// since the container never derives or mixes one on its own.
func New[K comparable, V any](hash HashFunc[K], opts ...Option[K, V]) (*Map[K, V], error) {
	if hash == nil {
		return nil, newKindError(KindConfigurationInvalid, "hash function must not be nil")
	}
	cfg := defaultConfig[K, V]()
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.neighborhood == 0 || cfg.neighborhood > maxNeighborhoodSize {
		return nil, newKindError(KindConfigurationInvalid,
			"neighborhood size %d out of range (1..%d)", cfg.neighborhood, maxNeighborhoodSize)
	}
	// num/den >= 1.1 is checked in integers as 10*num >= 11*den.
	if cfg.growthDen == 0 || uint64(cfg.growthNum)*10 < uint64(cfg.growthDen)*11 {
		return nil, newKindError(KindConfigurationInvalid,
			"growth ratio %d/%d must be at least 1.1", cfg.growthNum, cfg.growthDen)
	}
	if cfg.maxLoadFactor <= 0 || cfg.maxLoadFactor > 1 {
		return nil, newKindError(KindConfigurationInvalid,
			"max load factor %v must be in (0, 1]", cfg.maxLoadFactor)
	}
	if cfg.initialBuckets == 0 {
		return nil, newKindError(KindConfigurationInvalid, "initial bucket count must be positive")
	}

	m := &Map[K, V]{
		neighborhood: uintptr(cfg.neighborhood),
		growthNum:    cfg.growthNum,
		growthDen:    cfg.growthDen,
		powerOfTwo:   isPow2u32(cfg.growthNum) && isPow2u32(cfg.growthDen),
		maxLoad:      cfg.maxLoadFactor,
		hash:         hash,
		eq:           cfg.equal,
		valueEqual:   cfg.valueEqual,
		allocator:    cfg.allocator,
	}
	if m.eq == nil {
		m.eq = func(a, b K) bool { return a == b }
	}
	if m.valueEqual == nil {
		m.valueEqual = func(a, b V) bool { return reflect.DeepEqual(a, b) }
	}

	initB := uintptr(cfg.initialBuckets)
	if m.powerOfTwo {
		initB = roundUpPow2(initB)
	}
	if err := m.allocateLocked(initB); err != nil {
		return nil, err
	}
	return m, nil
}

// MustNew is like New but panics on error, mirroring regexp.MustCompile
// for callers who know their configuration is valid at compile time.
func MustNew[K comparable, V any](hash HashFunc[K], opts ...Option[K, V]) *Map[K, V] {
	m, err := New[K, V](hash, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// NewFromSeq builds a Map from a sequence of key-value pairs, the
// Go-native counterpart to the original container's range constructor.
func NewFromSeq[K comparable, V any](hash HashFunc[K], seq iter.Seq2[K, V], opts ...Option[K, V]) (*Map[K, V], error) {
	m, err := New[K, V](hash, opts...)
	if err != nil {
		return nil, err
	}
	for k, v := range seq {
		if _, err := m.TryEmplace(k, v); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewFromMap builds a Map by copying every entry of src.
func NewFromMap[K comparable, V any](hash HashFunc[K], src map[K]V, opts ...Option[K, V]) (*Map[K, V], error) {
	return NewFromSeq[K, V](hash, func(yield func(K, V) bool) {
		for k, v := range src {
			if !yield(k, v) {
				return
			}
		}
	}, opts...)
}

func (m *Map[K, V]) allocateLocked(b uintptr) error {
	bucketsLen := b + m.neighborhood - 1
	buckets, err := m.allocator.AllocBuckets(int(bucketsLen))
	if err != nil {
		return wrapKindError(KindAllocationFailed, err, "allocate %d buckets", bucketsLen)
	}
	m.buckets = buckets
	m.b = b
	m.threshold = uintptr(float64(b) * m.maxLoad)
	return nil
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int { return m.n }

// Empty reports whether the map has no entries.
func (m *Map[K, V]) Empty() bool { return m.n == 0 }

// BucketCount returns the number of logical home buckets, B.
func (m *Map[K, V]) BucketCount() int { return int(m.b) }

// LoadFactor returns n/B.
func (m *Map[K, V]) LoadFactor() float64 {
	if m.b == 0 {
		return 0
	}
	return float64(m.n) / float64(m.b)
}

// MaxLoadFactor returns the configured maximum load factor.
func (m *Map[K, V]) MaxLoadFactor() float64 { return m.maxLoad }

// HashFunc returns the hash function the map was constructed with.
func (m *Map[K, V]) HashFunc() HashFunc[K] { return m.hash }

// EqualFunc returns the key-equality predicate in use.
func (m *Map[K, V]) EqualFunc() EqualFunc[K] { return m.eq }

// Allocator returns the Allocator the map was constructed with.
func (m *Map[K, V]) Allocator() Allocator[K, V] { return m.allocator }

// MaxSize reports the maximum number of entries the map could
// theoretically hold. It delegates to the configured Allocator if it
// implements MaxSizer, otherwise returns math.MaxInt.
func (m *Map[K, V]) MaxSize() int {
	if s, ok := m.allocator.(MaxSizer); ok {
		return s.MaxSize()
	}
	return math.MaxInt
}

// Find reports whether key is present, returning its value.
func (m *Map[K, V]) Find(key K) (V, bool) {
	pos, found := m.findLocked(key)
	if !found {
		var zero V
		return zero, false
	}
	return m.valueAt(pos), true
}

// Count returns 1 if key is present, 0 otherwise (mirrors the
// std::unordered_map::count convention).
func (m *Map[K, V]) Count(key K) int {
	if _, found := m.findLocked(key); found {
		return 1
	}
	return 0
}

// At returns the value for key, or a KindKeyNotFound error.
func (m *Map[K, V]) At(key K) (V, error) {
	pos, found := m.findLocked(key)
	if !found {
		var zero V
		return zero, errKeyNotFound(key)
	}
	return m.valueAt(pos), nil
}

// GetOrInsertZero returns the value for key, inserting the zero value of
// V first if key is absent. It is the operator[] equivalent.
func (m *Map[K, V]) GetOrInsertZero(key K) (V, error) {
	var zero V
	pos, _, err := m.insertLocked(key, zero)
	if err != nil {
		return zero, err
	}
	return m.valueAt(pos), nil
}

// Put inserts key/val if key is absent, or overwrites the existing value
// if present. It reports whether a new entry was inserted.
func (m *Map[K, V]) Put(key K, val V) (bool, error) {
	pos, inserted, err := m.insertLocked(key, val)
	if err != nil {
		return false, err
	}
	if !inserted {
		m.setValueAt(pos, val)
	}
	return inserted, nil
}

// TryEmplace inserts val for key only if key is absent, leaving any
// existing entry untouched. It reports whether the insertion happened.
func (m *Map[K, V]) TryEmplace(key K, val V) (bool, error) {
	_, inserted, err := m.insertLocked(key, val)
	return inserted, err
}

func (m *Map[K, V]) valueAt(pos position[K, V]) V {
	if pos.inBucket {
		return m.buckets[pos.bucketIdx].val
	}
	return pos.node.val
}

func (m *Map[K, V]) setValueAt(pos position[K, V], val V) {
	if pos.inBucket {
		m.buckets[pos.bucketIdx].val = val
		return
	}
	pos.node.val = val
}

// Delete removes key, reporting how many entries were removed (0 or 1).
func (m *Map[K, V]) Delete(key K) int {
	pos, found := m.findLocked(key)
	if !found {
		return 0
	}
	m.eraseLocked(pos)
	return 1
}

// eraseLocked implements spec.md 4.6's two cases: clearing a bucket's
// occupancy and its home's neighborhood bit, or unlinking an overflow
// node and clearing the home's overflow flag if no sibling remains.
func (m *Map[K, V]) eraseLocked(pos position[K, V]) {
	if pos.inBucket {
		m.buckets[pos.bucketIdx].destroy()
		m.buckets[pos.home].setNeighborBit(pos.bucketIdx-pos.home, false)
		m.n--
		m.checkInvariants()
		return
	}
	m.overflow.remove(pos.node)
	if !m.overflow.hasHome(pos.home) {
		m.buckets[pos.home].setOverflow(false)
	}
	m.n--
	m.checkInvariants()
}

// Clear removes every entry, keeping the current capacity.
func (m *Map[K, V]) Clear() {
	for i := range m.buckets {
		m.buckets[i] = Bucket[K, V]{}
	}
	m.overflow.clear()
	m.n = 0
}

// Reserve ensures the map can hold at least n entries without a forced
// rehash, growing the bucket array if needed.
func (m *Map[K, V]) Reserve(n int) error {
	for uintptr(n) > m.threshold {
		if err := m.growLocked(); err != nil {
			return err
		}
	}
	return nil
}

// Rehash forces the logical bucket count to at least n, growing (never
// shrinking) and redistributing every entry.
func (m *Map[K, V]) Rehash(n int) error {
	target := uintptr(n)
	if m.powerOfTwo {
		target = roundUpPow2(target)
	}
	if target <= m.b {
		return nil
	}
	return m.growToLocked(target)
}

// growLocked grows to the next capacity per the configured growth ratio.
func (m *Map[K, V]) growLocked() error {
	next := nextGrowthCapacity(m.b, m.growthNum, m.growthDen, m.powerOfTwo)
	return m.growToLocked(next)
}

// growToLocked rebuilds the table at capacity newB, re-inserting every
// live entry. It allocates the new bucket array before touching the old
// one, and only swaps them in after every entry has been moved
// successfully, giving insertion, Reserve and Rehash the strong exception-safety
// guarantee spec.md 5 describes: on an Allocator failure, the receiver
// is left exactly as it was (spec.md 4.7).
func (m *Map[K, V]) growToLocked(newB uintptr) error {
	old := m.buckets
	oldOverflow := m.overflow
	oldN := m.n

	bucketsLen := newB + m.neighborhood - 1
	newBuckets, err := m.allocator.AllocBuckets(int(bucketsLen))
	if err != nil {
		return wrapKindError(KindAllocationFailed, err, "allocate %d buckets for rehash", bucketsLen)
	}

	next := &Map[K, V]{
		buckets:      newBuckets,
		b:            newB,
		threshold:    uintptr(float64(newB) * m.maxLoad),
		neighborhood: m.neighborhood,
		growthNum:    m.growthNum,
		growthDen:    m.growthDen,
		powerOfTwo:   m.powerOfTwo,
		maxLoad:      m.maxLoad,
		hash:         m.hash,
		eq:           m.eq,
		valueEqual:   m.valueEqual,
		allocator:    m.allocator,
	}

	for i := range old {
		bk := &old[i]
		if bk.isEmpty() {
			continue
		}
		if _, _, err := next.insertLocked(bk.key, bk.val); err != nil {
			m.allocator.FreeBuckets(newBuckets)
			return wrapKindError(KindMoveConstructFailed, err, "rehash entry")
		}
	}
	var overflowErr error
	oldOverflow.forEach(func(n *overflowNode[K, V]) bool {
		if _, _, err := next.insertLocked(n.key, n.val); err != nil {
			overflowErr = wrapKindError(KindMoveConstructFailed, err, "rehash overflow entry")
			return false
		}
		return true
	})
	if overflowErr != nil {
		m.allocator.FreeBuckets(newBuckets)
		return overflowErr
	}
	if next.n != oldN {
		m.allocator.FreeBuckets(newBuckets)
		return newKindError(KindMoveConstructFailed, "rehash dropped entries: had %d, moved %d", oldN, next.n)
	}

	m.allocator.FreeBuckets(old)
	*m = *next
	m.checkInvariants()
	return nil
}

// Equal reports whether m and other contain the same set of keys, each
// mapped to equal values under the configured ValueEqualFunc.
func (m *Map[K, V]) Equal(other *Map[K, V]) bool {
	if m.n != other.n {
		return false
	}
	eq := true
	m.All()(func(k K, v V) bool {
		ov, found := other.Find(k)
		if !found || !m.valueEqual(v, ov) {
			eq = false
			return false
		}
		return true
	})
	return eq
}

// All returns an iterator over every key-value pair, suitable for
// range-over-func (for k, v := range m.All() { ... }).
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i := range m.buckets {
			bk := &m.buckets[i]
			if bk.isEmpty() {
				continue
			}
			if !yield(bk.key, bk.val) {
				return
			}
		}
		m.overflow.forEach(func(n *overflowNode[K, V]) bool {
			return yield(n.key, n.val)
		})
	}
}

// checkInvariants walks the table checking two of the properties spec.md 8
// enumerates: every set neighborhood bit points at an occupied bucket
// (one direction of P1), and n equals the live bucket entries plus the
// overflow length (P4). Home matching, overflow flags, duplicate keys,
// the load bound and P6 are not checked. It is a no-op unless debug is
// set to true, exactly like the teacher's own invariants/checkInvariants gate.
func (m *Map[K, V]) checkInvariants() {
	if !debug {
		return
	}
	live := 0
	for i := range m.buckets {
		bk := &m.buckets[i]
		if !bk.isEmpty() {
			live++
		}
	}
	for i := uintptr(0); i < m.b; i++ {
		home := &m.buckets[i]
		nb := home.neighborhood()
		for nb != 0 {
			off := uintptr(bits.TrailingZeros64(nb))
			idx := i + off
			if idx >= uintptr(len(m.buckets)) || m.buckets[idx].isEmpty() {
				panic(errors.Newf("hopscotch: neighborhood bit set for empty/out-of-range bucket at home %d offset %d", i, off))
			}
			nb &^= uint64(1) << off
		}
	}
	live += m.overflow.len()
	if live != m.n {
		panic(errors.Newf("hopscotch: n=%d but counted %d live entries", m.n, live))
	}
}
