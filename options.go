package hopscotch

// HashFunc computes a hash for a key. The hash function is entirely
// user-supplied (spec.md 3, 4.2): the container never mixes or re-hashes
// it, so a poor hash degrades gracefully into overflow-list use and
// rehashing rather than corrupting the table.
type HashFunc[K any] func(key K) uint64

// EqualFunc reports whether two keys are equivalent. Set it with
// WithEqual; if no Option sets one, keys are compared with Go's built-in
// == via the comparable constraint.
type EqualFunc[K any] func(a, b K) bool

// ValueEqualFunc reports whether two values are equivalent, used only by
// (*Map[K,V]).Equal. Defaults to reflect.DeepEqual, the same primitive
// testify's require.Equal is built on.
type ValueEqualFunc[V any] func(a, b V) bool

// Allocator controls how a Map obtains and releases the backing storage
// for its bucket array. The default allocator uses make() and never
// fails; a custom Allocator that can fail lets AllocationFailed surface
// through New, Reserve, and Rehash with the strong exception-safety
// guarantee spec.md 5 and 7 require: the old bucket array is left
// untouched until the new one is fully populated.
type Allocator[K comparable, V any] interface {
	// AllocBuckets returns a slice of length n, analogous to
	// make([]Bucket[K,V], n).
	AllocBuckets(n int) ([]Bucket[K, V], error)
	// FreeBuckets optionally releases memory backing a slice returned by
	// AllocBuckets. The default allocator lets the GC reclaim it.
	FreeBuckets(v []Bucket[K, V])
}

type defaultAllocator[K comparable, V any] struct{}

func (defaultAllocator[K, V]) AllocBuckets(n int) ([]Bucket[K, V], error) {
	return make([]Bucket[K, V], n), nil
}

func (defaultAllocator[K, V]) FreeBuckets(v []Bucket[K, V]) {}

// config accumulates the compile-time-in-spirit parameters spec.md 6
// describes (neighborhood size N, growth ratio, initial bucket count) as
// runtime state validated once by New/MustNew.
type config[K comparable, V any] struct {
	neighborhood   uint8
	growthNum      uint32
	growthDen      uint32
	maxLoadFactor  float64
	initialBuckets uint32
	allocator      Allocator[K, V]
	equal          EqualFunc[K]
	valueEqual     ValueEqualFunc[V]
}

func defaultConfig[K comparable, V any]() *config[K, V] {
	return &config[K, V]{
		neighborhood:   32,
		growthNum:      2,
		growthDen:      1,
		maxLoadFactor:  0.9,
		initialBuckets: defaultInitialBuckets,
		allocator:      defaultAllocator[K, V]{},
	}
}

// Option configures a Map at construction time. The set below plays the
// role spec.md 6 assigns to compile-time template parameters; see
// SPEC_FULL.md's "Go-native parameterization" section.
type Option[K comparable, V any] interface {
	apply(*config[K, V])
}

type optionFunc[K comparable, V any] func(*config[K, V])

func (f optionFunc[K, V]) apply(c *config[K, V]) { f(c) }

// WithNeighborhoodSize sets N, the neighborhood size (1..62). Larger N
// reduces overflow-list use but widens every bucket's probing cost.
func WithNeighborhoodSize[K comparable, V any](n uint8) Option[K, V] {
	return optionFunc[K, V](func(c *config[K, V]) { c.neighborhood = n })
}

// WithGrowthRatio sets the factor num/den by which the logical bucket
// count grows on rehash. When both num and den are powers of two, bucket
// selection uses a bitmask instead of a real modulus (spec.md 4.2, 9).
func WithGrowthRatio[K comparable, V any](num, den uint32) Option[K, V] {
	return optionFunc[K, V](func(c *config[K, V]) { c.growthNum, c.growthDen = num, den })
}

// WithMaxLoadFactor sets the maximum load factor (n/B), default 0.9. Must
// be in (0, 1].
func WithMaxLoadFactor[K comparable, V any](f float64) Option[K, V] {
	return optionFunc[K, V](func(c *config[K, V]) { c.maxLoadFactor = f })
}

// WithAllocator overrides the Allocator used for the bucket array.
func WithAllocator[K comparable, V any](a Allocator[K, V]) Option[K, V] {
	return optionFunc[K, V](func(c *config[K, V]) { c.allocator = a })
}

// WithEqual overrides the key-equality predicate eq(k1, k2) spec.md 3 and
// 6 require the container be parameterized by. Defaults to Go's built-in
// == via the comparable constraint when no Option sets one.
func WithEqual[K comparable, V any](eq EqualFunc[K]) Option[K, V] {
	return optionFunc[K, V](func(c *config[K, V]) { c.equal = eq })
}

// WithValueEqual overrides the predicate (*Map[K,V]).Equal uses to compare
// stored values; defaults to reflect.DeepEqual.
func WithValueEqual[K comparable, V any](eq ValueEqualFunc[V]) Option[K, V] {
	return optionFunc[K, V](func(c *config[K, V]) { c.valueEqual = eq })
}

// WithInitialBucketCount sets the logical bucket count a new Map starts
// with, instead of the default of 16. It plays the role spec.md 6
// assigns to an initial-bucket-count constructor argument.
func WithInitialBucketCount[K comparable, V any](n uint32) Option[K, V] {
	return optionFunc[K, V](func(c *config[K, V]) { c.initialBuckets = n })
}

// MaxSizer is an optional extension an Allocator may implement to report
// an upper bound on the number of buckets it can allocate. (*Map).MaxSize
// falls back to math.MaxInt when the configured Allocator does not
// implement it, which is the case for the default allocator: a Go slice
// has no meaningful static upper bound short of address space.
type MaxSizer interface {
	MaxSize() int
}
