package hopscotch

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func fnvHash(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

func identityHash(k int) uint64 { return uint64(k) }

// toBuiltinMap drains m into a plain Go map for comparison against a
// reference implementation, the same pattern the teacher's test suite
// uses to check a hash table against map[K]V.
func toBuiltinMap[K comparable, V any](m *Map[K, V]) map[K]V {
	out := make(map[K]V, m.Len())
	for k, v := range m.All() {
		out[k] = v
	}
	return out
}

func randElement(r *rand.Rand, keys []int) int {
	return keys[r.Intn(len(keys))]
}

func TestBasic(t *testing.T) {
	t.Run("normal", func(t *testing.T) {
		m := MustNew[string, int](fnvHash)
		inserted, err := m.Put("alpha", 1)
		require.NoError(t, err)
		require.True(t, inserted)

		inserted, err = m.Put("beta", 2)
		require.NoError(t, err)
		require.True(t, inserted)

		inserted, err = m.Put("alpha", 100)
		require.NoError(t, err)
		require.False(t, inserted)

		v, ok := m.Find("alpha")
		require.True(t, ok)
		require.Equal(t, 100, v)

		v, err = m.At("beta")
		require.NoError(t, err)
		require.Equal(t, 2, v)

		_, err = m.At("gamma")
		require.Error(t, err)
		require.True(t, IsKeyNotFound(err))

		var kerr *mapError
		require.True(t, errors.As(err, &kerr))

		require.Equal(t, 1, m.Count("alpha"))
		require.Equal(t, 0, m.Count("gamma"))

		require.Equal(t, 1, m.Delete("alpha"))
		require.Equal(t, 0, m.Delete("alpha"))
		require.Equal(t, 1, m.Len())
	})

	t.Run("degenerate", func(t *testing.T) {
		m := MustNew[string, int](fnvHash)
		_, err := m.At("missing")
		require.Error(t, err)
		require.Equal(t, 0, m.Delete("missing"))
		require.True(t, m.Empty())
		require.Equal(t, 0, m.Len())
	})

	t.Run("getOrInsertZero", func(t *testing.T) {
		m := MustNew[string, int](fnvHash)
		v, err := m.GetOrInsertZero("x")
		require.NoError(t, err)
		require.Equal(t, 0, v)

		_, _ = m.Put("x", 9)
		v, err = m.GetOrInsertZero("x")
		require.NoError(t, err)
		require.Equal(t, 9, v)
	})

	t.Run("tryEmplace", func(t *testing.T) {
		m := MustNew[string, int](fnvHash)
		inserted, err := m.TryEmplace("x", 1)
		require.NoError(t, err)
		require.True(t, inserted)

		inserted, err = m.TryEmplace("x", 2)
		require.NoError(t, err)
		require.False(t, inserted)

		v, _ := m.Find("x")
		require.Equal(t, 1, v)
	})
}

func TestRandom(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	m := MustNew[int, int](identityHash)
	ref := make(map[int]int)

	const universe = 500
	for i := 0; i < 10000; i++ {
		k := r.Intn(universe)
		switch r.Intn(10) {
		case 0, 1, 2, 3, 4, 5:
			v := r.Int()
			_, err := m.Put(k, v)
			require.NoError(t, err)
			ref[k] = v
		case 6, 7:
			m.Delete(k)
			delete(ref, k)
		default:
			wantV, wantOK := ref[k]
			gotV, gotOK := m.Find(k)
			require.Equal(t, wantOK, gotOK)
			if wantOK {
				require.Equal(t, wantV, gotV)
			}
		}
	}

	require.Equal(t, len(ref), m.Len())
	require.Equal(t, ref, toBuiltinMap(m))
}

func TestClear(t *testing.T) {
	m := MustNew[int, int](identityHash)
	for i := 0; i < 200; i++ {
		_, err := m.Put(i, i)
		require.NoError(t, err)
	}
	require.Equal(t, 200, m.Len())

	m.Clear()
	require.Equal(t, 0, m.Len())
	require.True(t, m.Empty())
	for i := 0; i < 200; i++ {
		_, ok := m.Find(i)
		require.False(t, ok)
	}

	_, err := m.Put(1, 1)
	require.NoError(t, err)
	require.Equal(t, 1, m.Len())
}

// countingAllocator allocates like the default allocator and fails once
// budget allocations have been made, exercising the AllocationFailed path the
// same way the teacher's TestAllocator exercises a counting allocator.
type countingAllocator[K comparable, V any] struct {
	budget int
	calls  int
}

func (a *countingAllocator[K, V]) AllocBuckets(n int) ([]Bucket[K, V], error) {
	a.calls++
	if a.calls > a.budget {
		return nil, fmt.Errorf("allocator budget exhausted on call %d", a.calls)
	}
	return make([]Bucket[K, V], n), nil
}

func (a *countingAllocator[K, V]) FreeBuckets(v []Bucket[K, V]) {}

func TestAllocator(t *testing.T) {
	alloc := &countingAllocator[int, int]{budget: 1}
	m, err := New[int, int](identityHash, WithAllocator[int, int](alloc))
	require.NoError(t, err)
	require.Equal(t, 1, alloc.calls)

	for i := 0; i < 100; i++ {
		if _, err := m.Put(i, i); err != nil {
			require.True(t, IsKeyNotFound(err) == false)
			kind, ok := KindOf(err)
			require.True(t, ok)
			require.Equal(t, KindAllocationFailed, kind)
			return
		}
	}
	t.Fatal("expected allocator to eventually fail once its budget was exhausted")
}

func TestInitialCapacity(t *testing.T) {
	m := MustNew[int, int](identityHash)
	require.Equal(t, defaultInitialBuckets, m.BucketCount())

	m2 := MustNew[int, int](identityHash, WithGrowthRatio[int, int](3, 2))
	require.Equal(t, defaultInitialBuckets, m2.BucketCount())
	require.False(t, m2.powerOfTwo)
}

func TestConfigurationInvalid(t *testing.T) {
	_, err := New[int, int](nil)
	require.Error(t, err)
	require.True(t, func() bool { k, ok := KindOf(err); return ok && k == KindConfigurationInvalid }())

	_, err = New[int, int](identityHash, WithNeighborhoodSize[int, int](0))
	require.Error(t, err)

	_, err = New[int, int](identityHash, WithNeighborhoodSize[int, int](200))
	require.Error(t, err)

	_, err = New[int, int](identityHash, WithGrowthRatio[int, int](1, 1))
	require.Error(t, err)

	_, err = New[int, int](identityHash, WithMaxLoadFactor[int, int](0))
	require.Error(t, err)

	require.Panics(t, func() {
		MustNew[int, int](nil)
	})
}

func caseInsensitiveEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

func caseInsensitiveHash(s string) uint64 {
	return fnvHash(strings.ToLower(s))
}

func TestWithEqualCustomPredicate(t *testing.T) {
	m := MustNew[string, int](caseInsensitiveHash, WithEqual[string, int](caseInsensitiveEqual))

	inserted, err := m.Put("Hello", 1)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = m.Put("HELLO", 2)
	require.NoError(t, err)
	require.False(t, inserted)

	v, ok := m.Find("hello")
	require.True(t, ok)
	require.Equal(t, 2, v)
	require.Equal(t, 1, m.Len())
}

func TestAllocatorObserver(t *testing.T) {
	alloc := &countingAllocator[int, int]{budget: 100}
	m, err := New[int, int](identityHash, WithAllocator[int, int](alloc))
	require.NoError(t, err)
	require.Same(t, alloc, m.Allocator())
}

func TestEqual(t *testing.T) {
	a := MustNew[int, int](identityHash)
	b := MustNew[int, int](identityHash)
	require.True(t, a.Equal(b))

	_, _ = a.Put(1, 10)
	require.False(t, a.Equal(b))

	_, _ = b.Put(1, 10)
	require.True(t, a.Equal(b))

	_, _ = b.Put(2, 20)
	require.False(t, a.Equal(b))
}

func TestNewFromMap(t *testing.T) {
	src := map[string]int{"a": 1, "b": 2, "c": 3}
	m, err := NewFromMap[string, int](fnvHash, src)
	require.NoError(t, err)
	require.Equal(t, len(src), m.Len())
	for k, v := range src {
		got, ok := m.Find(k)
		require.True(t, ok)
		require.Equal(t, v, got)
	}
}

func TestIterationAndErase(t *testing.T) {
	m := MustNew[int, int](identityHash)
	want := map[int]int{}
	for i := 0; i < 50; i++ {
		_, err := m.Put(i, i*i)
		require.NoError(t, err)
		want[i] = i * i
	}
	require.Equal(t, want, toBuiltinMap(m))

	it := m.Begin()
	var removed int
	for !it.Done() {
		if it.Key()%2 == 0 {
			it = m.Erase(it)
			removed++
			continue
		}
		it.Next()
	}
	require.Equal(t, 25, removed)
	require.Equal(t, 25, m.Len())
	for k := range want {
		_, ok := m.Find(k)
		require.Equal(t, k%2 != 0, ok)
	}
}

func TestRehashGrowsAndPreservesEntries(t *testing.T) {
	m := MustNew[int, int](identityHash)
	before := m.BucketCount()
	require.NoError(t, m.Rehash(before*8))
	require.GreaterOrEqual(t, m.BucketCount(), before*8)
	require.Equal(t, 0, m.Len())

	for i := 0; i < 10; i++ {
		_, err := m.Put(i, i)
		require.NoError(t, err)
	}
	require.NoError(t, m.Reserve(1000))
	require.Equal(t, 10, m.Len())
	for i := 0; i < 10; i++ {
		v, ok := m.Find(i)
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}
