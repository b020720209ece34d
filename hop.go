package hopscotch

import "math/bits"

// maxLinearProbe bounds how far Insert scans forward for an empty bucket
// before giving up and falling back to the overflow/rehash decision.
// spec.md 4.4 step 3 fixes this at 4096; original_source/src/hopscotch_map.h
// confirms the same constant under the name MAX_LINEAR_PROBE_SEARCH_EMPTY_BUCKET.
const maxLinearProbe = 4096

// home returns the logical bucket index for a raw hash value, using a
// bitmask when the growth ratio keeps B a power of two and real modulus
// otherwise (spec.md 4.2).
func (m *Map[K, V]) home(h uint64) uintptr {
	if m.powerOfTwo {
		return uintptr(h) & (m.b - 1)
	}
	return uintptr(h % uint64(m.b))
}

func isPow2u32(v uint32) bool { return v != 0 && v&(v-1) == 0 }

func roundUpPow2(v uintptr) uintptr {
	if v <= 1 {
		return 1
	}
	p := uintptr(1)
	for p < v {
		p <<= 1
	}
	return p
}

// nextGrowthCapacity computes ceil(b*num/den), rounded up to the next
// power of two when the ratio keeps the table in bitmask mode (spec.md 4.7).
func nextGrowthCapacity(b uintptr, num, den uint32, pow2 bool) uintptr {
	raw := (b*uintptr(num) + uintptr(den) - 1) / uintptr(den)
	if raw <= b {
		raw = b + 1
	}
	if pow2 {
		raw = roundUpPow2(raw)
	}
	return raw
}

// findLocked implements spec.md 4.3: probe the home bucket's neighborhood
// bitmap LSB to MSB, then fall back to the overflow list if the overflow
// flag is set.
func (m *Map[K, V]) findLocked(key K) (pos position[K, V], found bool) {
	h := m.hash(key)
	i := m.home(h)
	home := &m.buckets[i]

	nb := home.neighborhood()
	for nb != 0 {
		b := uintptr(bits.TrailingZeros64(nb))
		idx := i + b
		if m.eq(m.buckets[idx].key, key) {
			return position[K, V]{inBucket: true, bucketIdx: idx, home: i}, true
		}
		nb &^= uint64(1) << b
	}

	if !home.hasOverflow() {
		return position[K, V]{}, false
	}
	if n := m.overflow.find(i, key, m.eq); n != nil {
		return position[K, V]{inBucket: false, home: i, node: n}, true
	}
	return position[K, V]{}, false
}

// insertLocked implements the six-step algorithm of spec.md 4.4.
func (m *Map[K, V]) insertLocked(key K, val V) (position[K, V], bool, error) {
	if pos, found := m.findLocked(key); found {
		return pos, false, nil
	}

	if uintptr(m.n+1) > m.threshold {
		if err := m.growLocked(); err != nil {
			return position[K, V]{}, false, err
		}
	}

	for {
		h := m.hash(key)
		i := m.home(h)

		e, foundEmpty := m.probeEmpty(i)
		if foundEmpty {
			for e-i >= m.neighborhood {
				newE, ok := m.hopCloser(e)
				if !ok {
					break
				}
				e = newE
			}
		}

		if foundEmpty && e-i < m.neighborhood {
			m.buckets[e].construct(key, val)
			m.buckets[i].setNeighborBit(e-i, true)
			m.n++
			m.checkInvariants()
			return position[K, V]{inBucket: true, bucketIdx: e, home: i}, true, nil
		}

		// Hop failed (or no empty bucket within maxLinearProbe): decide
		// between overflow and rehash (spec.md 4.4 step 6).
		if m.wouldRedistribute(i) {
			if err := m.growLocked(); err != nil {
				return position[K, V]{}, false, err
			}
			continue
		}

		node := m.overflow.pushBack(i, key, val)
		m.buckets[i].setOverflow(true)
		m.n++
		m.checkInvariants()
		return position[K, V]{inBucket: false, home: i, node: node}, true, nil
	}
}

// probeEmpty linear-probes forward from i for at most maxLinearProbe
// buckets looking for an empty one, never reading past the bucket array's
// tail padding.
func (m *Map[K, V]) probeEmpty(i uintptr) (uintptr, bool) {
	limit := i + maxLinearProbe
	if arrLen := uintptr(len(m.buckets)); limit > arrLen {
		limit = arrLen
	}
	for e := i; e < limit; e++ {
		if m.buckets[e].isEmpty() {
			return e, true
		}
	}
	return 0, false
}

// hopCloser implements spec.md 4.5: move the empty bucket at e closer to
// its eventual home by displacing an entry whose neighborhood still
// covers e. Candidates are tried in ascending home order, then ascending
// neighbor-offset order, which is what makes the displacement
// deterministic.
func (m *Map[K, V]) hopCloser(e uintptr) (uintptr, bool) {
	start := uintptr(0)
	if e >= m.neighborhood-1 {
		start = e - (m.neighborhood - 1)
	}

	for c := start; c < e; c++ {
		nb := m.buckets[c].neighborhood()
		for b := uintptr(0); nb != 0 && c+b < e; b++ {
			if nb&1 == 1 {
				m.buckets[c+b].moveTo(&m.buckets[e])
				m.buckets[c].setNeighborBit(b, false)
				m.buckets[c].setNeighborBit(e-c, true)
				return c + b, true
			}
			nb >>= 1
		}
	}
	return e, false
}

// wouldRedistribute answers spec.md 4.4 step 6's question: would growing
// to the next capacity move any live entry currently occupying a physical
// slot in [i, i+N) to a different home? Grounded on
// original_source/src/hopscotch_map.h's will_neighborhood_change_on_rehash,
// which scans occupied *positions* in the window, not just entries whose
// home is i.
func (m *Map[K, V]) wouldRedistribute(i uintptr) bool {
	newB := nextGrowthCapacity(m.b, m.growthNum, m.growthDen, m.powerOfTwo)
	end := i + m.neighborhood
	if arrLen := uintptr(len(m.buckets)); end > arrLen {
		end = arrLen
	}
	for idx := i; idx < end; idx++ {
		bk := &m.buckets[idx]
		if bk.isEmpty() {
			continue
		}
		h := m.hash(bk.key)
		oldHome := m.home(h)
		var newHome uintptr
		if m.powerOfTwo {
			newHome = uintptr(h) & (newB - 1)
		} else {
			newHome = uintptr(h % uint64(newB))
		}
		if oldHome != newHome {
			return true
		}
	}
	return false
}
