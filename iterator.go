package hopscotch

// Iterator walks every entry of a Map: first every occupied physical
// bucket in array order, then every overflow node in insertion order.
// This is the Go-native shape of the bucket_cursor/bucket_end/
// overflow_cursor triple the original container's iterator holds
// (original_source/src/hopscotch_map.h's hopscotch_iterator).
//
// An Iterator is invalidated by any insertion that triggers a rehash, by
// any insertion that displaces entries between buckets (hop-closer), and
// by erasing the entry it currently points to; erasing a different entry
// does not invalidate it (spec.md 4.8).
type Iterator[K comparable, V any] struct {
	m           *Map[K, V]
	bucketIdx   uintptr
	overflowCur *overflowNode[K, V]
}

// Begin returns an iterator positioned at the first entry, or a
// finished iterator if the map is empty.
func (m *Map[K, V]) Begin() Iterator[K, V] {
	it := Iterator[K, V]{m: m}
	it.skipEmptyBuckets()
	return it
}

// End returns a finished iterator, for comparison against the result of
// repeated Next calls.
func (m *Map[K, V]) End() Iterator[K, V] {
	return Iterator[K, V]{m: m, bucketIdx: uintptr(len(m.buckets))}
}

func (it *Iterator[K, V]) skipEmptyBuckets() {
	for it.bucketIdx < uintptr(len(it.m.buckets)) && it.m.buckets[it.bucketIdx].isEmpty() {
		it.bucketIdx++
	}
	if it.bucketIdx >= uintptr(len(it.m.buckets)) {
		it.overflowCur = it.m.overflow.head
	}
}

// Done reports whether the iterator has passed the last entry.
func (it *Iterator[K, V]) Done() bool {
	return it.bucketIdx >= uintptr(len(it.m.buckets)) && it.overflowCur == nil
}

// Next advances the iterator to the next entry. Calling Next on a
// finished iterator is a no-op.
func (it *Iterator[K, V]) Next() {
	if it.bucketIdx < uintptr(len(it.m.buckets)) {
		it.bucketIdx++
		it.skipEmptyBuckets()
		return
	}
	if it.overflowCur != nil {
		it.overflowCur = it.overflowCur.next
	}
}

// Key returns the key at the iterator's current position. It panics if
// the iterator is finished, matching the original container's
// dereference-past-end contract.
func (it *Iterator[K, V]) Key() K {
	if it.bucketIdx < uintptr(len(it.m.buckets)) {
		return it.m.buckets[it.bucketIdx].key
	}
	return it.overflowCur.key
}

// Value returns the value at the iterator's current position.
func (it *Iterator[K, V]) Value() V {
	if it.bucketIdx < uintptr(len(it.m.buckets)) {
		return it.m.buckets[it.bucketIdx].val
	}
	return it.overflowCur.val
}

// SetValue overwrites the value at the iterator's current position
// without otherwise disturbing the entry.
func (it *Iterator[K, V]) SetValue(val V) {
	if it.bucketIdx < uintptr(len(it.m.buckets)) {
		it.m.buckets[it.bucketIdx].val = val
		return
	}
	it.overflowCur.val = val
}

func (it *Iterator[K, V]) position() position[K, V] {
	if it.bucketIdx < uintptr(len(it.m.buckets)) {
		bk := &it.m.buckets[it.bucketIdx]
		home := it.m.home(it.m.hash(bk.key))
		return position[K, V]{inBucket: true, bucketIdx: it.bucketIdx, home: home}
	}
	return position[K, V]{home: it.overflowCur.home, node: it.overflowCur}
}

// Erase removes the entry it points to and returns an iterator to the
// next entry, the same pattern std::unordered_map::erase(iterator) uses
// to let callers erase while iterating. Erasing an entry never moves any
// other entry (bucket slots are cleared in place and overflow nodes keep
// stable addresses), so the successor iterator can be computed before
// the mutation and handed back directly.
func (m *Map[K, V]) Erase(it Iterator[K, V]) Iterator[K, V] {
	next := it
	next.Next()
	pos := it.position()
	m.eraseLocked(pos)
	return next
}

// EraseRange removes every entry in [begin, end), returning the number
// removed.
func (m *Map[K, V]) EraseRange(begin, end Iterator[K, V]) int {
	count := 0
	it := begin
	for it.bucketIdx != end.bucketIdx || it.overflowCur != end.overflowCur {
		if it.Done() {
			break
		}
		it = m.Erase(it)
		count++
	}
	return count
}
