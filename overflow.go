package hopscotch

// overflowNode is one element of the overflow list (spec.md 3, "Overflow
// list"). Nodes have stable addresses across insertion and erasure of
// other nodes, which is what lets an Iterator hold a *overflowNode across
// unrelated mutations.
type overflowNode[K comparable, V any] struct {
	prev, next *overflowNode[K, V]
	home       uintptr
	key        K
	val        V
}

// overflowList is a doubly-linked list of key-value pairs that could not
// be placed within any bucket's neighborhood, preserving insertion order
// (spec.md 3).
type overflowList[K comparable, V any] struct {
	head, tail *overflowNode[K, V]
	length     int
}

func (l *overflowList[K, V]) len() int { return l.length }

// pushBack appends a new node for (key, val) whose home bucket is home,
// returning the node so the caller can record its position.
func (l *overflowList[K, V]) pushBack(home uintptr, key K, val V) *overflowNode[K, V] {
	n := &overflowNode[K, V]{home: home, key: key, val: val}
	if l.tail == nil {
		l.head, l.tail = n, n
	} else {
		n.prev = l.tail
		l.tail.next = n
		l.tail = n
	}
	l.length++
	return n
}

// remove unlinks n from the list. n must currently be a member of l.
func (l *overflowList[K, V]) remove(n *overflowNode[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
	l.length--
}

// find scans the list for the first node with the given home bucket whose
// key equals key under eq (spec.md 4.3: overflow lookup is a linear scan).
func (l *overflowList[K, V]) find(home uintptr, key K, eq EqualFunc[K]) *overflowNode[K, V] {
	for n := l.head; n != nil; n = n.next {
		if n.home == home && eq(n.key, key) {
			return n
		}
	}
	return nil
}

// hasHome reports whether any remaining node belongs to home, used to
// recompute a bucket's overflow flag after an erase (spec.md 4.6).
func (l *overflowList[K, V]) hasHome(home uintptr) bool {
	for n := l.head; n != nil; n = n.next {
		if n.home == home {
			return true
		}
	}
	return false
}

// clear empties the list in O(1); node addresses are not reused so
// existing iterators are safe to become invalid, per the invalidation
// contract in spec.md 4.8.
func (l *overflowList[K, V]) clear() {
	l.head, l.tail = nil, nil
	l.length = 0
}

// forEach visits every node in insertion order.
func (l *overflowList[K, V]) forEach(fn func(n *overflowNode[K, V]) bool) {
	for n := l.head; n != nil; {
		next := n.next
		if !fn(n) {
			return
		}
		n = next
	}
}
