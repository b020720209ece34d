package hopscotch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func intEq(a, b int) bool { return a == b }

func TestOverflowListPushFindRemove(t *testing.T) {
	var l overflowList[int, string]
	require.Equal(t, 0, l.len())

	n1 := l.pushBack(4, 1, "one")
	n2 := l.pushBack(4, 2, "two")
	n3 := l.pushBack(9, 3, "three")
	require.Equal(t, 3, l.len())

	require.Same(t, n2, l.find(4, 2, intEq))
	require.Nil(t, l.find(4, 5, intEq))
	require.Same(t, n3, l.find(9, 3, intEq))

	require.True(t, l.hasHome(4))
	require.True(t, l.hasHome(9))
	require.False(t, l.hasHome(1))

	l.remove(n1)
	require.Equal(t, 2, l.len())
	require.Nil(t, l.find(4, 1, intEq))
	require.True(t, l.hasHome(4))

	l.remove(n2)
	require.False(t, l.hasHome(4))
	require.Equal(t, 1, l.len())
}

func TestOverflowListOrderPreserved(t *testing.T) {
	var l overflowList[int, string]
	l.pushBack(0, 1, "a")
	l.pushBack(0, 2, "b")
	l.pushBack(0, 3, "c")

	var seen []int
	l.forEach(func(n *overflowNode[int, string]) bool {
		seen = append(seen, n.key)
		return true
	})
	require.Equal(t, []int{1, 2, 3}, seen)
}

func TestOverflowListClear(t *testing.T) {
	var l overflowList[int, string]
	l.pushBack(0, 1, "a")
	l.pushBack(0, 2, "b")
	l.clear()
	require.Equal(t, 0, l.len())
	require.Nil(t, l.find(0, 1, intEq))
}
