package rope

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAndString(t *testing.T) {
	r := New("hello world")
	require.Equal(t, "hello world", r.String())
	require.Equal(t, 11, r.Len())
}

func TestInsert(t *testing.T) {
	r := New("hello world")
	r2 := r.Insert(5, ",")
	require.Equal(t, "hello, world", r2.String())
	// original untouched
	require.Equal(t, "hello world", r.String())
}

func TestDelete(t *testing.T) {
	r := New("hello, world")
	r2 := r.Delete(5, 6)
	require.Equal(t, "hello world", r2.String())
}

func TestReplace(t *testing.T) {
	r := New("abcdef")
	r2 := r.Replace(2, 4, "XY")
	require.Equal(t, "abXYef", r2.String())
}

func TestSlice(t *testing.T) {
	r := New("abcdefghij")
	require.Equal(t, "cde", r.Slice(2, 5))
	require.Equal(t, "", r.Slice(5, 2))
	require.Equal(t, "ij", r.Slice(8, 100))
}

func TestCloneIsStructuralSharing(t *testing.T) {
	r := New("hello world")
	c := r.Clone()
	r2 := r.Insert(0, ">>")
	require.Equal(t, "hello world", c.String())
	require.Equal(t, ">>hello world", r2.String())
}

func TestBuildLeavesLongString(t *testing.T) {
	s := make([]byte, maxLeaf*5)
	for i := range s {
		s[i] = byte('a' + i%26)
	}
	r := New(string(s))
	require.Equal(t, string(s), r.String())
	require.Equal(t, len(s), r.Len())
	r2 := r.Insert(len(s)/2, "MARK")
	require.Contains(t, r2.String(), "MARK")
}

func TestEmptyRope(t *testing.T) {
	var r *Rope
	require.Equal(t, 0, r.Len())
	require.Equal(t, "", r.String())
	r2 := r.Insert(0, "x")
	require.Equal(t, "x", r2.String())
}
