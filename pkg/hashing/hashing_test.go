package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumIsDeterministic(t *testing.T) {
	a := Sum([]byte("hello"))
	b := Sum([]byte("hello"))
	c := Sum([]byte("world"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestSumKeyedDiffersFromUnkeyed(t *testing.T) {
	data := []byte("payload")
	key := Sum([]byte("key"))

	keyed := SumKeyed(key, data)
	assert.NotEqual(t, Sum(data), keyed)
	assert.Equal(t, keyed, SumKeyed(key, data))
	assert.NotEqual(t, keyed, SumKeyed(Sum([]byte("other")), data))
}

func TestSumPairMatchesConcatenation(t *testing.T) {
	left := Sum([]byte("left"))
	right := Sum([]byte("right"))

	var buf [2 * Size]byte
	copy(buf[:Size], left[:])
	copy(buf[Size:], right[:])

	assert.Equal(t, Sum(buf[:]), SumPair(left, right))
	assert.NotEqual(t, SumPair(left, right), SumPair(right, left))
}

func TestHasherMatchesSum(t *testing.T) {
	data := []byte("split across multiple writes")

	h := NewHasher()
	_, err := h.Write(data[:9])
	require.NoError(t, err)
	_, err = h.Write(data[9:])
	require.NoError(t, err)

	assert.Equal(t, Sum(data), h.Sum())
}

func TestDigestStringAndCompare(t *testing.T) {
	d := Sum([]byte("x"))
	assert.Len(t, d.String(), 2*Size)

	var zero, one Digest
	one[Size-1] = 1
	assert.Equal(t, -1, zero.Compare(one))
	assert.Equal(t, 1, one.Compare(zero))
	assert.Equal(t, 0, zero.Compare(zero))
}
