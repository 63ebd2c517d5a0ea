package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	t.Parallel()

	from, limit := Calculate(0, 0)
	assert.Equal(t, 0, from)
	assert.Equal(t, DefaultPageSize, limit)

	from, limit = Calculate(3, 10)
	assert.Equal(t, 20, from)
	assert.Equal(t, 10, limit)

	_, limit = Calculate(1, 1000)
	assert.Equal(t, DefaultPageSize, limit)
}

func TestPaginate(t *testing.T) {
	t.Parallel()

	items := []int{1, 2, 3, 4, 5, 6, 7}

	got, p := Paginate(items, 1, 3)
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, Page{Number: 1, Size: 3, Total: 7, TotalPages: 3, HasPrev: false, HasNext: true}, p)

	got, p = Paginate(items, 3, 3)
	assert.Equal(t, []int{7}, got)
	assert.True(t, p.HasPrev)
	assert.False(t, p.HasNext)

	got, p = Paginate(items, 9, 3)
	assert.Equal(t, []int{7}, got)
	assert.Equal(t, 3, p.Number)

	got, p = Paginate([]int{}, 2, 3)
	assert.Empty(t, got)
	assert.Equal(t, 1, p.Number)
	assert.Equal(t, 1, p.TotalPages)
}

func TestParseID(t *testing.T) {
	t.Parallel()

	id, ok := ParseID("42")
	assert.True(t, ok)
	assert.EqualValues(t, 42, id)

	for _, bad := range []string{"", "0", "-3", "x"} {
		_, ok := ParseID(bad)
		assert.False(t, ok, bad)
	}
}
