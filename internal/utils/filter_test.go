package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterKeepsMatchingElements(t *testing.T) {
	in := []int{1, 2, 3, 4, 5}
	out := Filter(in, func(n int) bool { return n%2 == 0 })
	assert.Equal(t, []int{2, 4}, out)
}

func TestFilterReturnsNilForNoMatches(t *testing.T) {
	in := []string{"a", "b"}
	out := Filter(in, func(s string) bool { return false })
	assert.Nil(t, out)
}

func TestFilterOnEmptyInput(t *testing.T) {
	var in []int
	out := Filter(in, func(n int) bool { return true })
	assert.Empty(t, out)
}
