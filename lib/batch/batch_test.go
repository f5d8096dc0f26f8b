package batch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestByCount(t *testing.T) {
	{
		// Invalid size
		assert.ErrorContains(t, ByCount([]int{1}, 0, func(int, []int) error { return nil }), "chunk size must be positive, got 0")
	}
	{
		// Empty input never yields
		calls := 0
		assert.NoError(t, ByCount([]int{}, 2, func(int, []int) error {
			calls++
			return nil
		}))
		assert.Equal(t, 0, calls)
	}
	{
		// Uneven split
		var indices []int
		var chunks [][]int
		assert.NoError(t, ByCount([]int{1, 2, 3, 4, 5}, 2, func(index int, chunk []int) error {
			indices = append(indices, index)
			chunks = append(chunks, chunk)
			return nil
		}))
		assert.Equal(t, []int{0, 1, 2}, indices)
		assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunks)
	}
	{
		// Errors stop the iteration
		calls := 0
		err := ByCount([]int{1, 2, 3, 4}, 1, func(index int, _ []int) error {
			calls++
			if index == 1 {
				return fmt.Errorf("failed on %d", index)
			}
			return nil
		})
		assert.ErrorContains(t, err, "failed on 1")
		assert.Equal(t, 2, calls)
	}
}

func TestCount(t *testing.T) {
	assert.Equal(t, 0, Count(0, 10))
	assert.Equal(t, 0, Count(10, 0))
	assert.Equal(t, 1, Count(10, 10))
	assert.Equal(t, 2, Count(11, 10))
	assert.Equal(t, 3, Count(10_001, 5000))
}
