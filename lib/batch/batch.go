package batch

import "fmt"

// ByCount splits [in] into chunks of at most [size] elements and passes each to [yield] along with its index.
func ByCount[T any](in []T, size int, yield func(index int, chunk []T) error) error {
	if size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", size)
	}

	for index, start := 0, 0; start < len(in); index, start = index+1, start+size {
		end := min(start+size, len(in))
		if err := yield(index, in[start:end]); err != nil {
			return err
		}
	}

	return nil
}

// Count returns how many chunks [ByCount] will yield.
func Count(total, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}
