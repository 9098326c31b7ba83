package utils

// Filter returns a new slice holding only the elements of slice for which
// filterFunc reports true. Used by pipelineindex to rebuild a program
// bucket with one pipeline removed, without mutating the bucket in place
// while other goroutines may be reading a snapshot of it.
func Filter[T any](slice []T, filterFunc func(T) bool) []T {
	var result []T
	for _, item := range slice {
		if filterFunc(item) {
			result = append(result, item)
		}
	}
	return result
}
