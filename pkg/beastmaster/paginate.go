package beastmaster

// MaxPage returns ceil(n / size).
func MaxPage(n, size int) int {
	if size <= 0 || n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// PageSlice returns the items on 1-based page. Out of range pages are empty.
func PageSlice[T any](items []T, page, size int) []T {
	if page < 1 || size <= 0 {
		return nil
	}
	lo := (page - 1) * size
	if lo >= len(items) {
		return nil
	}
	return items[lo:min(lo+size, len(items))]
}
