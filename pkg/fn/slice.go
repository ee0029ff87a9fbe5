package fn

// Map returns f applied to every item.
func Map[T, U any](items []T, f func(T) U) []U {
	out := make([]U, 0, len(items))
	for _, v := range items {
		out = append(out, f(v))
	}
	return out
}

// Filter keeps the items pred accepts, in order.
func Filter[T any](items []T, pred func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, v := range items {
		if pred(v) {
			out = append(out, v)
		}
	}
	return out
}

// Unique drops repeated items, keeping the first of each.
func Unique[T comparable](items []T) []T {
	seen := make(map[T]bool, len(items))
	out := make([]T, 0, len(items))
	for _, v := range items {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
