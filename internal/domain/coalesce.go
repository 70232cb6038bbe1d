package domain

// ValueOr returns the first non-nil pointer's value, or fallback. Preference
// rules and run overrides use nil for "absent".
func ValueOr[T any](fallback T, ptrs ...*T) T {
	for _, p := range ptrs {
		if p != nil {
			return *p
		}
	}
	return fallback
}
