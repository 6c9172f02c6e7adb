package utils

// Ptr returns a pointer to v. Useful for the nullable wire fields
// (assigned_to, due_date) that are modelled as pointers.
func Ptr[T any](v T) *T {
	return &v
}

// Value dereferences p, returning the zero value for nil.
func Value[T any](p *T) T {
	if p == nil {
		return *new(T)
	}
	return *p
}
