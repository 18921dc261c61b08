package utils

func Ptr[T any](v T) *T {
	return &v
}

// DefaultIfNil dereferences ptr, falling back when the option was not set
func DefaultIfNil[T any](ptr *T, defaultVal T) T {
	if ptr == nil {
		return defaultVal
	}
	return *ptr
}

// DefaultIfZero is DefaultIfNil for options whose zero value means unset
func DefaultIfZero[T comparable](v, defaultVal T) T {
	var zero T
	if v == zero {
		return defaultVal
	}
	return v
}
