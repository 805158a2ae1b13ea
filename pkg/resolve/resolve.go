// Package resolve evaluates ordered lookup strategies and returns the first
// one that produces a value.
package resolve

// Strategy yields a value and whether it was found.
type Strategy[T any] func() (T, bool)

// First evaluates strategies in order and returns the first defined result.
// The zero value and false are returned when no strategy produces a value.
func First[T any](strategies ...Strategy[T]) (T, bool) {
	for _, s := range strategies {
		if s == nil {
			continue
		}
		if v, ok := s(); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Or returns the first defined result, or fallback when none is defined.
func Or[T any](fallback T, strategies ...Strategy[T]) T {
	if v, ok := First(strategies...); ok {
		return v
	}
	return fallback
}

// Ptr adapts an optional pointer field into a Strategy.
func Ptr[T any](p *T) Strategy[T] {
	return func() (T, bool) {
		if p == nil {
			var zero T
			return zero, false
		}
		return *p, true
	}
}

// Value adapts a constant into a Strategy that is always defined.
func Value[T any](v T) Strategy[T] {
	return func() (T, bool) {
		return v, true
	}
}

// Float returns the first non-nil pointer value, or fallback.
func Float(fallback float64, candidates ...*float64) float64 {
	strategies := make([]Strategy[float64], 0, len(candidates))
	for _, c := range candidates {
		strategies = append(strategies, Ptr(c))
	}
	return Or(fallback, strategies...)
}
