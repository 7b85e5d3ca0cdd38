package model

// Optional marks a field the data source may or may not provide.
type Optional[T any] struct {
	value T
	ok    bool
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

func None[T any]() Optional[T] {
	return Optional[T]{}
}

func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

// NonEmpty returns Some(s) unless s is empty.
func NonEmpty(s string) Optional[string] {
	if s == "" {
		return None[string]()
	}
	return Some(s)
}
