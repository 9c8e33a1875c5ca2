package sf

import "golang.org/x/sync/singleflight"

// Singleflight deduplicates concurrent calls sharing a key. The first caller
// executes the function; everyone else arriving while it runs blocks and
// receives the same result.
type Singleflight[T any] struct {
	group singleflight.Group
}

// New creates a Singleflight for results of type T.
func New[T any]() *Singleflight[T] {
	return &Singleflight[T]{}
}

// Do executes fn for the given key unless a call for the key is already in
// flight, in which case it waits for that call's result. fn runs at most
// once per key at any given time. On error the zero value of T is returned.
func (s *Singleflight[T]) Do(key string, fn func() (T, error)) (T, error) {
	v, err, _ := s.group.Do(key, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
