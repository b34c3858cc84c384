package scraper

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Flight deduplicates concurrent fetches that share a key: the first
// caller runs fn, every other caller for the same key blocks and shares
// the result. The API server keys on "cedula:periodo" so a burst of
// requests for one document hits the portal once.
type Flight[T any] struct {
	group singleflight.Group
}

// NewFlight creates an empty flight group.
func NewFlight[T any]() *Flight[T] {
	return &Flight[T]{}
}

// Do executes fn under singleflight. A context already canceled before
// the flight starts returns ctx.Err without calling fn.
func (f *Flight[T]) Do(ctx context.Context, key string, fn func() (T, error)) (T, error) {
	v, err, _ := f.group.Do(key, func() (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	result, _ := v.(T)
	return result, nil
}

// Forget drops a key so the next Do executes fn again. Called after a
// fetch error so one failure is not shared with later requests.
func (f *Flight[T]) Forget(key string) {
	f.group.Forget(key)
}
