package util

import (
	"golang.org/x/sync/errgroup"
)

// FanOut calls fn once per index in [0, n), each call in its own goroutine,
// and returns the results in index order once every call has returned.
// limit > 0 bounds how many calls run at the same time.
//
// Calls report failure through their result value; one failing call never
// stops its siblings.
func FanOut[T any](n, limit int, fn func(i int) T) []T {
	results := make([]T, n)
	if n == 0 {
		return results
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i := 0; i < n; i++ {
		g.Go(func() error {
			results[i] = fn(i)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
