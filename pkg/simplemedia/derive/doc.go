// Package derive runs external media engine invocations and resolves each
// to a single Outcome.
//
// The engine is a black box: an Invocation names an input, an output and
// the ordered options from a profile. Progress is reported through an
// Observer side channel and never changes how a job resolves.
package derive

import "context"

// Prober reads the duration of a media file, in seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}
