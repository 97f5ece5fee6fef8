package stream

import "errors"

var (
	// ErrNotStream is returned when the pooled connection for an
	// endpoint does not serve event streams.
	ErrNotStream = errors.New("stream: connection cannot open event streams")
)
