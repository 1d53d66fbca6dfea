package model

import "errors"

// Per-request errors, returned to the caller with the request rejected.
var (
	ErrZoomOutOfRange  = errors.New("zoom out of range")
	ErrUnknownLayer    = errors.New("unknown layer")
	ErrIndexOutOfRange = errors.New("case index out of range")
)

// ErrMissingBand reports a band variable absent from the dataset. It
// surfaces when a whole slice is unavailable; per-pixel gaps render as
// transparent instead.
var ErrMissingBand = errors.New("missing band")

// Load-time errors, fatal to startup.
var ErrUnknownColormap = errors.New("unknown colormap")

// ErrRenderFailed wraps any render error stored in the cache's failed state.
var ErrRenderFailed = errors.New("render failed")
