package flow

import "errors"

var (
	// ErrInvalidValue reports an answer that does not fit its input:
	// an unparsable boolean or a value that names no available option.
	ErrInvalidValue = errors.New("invalid input value")
	// ErrUnsupportedNode reports a node the resolver cannot interpret at
	// its position in the tree.
	ErrUnsupportedNode = errors.New("unsupported node")
	// ErrNotReady is returned when a result is requested before every
	// input is resolved.
	ErrNotReady = errors.New("flow is not ready")
	// ErrDone is returned by operations on a finished flow.
	ErrDone = errors.New("flow is done")
)
