package upstream

import "fmt"

// TransportError reports that the upstream authority could not be
// reached or answered outside the 2xx range. Callers may substitute
// the fallback records on this error class.
type TransportError struct {
	URL        string
	StatusCode int // zero when the request never completed
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("upstream %s unreachable: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports a payload that is not JSON or has no usable
// top-level shape. Unlike transport failures this is not substituted
// automatically; the caller decides whether to fall back.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed upstream payload: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed upstream payload: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }
