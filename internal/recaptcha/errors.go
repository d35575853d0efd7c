package recaptcha

import (
	"errors"
	"io"
	"net"
	"net/url"
	"syscall"
)

// ErrInvalidResponse is returned when the provider answered but the answer
// could not be used (non-2xx status or undecodable body).
var ErrInvalidResponse = errors.New("invalid siteverify response")

// TransportError reports a network-level failure while calling the provider.
type TransportError struct {
	Err error
}

// Error omits the request URL of a *url.Error, which carries the secret.
func (e *TransportError) Error() string {
	var urlErr *url.Error
	if errors.As(e.Err, &urlErr) {
		if urlErr.Err == nil {
			return "siteverify request failed: " + urlErr.Op
		}
		return "siteverify request failed: " + urlErr.Op + ": " + urlErr.Err.Error()
	}
	return "siteverify request failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Description returns a short, human-readable description of the fault.
// The request URL carries the secret, so it is never part of the text.
func (e *TransportError) Description() string {
	err := e.Err
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	var netErr net.Error
	switch {
	case errors.Is(err, syscall.ECONNRESET):
		return "Connection reset"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "Connection refused"
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "unexpected end of stream"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case err == nil:
		return ""
	}
	return err.Error()
}
