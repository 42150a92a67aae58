package fip

import (
	"errors"
	"fmt"

	"github.com/seagrayinc/fip-directoutput/pkg/fipwire"
)

var (
	// ErrNotReady is returned by device operations while no session is
	// installed: the panel is absent or has not finished initializing.
	ErrNotReady = errors.New("panel is not ready")

	// ErrProtocol marks an unrecoverable framing fault on the control
	// stream: a short transfer, an undersized response packet, or a
	// declared payload above MaxResponsePayload. A transaction that
	// fails this way is not retried; the byte stream can no longer be
	// trusted to be aligned.
	ErrProtocol = errors.New("control protocol violation")
)

// RequestError is a structurally valid response the device flagged as
// failed. It is the normal outcome for a request the panel rejects,
// not a transport fault, and it never invalidates the session. All
// four error/info fields of the response are carried so callers can
// diagnose beyond pass/fail.
type RequestError struct {
	HeaderError  uint32
	HeaderInfo   uint32
	RequestError uint32
	RequestInfo  uint32
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("panel rejected request (header_error=%d request_error=%d)",
		e.HeaderError, e.RequestError)
}

func newRequestError(p fipwire.ControlPacket) *RequestError {
	return &RequestError{
		HeaderError:  p.HeaderError,
		HeaderInfo:   p.HeaderInfo,
		RequestError: p.RequestError,
		RequestInfo:  p.RequestInfo,
	}
}
