// Package usbio is the raw USB conduit to one claimed panel. It knows
// the device's interface topology (one HID-class interface carrying
// button reports, one vendor-specific interface carrying the control
// protocol) and exposes the three primitive transfers everything above
// it is built on. No framing, no retries.
package usbio

import (
	"context"
	"errors"
	"time"

	"github.com/google/gousb"
)

// DefaultIOTimeout bounds every transfer issued through a Conn.
const DefaultIOTimeout = 5 * time.Second

// Transport is the primitive transfer surface of a claimed device:
// short reports from the HID interface, bulk reads and writes on the
// vendor interface. Each call blocks up to the connection's timeout.
type Transport interface {
	ReadReport(buf []byte) (int, error)
	ReadBulk(buf []byte) (int, error)
	WriteBulk(buf []byte) (int, error)
	Close() error
}

// IsTimeout reports whether err is a transfer that ran out of time.
func IsTimeout(err error) bool {
	return errors.Is(err, gousb.TransferTimedOut) ||
		errors.Is(err, gousb.TransferCancelled) ||
		errors.Is(err, gousb.ErrorTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsDeviceGone reports whether err means the device has been
// disconnected.
func IsDeviceGone(err error) bool {
	return errors.Is(err, gousb.ErrorNoDevice) ||
		errors.Is(err, gousb.TransferNoDevice)
}

// IsAccessDenied reports whether err is a permission or ownership
// fault, typically the kernel or another process still holding the
// device.
func IsAccessDenied(err error) bool {
	return errors.Is(err, gousb.ErrorAccess) ||
		errors.Is(err, gousb.ErrorBusy)
}
