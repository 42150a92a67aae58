package usbio

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/gousb"
)

func TestIsTimeout(t *testing.T) {
	for _, err := range []error{
		gousb.TransferTimedOut,
		gousb.TransferCancelled,
		gousb.ErrorTimeout,
		context.DeadlineExceeded,
		fmt.Errorf("read control packet: %w", gousb.TransferTimedOut),
	} {
		if !IsTimeout(err) {
			t.Errorf("IsTimeout(%v) = false, want true", err)
		}
	}
	if IsTimeout(gousb.ErrorNoDevice) {
		t.Errorf("no-device should not classify as timeout")
	}
	if IsTimeout(errors.New("other")) {
		t.Errorf("arbitrary errors should not classify as timeout")
	}
}

func TestIsDeviceGone(t *testing.T) {
	for _, err := range []error{
		gousb.ErrorNoDevice,
		gousb.TransferNoDevice,
		fmt.Errorf("report: %w", gousb.ErrorNoDevice),
	} {
		if !IsDeviceGone(err) {
			t.Errorf("IsDeviceGone(%v) = false, want true", err)
		}
	}
	if IsDeviceGone(gousb.ErrorTimeout) {
		t.Errorf("timeout should not classify as device-gone")
	}
}

func TestIsAccessDenied(t *testing.T) {
	if !IsAccessDenied(gousb.ErrorAccess) || !IsAccessDenied(gousb.ErrorBusy) {
		t.Errorf("access/busy should classify as access-denied")
	}
	if IsAccessDenied(gousb.ErrorNoDevice) {
		t.Errorf("no-device should not classify as access-denied")
	}
}
