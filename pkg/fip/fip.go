// Package fip drives Saitek Pro Flight Instrument Panels over USB. It
// reimplements the device side of the vendor's DirectOutput driver:
// session establishment against the panel's private control protocol,
// serialized request/response exchanges, per-device lifecycle workers
// that track physical connectivity, and a registry that maps stable
// bus addresses to long-lived device handles.
package fip

import (
	"fmt"

	"github.com/google/uuid"
)

// Saitek vendor and Pro Flight Instrument Panel product identifiers.
const (
	SaitekVID uint16 = 0x06A3
	FIPPID    uint16 = 0xA2AE
)

// DeviceTypeFIP is the DirectOutput device type identifier of the
// panel. The vendor driver hardcodes it; the device exposes no way to
// read it.
var DeviceTypeFIP = uuid.MustParse("3E083CD8-6A37-4A58-80A8-3D6A2C07513E")

// Addr identifies a connected panel by USB bus number and device
// address. It is stable for the duration of one physical connection;
// a replug may produce a new address.
type Addr struct {
	Bus     uint8
	Address uint8
}

func (a Addr) String() string {
	return fmt.Sprintf("%03d-%03d", a.Bus, a.Address)
}

// key packs the address into the form used for registry lookups.
func (a Addr) key() uint16 {
	return uint16(a.Bus)<<8 | uint16(a.Address)
}
