package fipwire

import (
	"encoding/binary"
	"strings"
)

// ReportSize is the length of a button-state report on the HID
// interface.
const ReportSize = 2

// Buttons is the 16-bit big-endian button-state bitmask from the HID
// interface. Bits not named below are reserved and must be ignored,
// not rejected; they are kept in the value but never reported by
// String.
type Buttons uint16

const (
	ButtonS1 Buttons = 0x0100
	ButtonS2 Buttons = 0x0200
	ButtonS3 Buttons = 0x0400
	ButtonS4 Buttons = 0x0800
	ButtonS5 Buttons = 0x1000
	ButtonS6 Buttons = 0x2000

	ButtonLeftAnticlockwise Buttons = 0x4000
	ButtonLeftClockwise     Buttons = 0x8000

	ButtonUp                 Buttons = 0x0001
	ButtonDown               Buttons = 0x0002
	ButtonRightAnticlockwise Buttons = 0x0004
	ButtonRightClockwise     Buttons = 0x0008
)

var buttonNames = []struct {
	bit  Buttons
	name string
}{
	{ButtonS1, "S1"},
	{ButtonS2, "S2"},
	{ButtonS3, "S3"},
	{ButtonS4, "S4"},
	{ButtonS5, "S5"},
	{ButtonS6, "S6"},
	{ButtonLeftAnticlockwise, "left-anticlockwise"},
	{ButtonLeftClockwise, "left-clockwise"},
	{ButtonUp, "up"},
	{ButtonDown, "down"},
	{ButtonRightAnticlockwise, "right-anticlockwise"},
	{ButtonRightClockwise, "right-clockwise"},
}

// DecodeButtons parses a 2-byte button report. Callers must pass at
// least ReportSize bytes.
func DecodeButtons(b []byte) Buttons {
	return Buttons(binary.BigEndian.Uint16(b))
}

// Pressed reports whether every bit of mask is set.
func (b Buttons) Pressed(mask Buttons) bool {
	return b&mask == mask
}

func (b Buttons) String() string {
	if b == 0 {
		return "none"
	}
	var names []string
	for _, n := range buttonNames {
		if b&n.bit != 0 {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}
