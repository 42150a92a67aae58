// Package fipwire implements the vendor control protocol spoken by the
// Saitek Pro Flight Instrument Panel: a fixed 44-byte big-endian
// control packet, optionally followed by a raw payload, exchanged over
// the vendor-specific USB interface, plus the 2-byte button report
// delivered on the HID interface.
package fipwire

import (
	"encoding/binary"
	"fmt"
)

// PacketSize is the wire size of a ControlPacket: eleven 32-bit
// big-endian fields, no padding between them.
const PacketSize = 44

// ImageSize is the fixed raw frame size of the panel display:
// 320x240 pixels at 24 bits per pixel.
const ImageSize = 0x38400

// Request is a numeric opcode of the control protocol. The catalogue
// below is everything observed from the vendor driver; a few entries
// have uncertain meaning and are never sent by this package.
type Request uint32

const (
	// RequestFolderRemoved shows up in the vendor driver around folder
	// removal. Exact meaning unknown; catalogued only.
	RequestFolderRemoved Request = 0x02

	// RequestSaveFile stores the payload on the device under a file id.
	RequestSaveFile Request = 0x03

	// RequestSetImageFile sets a page image from a previously stored
	// file. Catalogued only.
	RequestSetImageFile Request = 0x04

	// RequestSetImage sets a page image from a raw frame payload.
	RequestSetImage Request = 0x06

	// RequestFileOp displays or deletes a stored file. One opcode
	// serves both operations; they differ only in which parameter
	// slots are populated, so the logical operation is chosen at the
	// encode layer and never inferred from a decoded packet.
	RequestFileOp Request = 0x07

	// RequestStartServer starts a server session on the device.
	// Catalogued only.
	RequestStartServer Request = 0x09

	// RequestFactoryProbe probes for factory mode. A response without
	// error means the device currently is in factory mode and must not
	// be driven by this protocol. Semantics beyond that are uncertain.
	RequestFactoryProbe Request = 0x0A

	// RequestClearImage blanks a page image.
	RequestClearImage Request = 0x13

	// RequestSetLED switches a single indicator LED on a page.
	RequestSetLED Request = 0x18
)

// Known reports whether r is part of the catalogue. Unknown opcodes
// still decode: a response packet must stay inspectable for its error
// fields even when this side does not recognize the request id it
// describes.
func (r Request) Known() bool {
	switch r {
	case RequestFolderRemoved, RequestSaveFile, RequestSetImageFile,
		RequestSetImage, RequestFileOp, RequestStartServer,
		RequestFactoryProbe, RequestClearImage, RequestSetLED:
		return true
	}
	return false
}

func (r Request) String() string {
	switch r {
	case RequestFolderRemoved:
		return "folder-removed"
	case RequestSaveFile:
		return "save-file"
	case RequestSetImageFile:
		return "set-image-file"
	case RequestSetImage:
		return "set-image"
	case RequestFileOp:
		return "file-op"
	case RequestStartServer:
		return "start-server"
	case RequestFactoryProbe:
		return "factory-probe"
	case RequestClearImage:
		return "clear-image"
	case RequestSetLED:
		return "set-led"
	}
	return fmt.Sprintf("unknown(0x%02x)", uint32(r))
}

// ControlPacket is the fixed request/response envelope of the
// protocol. Every field is 32-bit big-endian on the wire, in the
// declared order. Page is logically an 8-bit value stored widened;
// values outside 0-255 are a programming error, which is why the
// public device operations take pages as byte.
type ControlPacket struct {
	ServerID     uint32
	Page         uint32
	DataSize     uint32
	HeaderError  uint32
	HeaderInfo   uint32
	Request      Request
	Param1       uint32
	Param2       uint32
	Param3       uint32
	RequestError uint32
	RequestInfo  uint32
}

// NewPacket returns a zeroed packet carrying the given request opcode.
func NewPacket(req Request) ControlPacket {
	return ControlPacket{Request: req}
}

// HasError reports whether the device flagged this packet as failed on
// either the protocol header or the request level.
func (p ControlPacket) HasError() bool {
	return p.HeaderError > 0 || p.RequestError > 0
}

// Encode renders the packet into its 44-byte wire form.
func (p ControlPacket) Encode() []byte {
	b := make([]byte, PacketSize)
	binary.BigEndian.PutUint32(b[0:], p.ServerID)
	binary.BigEndian.PutUint32(b[4:], p.Page)
	binary.BigEndian.PutUint32(b[8:], p.DataSize)
	binary.BigEndian.PutUint32(b[12:], p.HeaderError)
	binary.BigEndian.PutUint32(b[16:], p.HeaderInfo)
	binary.BigEndian.PutUint32(b[20:], uint32(p.Request))
	binary.BigEndian.PutUint32(b[24:], p.Param1)
	binary.BigEndian.PutUint32(b[28:], p.Param2)
	binary.BigEndian.PutUint32(b[32:], p.Param3)
	binary.BigEndian.PutUint32(b[36:], p.RequestError)
	binary.BigEndian.PutUint32(b[40:], p.RequestInfo)
	return b
}

// DecodePacket parses a received 44-byte buffer. Only the length is
// validated; an unrecognized opcode is not a decode failure (see
// Request.Known).
func DecodePacket(b []byte) (ControlPacket, error) {
	if len(b) < PacketSize {
		return ControlPacket{}, fmt.Errorf("control packet is %d bytes, need %d", len(b), PacketSize)
	}
	return ControlPacket{
		ServerID:     binary.BigEndian.Uint32(b[0:]),
		Page:         binary.BigEndian.Uint32(b[4:]),
		DataSize:     binary.BigEndian.Uint32(b[8:]),
		HeaderError:  binary.BigEndian.Uint32(b[12:]),
		HeaderInfo:   binary.BigEndian.Uint32(b[16:]),
		Request:      Request(binary.BigEndian.Uint32(b[20:])),
		Param1:       binary.BigEndian.Uint32(b[24:]),
		Param2:       binary.BigEndian.Uint32(b[28:]),
		Param3:       binary.BigEndian.Uint32(b[32:]),
		RequestError: binary.BigEndian.Uint32(b[36:]),
		RequestInfo:  binary.BigEndian.Uint32(b[40:]),
	}, nil
}
