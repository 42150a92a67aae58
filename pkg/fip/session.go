package fip

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/seagrayinc/fip-directoutput/internal/usbio"
	"github.com/seagrayinc/fip-directoutput/pkg/fipwire"
)

// MaxResponsePayload caps the payload a response packet may declare.
// A malformed device declaring more means the byte stream has
// desynchronized; aborting beats an unbounded allocation.
const MaxResponsePayload = 512 * 1024

// Session is one live, claimed USB connection to one physical panel.
// The serial number and type identifier are fixed at creation. The
// transaction mutex admits one write+read exchange at a time: the
// protocol is strictly half-duplex with no request identifiers, so
// serialization is the only thing preventing response misattribution.
type Session struct {
	tr      usbio.Transport
	serial  string
	devType uuid.UUID

	mu sync.Mutex
}

// NewSession wraps a claimed transport. The caller supplies the serial
// number read during connection setup.
func NewSession(tr usbio.Transport, serial string) *Session {
	return &Session{tr: tr, serial: serial, devType: DeviceTypeFIP}
}

// SerialNumber returns the serial captured at session creation.
func (s *Session) SerialNumber() string { return s.serial }

// DeviceType returns the panel's fixed type identifier.
func (s *Session) DeviceType() uuid.UUID { return s.devType }

// Close releases the underlying transport.
func (s *Session) Close() error { return s.tr.Close() }

// Transact performs one half-duplex exchange: write the encoded
// request packet and its payload, then read the response packet and
// its payload. The payload length must equal the packet's declared
// data size. Transport errors propagate unchanged; framing faults
// surface as ErrProtocol. A response with its error fields set is a
// successful transaction - interpreting it is the caller's job.
func (s *Session) Transact(req fipwire.ControlPacket, payload []byte) (fipwire.ControlPacket, []byte, error) {
	if int(req.DataSize) != len(payload) {
		return fipwire.ControlPacket{}, nil, fmt.Errorf(
			"%w: packet declares %d payload bytes, caller supplied %d",
			ErrProtocol, req.DataSize, len(payload))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(req, payload); err != nil {
		return fipwire.ControlPacket{}, nil, err
	}
	return s.read()
}

func (s *Session) write(req fipwire.ControlPacket, payload []byte) error {
	buf := req.Encode()
	n, err := s.tr.WriteBulk(buf)
	if err != nil {
		return fmt.Errorf("write control packet: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: short control packet write (%d of %d bytes)", ErrProtocol, n, len(buf))
	}
	if len(payload) == 0 {
		return nil
	}
	n, err = s.tr.WriteBulk(payload)
	if err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	if n != len(payload) {
		return fmt.Errorf("%w: short payload write (%d of %d bytes)", ErrProtocol, n, len(payload))
	}
	return nil
}

func (s *Session) read() (fipwire.ControlPacket, []byte, error) {
	buf := make([]byte, fipwire.PacketSize)
	n, err := s.tr.ReadBulk(buf)
	if err != nil {
		return fipwire.ControlPacket{}, nil, fmt.Errorf("read control packet: %w", err)
	}
	if n != fipwire.PacketSize {
		return fipwire.ControlPacket{}, nil, fmt.Errorf(
			"%w: short control packet read (%d of %d bytes)", ErrProtocol, n, fipwire.PacketSize)
	}
	resp, err := fipwire.DecodePacket(buf)
	if err != nil {
		return fipwire.ControlPacket{}, nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	if resp.DataSize == 0 {
		return resp, nil, nil
	}
	if resp.DataSize >= MaxResponsePayload {
		return fipwire.ControlPacket{}, nil, fmt.Errorf(
			"%w: response declares %d payload bytes, cap is %d",
			ErrProtocol, resp.DataSize, MaxResponsePayload)
	}

	data := make([]byte, resp.DataSize)
	n, err = s.tr.ReadBulk(data)
	if err != nil {
		return fipwire.ControlPacket{}, nil, fmt.Errorf("read response payload: %w", err)
	}
	if n != len(data) {
		return fipwire.ControlPacket{}, nil, fmt.Errorf(
			"%w: short payload read (%d of %d bytes)", ErrProtocol, n, len(data))
	}
	return resp, data, nil
}
