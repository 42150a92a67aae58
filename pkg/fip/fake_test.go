package fip

import (
	"fmt"
	"sync"

	"github.com/seagrayinc/fip-directoutput/pkg/fipwire"
)

// fakeTransport plays the device side of the control protocol in
// memory. It enforces the half-duplex discipline: any write that
// arrives while another exchange is still in flight, or any read in
// the wrong phase, is recorded as a violation.
type fakeTransport struct {
	mu sync.Mutex

	// respond produces the device's answer to a completed request.
	// When nil the request is echoed back with clean error fields.
	respond func(req fipwire.ControlPacket, payload []byte) (fipwire.ControlPacket, []byte)

	// reports is the script for ReadReport, consumed front to back.
	reports []reportStep

	// error injection for the bulk path
	writeErr error
	readErr  error

	phase        int // 0 idle, 1 await request payload, 2 await response read, 3 await data read
	expectedSize int
	pendingReq   fipwire.ControlPacket
	pendingResp  []byte
	pendingData  []byte

	requests   []fipwire.ControlPacket
	payloads   [][]byte
	violations []string
	closed     bool
}

type reportStep struct {
	data []byte
	err  error
}

func (f *fakeTransport) violate(format string, args ...any) {
	f.violations = append(f.violations, fmt.Sprintf(format, args...))
}

func (f *fakeTransport) WriteBulk(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writeErr != nil {
		return 0, f.writeErr
	}

	switch f.phase {
	case 0:
		req, err := fipwire.DecodePacket(buf)
		if err != nil || len(buf) != fipwire.PacketSize {
			f.violate("idle write of %d bytes is not a control packet", len(buf))
			return len(buf), nil
		}
		f.pendingReq = req
		f.requests = append(f.requests, req)
		if req.DataSize > 0 {
			f.phase = 1
			f.expectedSize = int(req.DataSize)
		} else {
			f.finishRequest(nil)
		}
	case 1:
		if len(buf) != f.expectedSize {
			f.violate("payload write of %d bytes, declared %d", len(buf), f.expectedSize)
		}
		payload := make([]byte, len(buf))
		copy(payload, buf)
		f.finishRequest(payload)
	default:
		f.violate("write while a response is pending")
	}
	return len(buf), nil
}

func (f *fakeTransport) finishRequest(payload []byte) {
	f.payloads = append(f.payloads, payload)
	resp, data := f.pendingReq, []byte(nil)
	resp.DataSize = 0
	if f.respond != nil {
		resp, data = f.respond(f.pendingReq, payload)
	}
	f.pendingResp = resp.Encode()
	f.pendingData = data
	f.phase = 2
}

func (f *fakeTransport) ReadBulk(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.readErr != nil {
		return 0, f.readErr
	}

	switch f.phase {
	case 2:
		n := copy(buf, f.pendingResp)
		if len(f.pendingData) > 0 {
			f.phase = 3
		} else {
			f.phase = 0
		}
		return n, nil
	case 3:
		n := copy(buf, f.pendingData)
		f.phase = 0
		return n, nil
	default:
		f.violate("read with no response pending")
		return 0, nil
	}
}

func (f *fakeTransport) ReadReport(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reports) == 0 {
		return 0, f.readErr
	}
	step := f.reports[0]
	f.reports = f.reports[1:]
	if step.err != nil {
		return 0, step.err
	}
	return copy(buf, step.data), nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// rejectAll answers every request with a nonzero request error, which
// is what a real panel outside factory mode does for the probe.
func rejectAll(req fipwire.ControlPacket, _ []byte) (fipwire.ControlPacket, []byte) {
	resp := req
	resp.DataSize = 0
	resp.RequestError = 1
	return resp, nil
}
