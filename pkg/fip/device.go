package fip

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/seagrayinc/fip-directoutput/pkg/fipwire"
)

// Device is the long-lived handle for one physical panel. It outlives
// the sessions that pass through it: the guarded slot holds the
// current Session while the panel is usable and nothing otherwise.
// Invalidation is one-way for a given Session; reconnection installs a
// brand-new Session from a brand-new worker run.
//
// All methods are safe for concurrent use from any goroutine.
type Device struct {
	addr Addr

	mu   sync.RWMutex
	sess *Session

	hmu     sync.Mutex
	buttons func(fipwire.Buttons)
}

func newDevice(addr Addr) *Device {
	return &Device{addr: addr}
}

// Addr returns the USB address this handle was created for.
func (d *Device) Addr() Addr { return d.addr }

// Ready reports whether the panel currently holds a live session. It
// never blocks on I/O.
func (d *Device) Ready() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sess != nil
}

// OnButtons registers fn to receive decoded button-state reports,
// replacing any previous handler. fn is called from the device's
// worker goroutine and must not block for long. A nil fn unregisters.
func (d *Device) OnButtons(fn func(fipwire.Buttons)) {
	d.hmu.Lock()
	d.buttons = fn
	d.hmu.Unlock()
}

func (d *Device) buttonsHandler() func(fipwire.Buttons) {
	d.hmu.Lock()
	defer d.hmu.Unlock()
	return d.buttons
}

// session takes the read side of the slot just long enough to grab a
// transaction handle.
func (d *Device) session() (*Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.sess == nil {
		return nil, ErrNotReady
	}
	return d.sess, nil
}

// install publishes a session. From here on Ready reports true.
func (d *Device) install(s *Session) {
	d.mu.Lock()
	d.sess = s
	d.mu.Unlock()
}

// invalidate clears the slot and returns whatever was installed, nil
// if the slot was already empty.
func (d *Device) invalidate() *Session {
	d.mu.Lock()
	s := d.sess
	d.sess = nil
	d.mu.Unlock()
	return s
}

// SerialNumber returns the serial number captured at session creation.
func (d *Device) SerialNumber() (string, error) {
	s, err := d.session()
	if err != nil {
		return "", err
	}
	return s.SerialNumber(), nil
}

// DeviceType returns the panel's fixed type identifier.
func (d *Device) DeviceType() (uuid.UUID, error) {
	s, err := d.session()
	if err != nil {
		return uuid.UUID{}, err
	}
	return s.DeviceType(), nil
}

// transact runs one exchange and folds a device-side rejection into a
// *RequestError.
func (d *Device) transact(req fipwire.ControlPacket, payload []byte) error {
	s, err := d.session()
	if err != nil {
		return err
	}
	resp, _, err := s.Transact(req, payload)
	if err != nil {
		return err
	}
	if resp.HasError() {
		return newRequestError(resp)
	}
	return nil
}

// SetImageData pushes a full raw frame to the given display page. The
// buffer must be exactly fipwire.ImageSize bytes; its pixel encoding
// is the caller's concern.
func (d *Device) SetImageData(page byte, data []byte) error {
	if len(data) != fipwire.ImageSize {
		return fmt.Errorf("image buffer must be %d bytes, got %d", fipwire.ImageSize, len(data))
	}
	req := fipwire.NewPacket(fipwire.RequestSetImage)
	req.Page = uint32(page)
	req.DataSize = uint32(len(data))
	return d.transact(req, data)
}

// SetLED switches one indicator LED on a page.
func (d *Device) SetLED(page, index byte, on bool) error {
	req := fipwire.NewPacket(fipwire.RequestSetLED)
	req.Param1 = uint32(page)
	req.Param2 = uint32(index)
	if on {
		req.Param3 = 1
	}
	return d.transact(req, nil)
}

// ClearImage blanks the given display page.
func (d *Device) ClearImage(page byte) error {
	req := fipwire.NewPacket(fipwire.RequestClearImage)
	req.Page = uint32(page)
	return d.transact(req, nil)
}

// SaveFile reads src fully into memory and stores it on the panel
// under the given file id.
func (d *Device) SaveFile(page, file byte, src io.Reader) error {
	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read file payload: %w", err)
	}
	req := fipwire.NewPacket(fipwire.RequestSaveFile)
	req.Param1 = uint32(page)
	req.Param3 = uint32(file)
	req.DataSize = uint32(len(data))
	return d.transact(req, data)
}

// DisplayFile shows a stored file on a page. It shares its wire opcode
// with DeleteFile; the populated parameters are what distinguish them.
func (d *Device) DisplayFile(page, index, file byte) error {
	req := fipwire.NewPacket(fipwire.RequestFileOp)
	req.Param1 = uint32(page)
	req.Param2 = uint32(index)
	req.Param3 = uint32(file)
	return d.transact(req, nil)
}

// DeleteFile removes a stored file from a page.
func (d *Device) DeleteFile(page, file byte) error {
	req := fipwire.NewPacket(fipwire.RequestFileOp)
	req.Param1 = uint32(page)
	req.Param3 = uint32(file)
	return d.transact(req, nil)
}
