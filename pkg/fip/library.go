package fip

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/gousb"

	"github.com/seagrayinc/fip-directoutput/internal/usbio"
)

// Config controls library construction. The zero value is usable: it
// targets the stock Saitek IDs with default timeouts and the default
// slog logger.
type Config struct {
	// VendorID and ProductIDs select which USB devices are treated as
	// panels. Zero values fall back to SaitekVID/FIPPID.
	VendorID   uint16
	ProductIDs []uint16

	// IOTimeout bounds every USB transfer. Zero means
	// usbio.DefaultIOTimeout.
	IOTimeout time.Duration

	// RescanInterval is how often the background scanner looks for
	// newly attached panels. Zero disables the scanner; Rescan can
	// still be called manually.
	RescanInterval time.Duration

	// Logger receives structured lifecycle and protocol logs. Nil
	// means slog.Default.
	Logger *slog.Logger
}

func (c *Config) fillDefaults() {
	if c.VendorID == 0 {
		c.VendorID = SaitekVID
	}
	if len(c.ProductIDs) == 0 {
		c.ProductIDs = []uint16{FIPPID}
	}
	if c.IOTimeout <= 0 {
		c.IOTimeout = usbio.DefaultIOTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Library owns the USB context and the set of known panels. It is the
// explicit replacement for the vendor driver's process-global state:
// construct it before use, close it to drop every session. Handles
// resolved through it stay valid for the library's lifetime even while
// their panel is unplugged.
type Library struct {
	usb      *gousb.Context
	log      *slog.Logger
	vendorID gousb.ID
	products map[gousb.ID]bool
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	devices  map[uint16]*Device
	running  map[uint16]bool
	handlers []func(Addr, bool)
	closed   bool
}

// Open constructs a library, performs an initial scan, and starts one
// worker per discovered panel. Callers must Close it when done.
func Open(cfg Config) (*Library, error) {
	cfg.fillDefaults()

	l := &Library{
		usb:      gousb.NewContext(),
		log:      cfg.Logger,
		vendorID: gousb.ID(cfg.VendorID),
		products: make(map[gousb.ID]bool, len(cfg.ProductIDs)),
		timeout:  cfg.IOTimeout,
		devices:  make(map[uint16]*Device),
		running:  make(map[uint16]bool),
	}
	for _, pid := range cfg.ProductIDs {
		l.products[gousb.ID(pid)] = true
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())

	if err := l.Rescan(); err != nil {
		l.Close()
		return nil, err
	}
	if cfg.RescanInterval > 0 {
		l.wg.Add(1)
		go l.scanLoop(cfg.RescanInterval)
	}
	return l, nil
}

// Rescan enumerates matching USB devices and starts a worker for every
// address that does not already have one running. Departures are not
// detected here; the worker owning a connection notices those itself.
func (l *Library) Rescan() error {
	devs, err := l.usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == l.vendorID && l.products[desc.Product]
	})
	for _, raw := range devs {
		l.adopt(raw)
	}
	// OpenDevices can fail some candidates while opening others; only
	// a scan that produced nothing at all is reported.
	if err != nil && len(devs) == 0 {
		return fmt.Errorf("enumerate panels: %w", err)
	}
	return nil
}

// adopt takes ownership of a freshly opened device handle: spawn a
// worker for a new or currently-dead address, close the handle for an
// address that already has a live worker.
func (l *Library) adopt(raw *gousb.Device) {
	addr := Addr{Bus: uint8(raw.Desc.Bus), Address: uint8(raw.Desc.Address)}

	l.mu.Lock()
	if l.closed || l.running[addr.key()] {
		l.mu.Unlock()
		raw.Close()
		return
	}
	dev, ok := l.devices[addr.key()]
	if !ok {
		dev = newDevice(addr)
		l.devices[addr.key()] = dev
	}
	l.running[addr.key()] = true
	l.wg.Add(1)
	l.mu.Unlock()

	go l.runWorker(l.ctx, dev, raw)
}

func (l *Library) workerDone(addr Addr) {
	l.mu.Lock()
	delete(l.running, addr.key())
	l.mu.Unlock()
}

func (l *Library) scanLoop(interval time.Duration) {
	defer l.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-l.ctx.Done():
			return
		case <-t.C:
			if err := l.Rescan(); err != nil {
				l.log.Warn("panel rescan failed", slog.Any("error", err))
			}
		}
	}
}

// Devices lists the addresses of every panel the library has seen,
// connected or not.
func (l *Library) Devices() []Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	addrs := make([]Addr, 0, len(l.devices))
	for _, d := range l.devices {
		addrs = append(addrs, d.addr)
	}
	return addrs
}

// Device resolves an address to its handle.
func (l *Library) Device(addr Addr) (*Device, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.devices[addr.key()]
	return d, ok
}

// OnDeviceChange registers fn to be called with (addr, arrived) every
// time a handle's readiness transitions. Handlers run on worker
// goroutines and must not block for long.
func (l *Library) OnDeviceChange(fn func(addr Addr, arrived bool)) {
	l.mu.Lock()
	l.handlers = append(l.handlers, fn)
	l.mu.Unlock()
}

func (l *Library) notify(addr Addr, arrived bool) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	handlers := make([]func(Addr, bool), len(l.handlers))
	copy(handlers, l.handlers)
	l.mu.Unlock()

	for _, fn := range handlers {
		fn(addr, arrived)
	}
}

// Close tears the library down: stop every worker, drop every session,
// release the USB context. Workers blocked in a transfer finish within
// one I/O timeout. Close is idempotent.
func (l *Library) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()

	// Workers drop their sessions on the way out; this catches any
	// handle whose worker never reached the report loop.
	l.mu.Lock()
	devices := make([]*Device, 0, len(l.devices))
	for _, d := range l.devices {
		devices = append(devices, d)
	}
	l.mu.Unlock()
	for _, d := range devices {
		if s := d.invalidate(); s != nil {
			s.Close()
		}
	}
	return l.usb.Close()
}
