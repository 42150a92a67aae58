package usbio

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
)

// Conn is the gousb-backed Transport for one claimed panel. It owns
// the device handle, the claimed configuration and interfaces, and the
// three resolved endpoints.
type Conn struct {
	dev    *gousb.Device
	cfg    *gousb.Config
	hid    *gousb.Interface
	vendor *gousb.Interface

	report  *gousb.InEndpoint // button reports, HID interface
	bulkIn  *gousb.InEndpoint // control responses, vendor interface
	bulkOut *gousb.OutEndpoint

	serial  string
	timeout time.Duration
}

// Open claims dev and resolves the panel's expected topology: exactly
// one HID-class interface with exactly one IN endpoint, and exactly
// one vendor-specific interface with exactly one IN and one OUT
// endpoint. Anything else is a fatal misconfiguration for this
// connection attempt.
//
// On success the returned Conn owns dev and will close it. On failure
// everything claimed so far is released but dev stays open and remains
// the caller's to close; that keeps the handle reusable for the one
// access-denied retry the lifecycle allows.
func Open(dev *gousb.Device, timeout time.Duration) (*Conn, error) {
	if timeout <= 0 {
		timeout = DefaultIOTimeout
	}

	// The kernel usually has usbhid bound to the HID interface.
	// Detaching is best-effort, failure ignored.
	_ = dev.SetAutoDetach(true)

	confNum, err := dev.ActiveConfigNum()
	if err != nil {
		return nil, fmt.Errorf("active config: %w", err)
	}
	cfg, err := dev.Config(confNum)
	if err != nil {
		return nil, fmt.Errorf("claim config %d: %w", confNum, err)
	}

	c := &Conn{dev: dev, cfg: cfg, timeout: timeout}
	if err := c.claim(); err != nil {
		c.release()
		return nil, err
	}

	serial, err := dev.SerialNumber()
	if err != nil {
		c.release()
		return nil, fmt.Errorf("read serial number: %w", err)
	}
	c.serial = serial
	return c, nil
}

// claim finds the two interfaces by class code, claims them, and
// resolves the endpoints.
func (c *Conn) claim() error {
	var hidDesc, vendorDesc *gousb.InterfaceDesc
	for i := range c.cfg.Desc.Interfaces {
		intf := &c.cfg.Desc.Interfaces[i]
		if len(intf.AltSettings) == 0 {
			continue
		}
		switch intf.AltSettings[0].Class {
		case gousb.ClassHID:
			if hidDesc == nil {
				hidDesc = intf
			}
		case gousb.ClassVendorSpec:
			if vendorDesc == nil {
				vendorDesc = intf
			}
		}
	}
	if hidDesc == nil {
		return fmt.Errorf("device has no HID-class interface")
	}
	if vendorDesc == nil {
		return fmt.Errorf("device has no vendor-specific interface")
	}

	reportDesc, err := soleEndpoint(hidDesc.AltSettings[0], gousb.EndpointDirectionIn)
	if err != nil {
		return fmt.Errorf("HID interface: %w", err)
	}
	bulkInDesc, err := soleEndpoint(vendorDesc.AltSettings[0], gousb.EndpointDirectionIn)
	if err != nil {
		return fmt.Errorf("vendor interface: %w", err)
	}
	bulkOutDesc, err := soleEndpoint(vendorDesc.AltSettings[0], gousb.EndpointDirectionOut)
	if err != nil {
		return fmt.Errorf("vendor interface: %w", err)
	}

	if c.hid, err = c.cfg.Interface(hidDesc.Number, 0); err != nil {
		return fmt.Errorf("claim HID interface %d: %w", hidDesc.Number, err)
	}
	if c.vendor, err = c.cfg.Interface(vendorDesc.Number, 0); err != nil {
		return fmt.Errorf("claim vendor interface %d: %w", vendorDesc.Number, err)
	}

	if c.report, err = c.hid.InEndpoint(reportDesc.Number); err != nil {
		return fmt.Errorf("open report endpoint %d: %w", reportDesc.Number, err)
	}
	if c.bulkIn, err = c.vendor.InEndpoint(bulkInDesc.Number); err != nil {
		return fmt.Errorf("open bulk IN endpoint %d: %w", bulkInDesc.Number, err)
	}
	if c.bulkOut, err = c.vendor.OutEndpoint(bulkOutDesc.Number); err != nil {
		return fmt.Errorf("open bulk OUT endpoint %d: %w", bulkOutDesc.Number, err)
	}
	return nil
}

// soleEndpoint returns the single endpoint of the given direction, or
// an error when the setting has none or several.
func soleEndpoint(s gousb.InterfaceSetting, dir gousb.EndpointDirection) (gousb.EndpointDesc, error) {
	var found []gousb.EndpointDesc
	for _, ep := range s.Endpoints {
		if ep.Direction == dir {
			found = append(found, ep)
		}
	}
	name := "OUT"
	if dir == gousb.EndpointDirectionIn {
		name = "IN"
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return gousb.EndpointDesc{}, fmt.Errorf("no %s endpoint", name)
	default:
		return gousb.EndpointDesc{}, fmt.Errorf("%d %s endpoints, expected exactly one", len(found), name)
	}
}

// Serial returns the serial number string descriptor read at open.
func (c *Conn) Serial() string { return c.serial }

// ReadReport reads one button-state report from the HID interface.
func (c *Conn) ReadReport(buf []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.report.ReadContext(ctx, buf)
}

// ReadBulk reads from the vendor interface's IN endpoint.
func (c *Conn) ReadBulk(buf []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.bulkIn.ReadContext(ctx, buf)
}

// WriteBulk writes to the vendor interface's OUT endpoint.
func (c *Conn) WriteBulk(buf []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.bulkOut.WriteContext(ctx, buf)
}

// release frees claimed interfaces and the configuration but leaves
// the device handle open.
func (c *Conn) release() {
	if c.hid != nil {
		c.hid.Close()
		c.hid = nil
	}
	if c.vendor != nil {
		c.vendor.Close()
		c.vendor = nil
	}
	if c.cfg != nil {
		c.cfg.Close()
		c.cfg = nil
	}
}

// Close releases the claimed interfaces and closes the device handle.
func (c *Conn) Close() error {
	c.release()
	return c.dev.Close()
}
