package fip

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/gousb"

	"github.com/seagrayinc/fip-directoutput/internal/usbio"
	"github.com/seagrayinc/fip-directoutput/pkg/fipwire"
)

// runWorker drives one connection lifetime for dev: claim the USB
// device, probe for factory mode, publish the session, then pump
// button reports until the session dies or the library shuts down.
// Exactly one worker runs per physical connection; a replugged panel
// gets a fresh worker from the next scan.
func (l *Library) runWorker(ctx context.Context, dev *Device, raw *gousb.Device) {
	defer l.wg.Done()
	defer l.workerDone(dev.addr)

	log := l.log.With(slog.String("panel", dev.addr.String()))

	conn, err := l.openConn(raw)
	if err != nil {
		log.Error("cannot claim panel", slog.Any("error", err))
		raw.Close()
		return
	}

	sess := NewSession(conn, conn.Serial())
	if !l.activate(dev, sess, log) {
		return
	}
	l.reportLoop(ctx, dev, conn, log)
}

// openConn claims the device. A transient access-denied is tolerated
// once: the kernel can still own the interfaces right after
// enumeration, so wait a second and try again. A second failure is
// final for this run.
func (l *Library) openConn(raw *gousb.Device) (*usbio.Conn, error) {
	conn, err := usbio.Open(raw, l.timeout)
	if err == nil || !usbio.IsAccessDenied(err) {
		return conn, err
	}
	time.Sleep(time.Second)
	return usbio.Open(raw, l.timeout)
}

// activate issues the factory-mode probe and, if the panel may be
// driven, publishes the session. It reports whether the session was
// installed; when it was not, sess has been closed and this run is
// over - the handle stays uninitialized until a fresh enumeration.
func (l *Library) activate(dev *Device, sess *Session, log *slog.Logger) bool {
	resp, _, err := sess.Transact(fipwire.NewPacket(fipwire.RequestFactoryProbe), nil)
	if err != nil {
		log.Error("factory mode probe failed", slog.Any("error", err))
		sess.Close()
		return false
	}
	if !resp.HasError() {
		// A clean probe response means the panel is in factory mode
		// and must not be driven by this protocol.
		log.Warn("panel is in factory mode, leaving it alone")
		sess.Close()
		return false
	}

	dev.install(sess)
	l.notify(dev.addr, true)
	log.Info("panel ready", slog.String("serial", sess.SerialNumber()))
	return true
}

// reportLoop reads 2-byte button reports until the panel disconnects,
// the transport faults, or the library shuts down. A timeout just
// means nothing was pressed inside the window. Any session-ending
// error clears the slot and ends the run: the panel can only come back
// through a fresh enumeration and a new worker.
func (l *Library) reportLoop(ctx context.Context, dev *Device, tr usbio.Transport, log *slog.Logger) {
	buf := make([]byte, fipwire.ReportSize)
	for {
		if ctx.Err() != nil {
			l.dropQuietly(dev)
			return
		}

		n, err := tr.ReadReport(buf)
		switch {
		case err == nil:
			if n < fipwire.ReportSize {
				continue // runt report, ignore
			}
			buttons := fipwire.DecodeButtons(buf)
			if fn := dev.buttonsHandler(); fn != nil {
				fn(buttons)
			} else {
				log.Debug("buttons", slog.String("state", buttons.String()))
			}

		case usbio.IsTimeout(err):
			// Nothing pressed within the window; keep listening.

		case usbio.IsDeviceGone(err):
			log.Info("panel disconnected, invalidating session")
			l.drop(dev)
			return

		default:
			log.Error("report read failed, invalidating session", slog.Any("error", err))
			l.drop(dev)
			return
		}
	}
}

// drop clears the device's slot, closes the session, and raises the
// departure notification.
func (l *Library) drop(dev *Device) {
	if s := dev.invalidate(); s != nil {
		s.Close()
		l.notify(dev.addr, false)
	}
}

// dropQuietly is drop for the shutdown path: handlers are not invoked
// while the library is tearing itself down.
func (l *Library) dropQuietly(dev *Device) {
	if s := dev.invalidate(); s != nil {
		s.Close()
	}
}
