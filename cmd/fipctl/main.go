package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/seagrayinc/fip-directoutput/internal/config"
	"github.com/seagrayinc/fip-directoutput/pkg/fip"
	"github.com/seagrayinc/fip-directoutput/pkg/fipwire"
)

const usage = `usage: fipctl [-config file.yaml] <command> [args]

commands:
  list                                      show known panels
  watch                                     stream hotplug and button events
  set-led <addr> <page> <index> <0|1>       switch one indicator LED
  clear-image <addr> <page>                 blank a display page
  set-image <addr> <page> <frame.bin>       push a raw 320x240x24 frame
  save-file <addr> <page> <file-id> <path>  store a file on the panel
  display-file <addr> <page> <index> <file-id>
  delete-file <addr> <page> <file-id>

<addr> is bus-address as printed by list, e.g. 001-004.`

func main() {
	cfgPath := flag.String("config", "", "path to YAML config file")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			fatalf("%v", err)
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	lib, err := fip.Open(fip.Config{
		VendorID:       cfg.USB.VendorID,
		ProductIDs:     cfg.USB.ProductIDs,
		IOTimeout:      cfg.IOTimeout(),
		RescanInterval: cfg.RescanInterval(),
		Logger:         logger,
	})
	if err != nil {
		fatalf("%v", err)
	}
	defer lib.Close()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	switch cmd, rest := args[0], args[1:]; cmd {
	case "list":
		cmdList(ctx, lib)
	case "watch":
		cmdWatch(ctx, lib)
	case "set-led":
		dev, nums := resolve(ctx, lib, rest, 3)
		check(dev.SetLED(nums[0], nums[1], nums[2] != 0))
	case "clear-image":
		dev, nums := resolve(ctx, lib, rest, 1)
		check(dev.ClearImage(nums[0]))
	case "set-image":
		if len(rest) != 3 {
			fatalf("set-image wants <addr> <page> <frame.bin>")
		}
		dev, nums := resolve(ctx, lib, rest[:2], 1)
		frame, err := os.ReadFile(rest[2])
		if err != nil {
			fatalf("%v", err)
		}
		check(dev.SetImageData(nums[0], frame))
	case "save-file":
		if len(rest) != 4 {
			fatalf("save-file wants <addr> <page> <file-id> <path>")
		}
		dev, nums := resolve(ctx, lib, rest[:3], 2)
		f, err := os.Open(rest[3])
		if err != nil {
			fatalf("%v", err)
		}
		defer f.Close()
		check(dev.SaveFile(nums[0], nums[1], f))
	case "display-file":
		dev, nums := resolve(ctx, lib, rest, 3)
		check(dev.DisplayFile(nums[0], nums[1], nums[2]))
	case "delete-file":
		dev, nums := resolve(ctx, lib, rest, 2)
		check(dev.DeleteFile(nums[0], nums[1]))
	default:
		fatalf("unknown command %q", cmd)
	}
}

func cmdList(ctx context.Context, lib *fip.Library) {
	// Give workers a moment to finish session establishment.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && ctx.Err() == nil {
		if addrs := lib.Devices(); allReady(lib, addrs) && len(addrs) > 0 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	addrs := lib.Devices()
	if len(addrs) == 0 {
		fmt.Println("no panels found")
		return
	}
	for _, addr := range addrs {
		dev, _ := lib.Device(addr)
		if dev.Ready() {
			sn, _ := dev.SerialNumber()
			fmt.Printf("%s  ready  serial=%s\n", addr, sn)
		} else {
			fmt.Printf("%s  not ready\n", addr)
		}
	}
}

func allReady(lib *fip.Library, addrs []fip.Addr) bool {
	for _, addr := range addrs {
		if dev, ok := lib.Device(addr); !ok || !dev.Ready() {
			return false
		}
	}
	return true
}

func cmdWatch(ctx context.Context, lib *fip.Library) {
	lib.OnDeviceChange(func(addr fip.Addr, arrived bool) {
		if arrived {
			fmt.Printf("%s arrived\n", addr)
			if dev, ok := lib.Device(addr); ok {
				dev.OnButtons(func(b fipwire.Buttons) {
					fmt.Printf("%s buttons: %s\n", addr, b)
				})
			}
		} else {
			fmt.Printf("%s left\n", addr)
		}
	})
	for _, addr := range lib.Devices() {
		if dev, ok := lib.Device(addr); ok && dev.Ready() {
			a := addr
			dev.OnButtons(func(b fipwire.Buttons) {
				fmt.Printf("%s buttons: %s\n", a, b)
			})
		}
	}

	fmt.Println("watching, ^C to stop")
	<-ctx.Done()
}

// resolve parses <addr> plus n numeric arguments and waits for the
// panel to come up.
func resolve(ctx context.Context, lib *fip.Library, args []string, n int) (*fip.Device, []byte) {
	if len(args) != n+1 {
		fatalf("expected <addr> and %d numeric arguments", n)
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		fatalf("%v", err)
	}
	nums := make([]byte, n)
	for i, a := range args[1:] {
		v, err := strconv.ParseUint(a, 0, 8)
		if err != nil {
			fatalf("argument %q: %v", a, err)
		}
		nums[i] = byte(v)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		if dev, ok := lib.Device(addr); ok && dev.Ready() {
			return dev, nums
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			fatalf("panel %s is not ready", addr)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func parseAddr(s string) (fip.Addr, error) {
	bus, addr, ok := strings.Cut(s, "-")
	if !ok {
		return fip.Addr{}, fmt.Errorf("address %q: want bus-address, e.g. 001-004", s)
	}
	b, err := strconv.ParseUint(bus, 10, 8)
	if err != nil {
		return fip.Addr{}, fmt.Errorf("address %q: %v", s, err)
	}
	a, err := strconv.ParseUint(addr, 10, 8)
	if err != nil {
		return fip.Addr{}, fmt.Errorf("address %q: %v", s, err)
	}
	return fip.Addr{Bus: uint8(b), Address: uint8(a)}, nil
}

func check(err error) {
	if err == nil {
		return
	}
	var reqErr *fip.RequestError
	if errors.As(err, &reqErr) {
		fatalf("panel rejected the request: header_error=%d header_info=%d request_error=%d request_info=%d",
			reqErr.HeaderError, reqErr.HeaderInfo, reqErr.RequestError, reqErr.RequestInfo)
	}
	fatalf("%v", err)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fipctl: "+format+"\n", args...)
	os.Exit(1)
}
