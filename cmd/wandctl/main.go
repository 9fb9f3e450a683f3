// Command wandctl is an operator tool for motion wands: enumerate connected
// devices, watch hot-plug events, drive one wand's LED and rumble, or scan the
// raw USB bus.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/karalabe/usb"

	"github.com/moveparty/wand/internal/hid"
	"github.com/moveparty/wand/internal/hotplug"
	"github.com/moveparty/wand/pkg/wand"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: wandctl [flags] <command>

commands:
  list       enumerate connected wands
  watch      stream hot-plug events until interrupted
  glow       drive the first wand's LED/rumble and echo its input
  usb-scan   list raw USB devices on the bus

flags:
`)
	flag.PrintDefaults()
}

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file")
		verbose    = flag.Bool("v", false, "enable debug logging")
	)
	flag.Usage = usage
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "wandctl:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd := flag.Arg(0); cmd {
	case "list":
		err = runList(cfg)
	case "watch":
		err = runWatch(ctx, cfg)
	case "glow":
		err = runGlow(ctx, cfg, flag.Args()[1:])
	case "usb-scan":
		err = runUSBScan(cfg)
	default:
		fmt.Fprintf(os.Stderr, "wandctl: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "wandctl:", err)
		os.Exit(1)
	}
}

func runList(cfg Config) error {
	mgr, err := hid.NewRawManager()
	if err != nil {
		return err
	}

	var total int
	for _, pid := range cfg.ProductIDs {
		infos, err := mgr.List(cfg.VendorID, pid)
		if err != nil {
			return err
		}
		for _, info := range infos {
			fmt.Printf("%s  %04x:%04x  serial=%s  product=%q\n",
				info.Path, info.VendorID, info.ProductID, info.Serial, info.Product)
			total++
		}
	}
	if total == 0 {
		fmt.Println("no wands connected")
	}
	return nil
}

func runWatch(ctx context.Context, cfg Config) error {
	initial, mon, err := hotplug.Start(cfg.VendorID, cfg.ProductIDs...)
	if err != nil {
		return err
	}
	defer mon.Close()

	for _, d := range initial {
		fmt.Printf("present  %s  %04x:%04x  bus=%s  address=%s\n",
			d.Path, d.VendorID, d.ProductID, d.Bus, d.Address)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-mon.Events():
			if !ok {
				return nil
			}
			switch ev.Type {
			case hotplug.Added:
				fmt.Printf("added    %s  %04x:%04x  bus=%s  address=%s\n",
					ev.Path, ev.Device.VendorID, ev.Device.ProductID, ev.Device.Bus, ev.Device.Address)
			case hotplug.Removed:
				fmt.Printf("removed  %s\n", ev.Path)
			}
		}
	}
}

func runGlow(ctx context.Context, cfg Config, args []string) error {
	fs := flag.NewFlagSet("glow", flag.ExitOnError)
	var (
		colorHex = fs.String("color", "4040ff", "LED color as RRGGBB hex")
		rumble   = fs.Uint("rumble", 0, "rumble intensity 0-255")
	)
	fs.Parse(args)

	rgb, err := strconv.ParseUint(*colorHex, 16, 24)
	if err != nil {
		return fmt.Errorf("illegal color %q: %w", *colorHex, err)
	}
	fb := wand.Feedback{
		R:      uint8(rgb >> 16),
		G:      uint8(rgb >> 8),
		B:      uint8(rgb),
		Rumble: uint8(*rumble),
	}

	mgr, err := hid.NewRawManager()
	if err != nil {
		return err
	}
	mgr.ReadTimeout = cfg.Timeout

	ctrl, err := openFirst(mgr, cfg)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	fmt.Printf("connected %s (serial %s, battery %s)\n", ctrl.Path(), ctrl.Serial(), ctrl.Battery())

	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()

	var prev wand.Buttons
	for {
		select {
		case <-ctx.Done():
			// Wand dark on the way out.
			ctrl.SendFeedback(wand.Feedback{})
			return nil
		case <-ticker.C:
			if err := ctrl.SendFeedback(fb); err != nil {
				return err
			}
			if err := ctrl.Poll(); err != nil {
				slog.Warn("poll failed", slog.Any("error", err))
				continue
			}
			in := ctrl.Input()
			if in.Buttons != prev {
				fmt.Printf("buttons: %+v\n", in.Buttons)
				prev = in.Buttons
			}
		}
	}
}

func openFirst(mgr *hid.RawManager, cfg Config) (*wand.Controller, error) {
	for _, pid := range cfg.ProductIDs {
		infos, err := mgr.List(cfg.VendorID, pid)
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			dev, err := mgr.Open(info.Path)
			if err != nil {
				slog.Warn("open failed", slog.String("path", info.Path), slog.Any("error", err))
				continue
			}
			ctrl, err := wand.Connect(dev, info.Path)
			if err != nil {
				dev.Close()
				slog.Warn("connect failed", slog.String("path", info.Path), slog.Any("error", err))
				continue
			}
			return ctrl, nil
		}
	}
	return nil, fmt.Errorf("no wand found for %04x", cfg.VendorID)
}

func runUSBScan(cfg Config) error {
	if !usb.Supported() {
		return fmt.Errorf("raw USB access not supported on this platform")
	}

	infos, err := usb.Enumerate(0, 0)
	if err != nil {
		return fmt.Errorf("usb enumerate: %w", err)
	}
	for _, info := range infos {
		marker := " "
		if info.VendorID == cfg.VendorID {
			marker = "*"
		}
		fmt.Printf("%s %04x:%04x  %-24q %-24q serial=%s\n",
			marker, info.VendorID, info.ProductID, info.Manufacturer, info.Product, info.Serial)
	}
	fmt.Printf("%d devices (* = matching vendor)\n", len(infos))
	return nil
}
