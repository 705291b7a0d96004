// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// wayline-scope is a live Wayland event monitor. It connects to a
// compositor, binds the globals it has protocol descriptors for, and
// streams every decoded event as it arrives: colored trace lines by
// default, or a full-screen terminal UI with --tui.
//
// The core protocol (wl_display, wl_registry, wl_callback) is built
// in; descriptors for everything else come from YAML description
// files loaded with --protocol. Traffic can simultaneously be written
// to a capture file for later inspection with wayline-dump.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/wayline/client"
	"github.com/bureau-foundation/wayline/lib/tui"
	"github.com/bureau-foundation/wayline/lib/version"
	"github.com/bureau-foundation/wayline/protocol"
	"github.com/bureau-foundation/wayline/trace"
	"github.com/bureau-foundation/wayline/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		socketPath    string
		protocolPaths []string
		bindSpecs     []string
		capturePath   string
		compressName  string
		duration      time.Duration
		useTUI        bool
		logLevel      string
	)

	flagSet := pflag.NewFlagSet("wayline-scope", pflag.ContinueOnError)
	flagSet.StringVar(&socketPath, "socket", "", "compositor socket path (default: environment lookup)")
	flagSet.StringArrayVar(&protocolPaths, "protocol", nil, "protocol description file or directory (repeatable)")
	flagSet.StringArrayVar(&bindSpecs, "bind", nil, "global to bind as interface[@version] (repeatable; default: every global with a descriptor)")
	flagSet.StringVar(&capturePath, "capture", "", "write all traffic to this capture file")
	flagSet.StringVar(&compressName, "compress", "zstd", "capture compression (none, lz4, zstd)")
	flagSet.DurationVar(&duration, "duration", 0, "stop after this long (0: run until interrupted)")
	flagSet.BoolVar(&useTUI, "tui", false, "full-screen live view instead of line output")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing to match the other wayline
	// binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("wayline-scope %s\n", version.Info())
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if arguments := flagSet.Args(); len(arguments) > 0 {
		return fmt.Errorf("unexpected argument: %s", arguments[0])
	}

	logger, err := newLogger(logLevel)
	if err != nil {
		return err
	}

	descriptors, err := loadDescriptors(protocolPaths)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	options := client.Options{Logger: logger}
	if useTUI {
		// Stderr writes would corrupt the alt-screen display.
		options.Logger = slog.New(slog.DiscardHandler)
	}

	// The emit sink is assigned per display mode below, before any
	// event can reach the default handler.
	var emit func(row eventRow)
	options.DefaultHandler = func(conn *client.Conn, event client.Event) {
		if emit != nil {
			emit(makeRow(event))
		}
	}

	var recorder *trace.Recorder
	var captureFile *os.File
	if capturePath != "" {
		compression, err := trace.ParseCompression(compressName)
		if err != nil {
			return err
		}
		captureFile, err = os.Create(capturePath)
		if err != nil {
			return err
		}
		defer captureFile.Close()
		recorder, err = trace.NewRecorder(captureFile, compression)
		if err != nil {
			return err
		}
		options.Tracer = recorder
	}

	conn, err := connect(socketPath, options)
	if err != nil {
		return err
	}
	defer conn.Close()

	// First roundtrip collects the initial burst of global
	// announcements so there is something to bind against.
	if err := conn.Roundtrip(ctx); err != nil {
		return err
	}

	bound, err := bindGlobals(conn, descriptors, bindSpecs)
	if err != nil {
		return err
	}
	if len(bound) == 0 {
		return fmt.Errorf("nothing to monitor: no advertised global has a loaded descriptor (load some with --protocol)")
	}

	// Registry changes during monitoring show up in the stream too.
	conn.ObserveRegistry(func(conn *client.Conn, event client.RegistryEvent) {
		if emit == nil {
			return
		}
		kind := rowAnnounce
		if event.Removed {
			kind = rowRemove
		}
		emit(eventRow{
			interfaceName: event.Global.Interface,
			kind:          kind,
			message:       "global",
			args: fmt.Sprintf("name %d, v%d",
				event.Global.Name, event.Global.Version),
		})
	})

	// Push the bind requests out before watching.
	if err := conn.Flush(ctx); err != nil {
		return err
	}

	if useTUI {
		err = runTUI(ctx, conn, &emit, bound, monitorLabels(socketPath, capturePath))
	} else {
		err = runLines(ctx, conn, &emit, bound)
	}

	if recorder != nil {
		if closeErr := recorder.Close(); closeErr != nil {
			if err == nil {
				err = closeErr
			}
		} else {
			logger.Info("capture written",
				"path", capturePath, "records", recorder.Count())
		}
	}
	return err
}

func connect(socketPath string, options client.Options) (*client.Conn, error) {
	if socketPath != "" {
		return client.ConnectPath(socketPath, options)
	}
	return client.Connect(options)
}

// rowKind classifies a monitor row for rendering and heat.
type rowKind uint8

const (
	rowEvent rowKind = iota
	rowAnnounce
	rowRemove
)

// eventRow is one decoded monitor entry, independent of how the
// active display mode renders it.
type eventRow struct {
	interfaceName string
	object        uint32
	message       string
	args          string
	kind          rowKind
}

// makeRow flattens a decoded event. File descriptor arguments are
// owned by the handler; they render as "fd N" and close here.
func makeRow(event client.Event) eventRow {
	parts := make([]string, len(event.Args))
	for index, arg := range event.Args {
		parts[index] = fmt.Sprint(arg)
		if fd, ok := arg.(wire.FD); ok && fd.File != nil {
			fd.File.Close()
		}
	}
	return eventRow{
		interfaceName: event.Object.Interface().Name,
		object:        uint32(event.Object.ID()),
		message:       event.Name,
		args:          strings.Join(parts, ", "),
	}
}

// loadDescriptors loads every --protocol path (file or directory)
// into one interface set. The same interface arriving from two loads
// is an error; within a single directory LoadDir already rejects it.
func loadDescriptors(paths []string) (map[string]*wire.Interface, error) {
	loaded := make(map[string]*wire.Interface)
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		var interfaces []*wire.Interface
		if info.IsDir() {
			interfaces, err = protocol.LoadDir(path)
		} else {
			interfaces, err = protocol.LoadFile(path)
		}
		if err != nil {
			return nil, err
		}
		for _, iface := range interfaces {
			if _, duplicate := loaded[iface.Name]; duplicate {
				return nil, fmt.Errorf("interface %s loaded twice (last from %s)", iface.Name, path)
			}
			loaded[iface.Name] = iface
		}
	}
	return loaded, nil
}

// parseBindSpec splits an interface[@version] bind argument. Version
// 0 means negotiate (the advertised and descriptor maximum).
func parseBindSpec(spec string) (string, uint32, error) {
	name, versionText, explicit := strings.Cut(spec, "@")
	if name == "" {
		return "", 0, fmt.Errorf("invalid bind %q: empty interface", spec)
	}
	if !explicit {
		return name, 0, nil
	}
	parsed, err := strconv.ParseUint(versionText, 10, 32)
	if err != nil || parsed == 0 {
		return "", 0, fmt.Errorf("invalid bind %q: version must be a positive integer", spec)
	}
	return name, uint32(parsed), nil
}

// bindGlobals binds the monitored objects. With no explicit specs,
// every advertised global that has a descriptor is bound (including
// each instance of multi-instance globals like wl_output) at the
// highest version both sides support.
func bindGlobals(conn *client.Conn, descriptors map[string]*wire.Interface, specs []string) ([]client.Object, error) {
	type target struct {
		global  client.Global
		iface   *wire.Interface
		version uint32
	}
	var targets []target

	if len(specs) == 0 {
		for _, global := range conn.Globals() {
			iface, ok := descriptors[global.Interface]
			if !ok {
				continue
			}
			targets = append(targets, target{global, iface, min(global.Version, iface.Version)})
		}
	} else {
		globalsByInterface := make(map[string]client.Global)
		for _, global := range conn.Globals() {
			globalsByInterface[global.Interface] = global
		}
		for _, spec := range specs {
			name, specVersion, err := parseBindSpec(spec)
			if err != nil {
				return nil, err
			}
			iface, ok := descriptors[name]
			if !ok {
				return nil, fmt.Errorf("no descriptor for %s (load one with --protocol)", name)
			}
			global, ok := globalsByInterface[name]
			if !ok {
				return nil, fmt.Errorf("compositor does not advertise %s", name)
			}
			if specVersion == 0 {
				specVersion = min(global.Version, iface.Version)
			}
			targets = append(targets, target{global, iface, specVersion})
		}
	}

	bound := make([]client.Object, 0, len(targets))
	for _, t := range targets {
		obj, err := conn.BindGlobal(t.global, t.iface, t.version)
		if err != nil {
			return nil, err
		}
		bound = append(bound, obj)
	}
	return bound, nil
}

// runLines is the default display mode: one line per event on stdout
// until the context ends or the connection dies.
func runLines(ctx context.Context, conn *client.Conn, emit *func(row eventRow), bound []client.Object) error {
	styled := term.IsTerminal(int(os.Stdout.Fd()))
	theme := tui.DefaultTheme
	for _, obj := range bound {
		line := fmt.Sprintf("monitoring %s v%d", obj, obj.Version())
		if styled {
			line = lipgloss.NewStyle().Foreground(theme.FaintText).Render(line)
		}
		fmt.Println(line)
	}

	*emit = func(row eventRow) {
		fmt.Println(renderLine(theme, styled, row))
	}

	for {
		if _, err := conn.Dispatch(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// renderLine formats one row in the classic trace shape,
// wl_pointer@12.motion(...), with registry changes as +/- lines.
func renderLine(theme tui.Theme, styled bool, row eventRow) string {
	switch row.kind {
	case rowAnnounce, rowRemove:
		marker := "+"
		color := theme.Inbound
		if row.kind == rowRemove {
			marker = "-"
			color = theme.ErrorText
		}
		line := fmt.Sprintf("%s global %s (%s)", marker, row.interfaceName, row.args)
		if styled {
			return lipgloss.NewStyle().Foreground(color).Render(line)
		}
		return line
	}

	if !styled {
		return fmt.Sprintf("%s@%d.%s(%s)", row.interfaceName, row.object, row.message, row.args)
	}
	return lipgloss.NewStyle().Foreground(theme.InterfaceName).Render(row.interfaceName) +
		lipgloss.NewStyle().Foreground(theme.ObjectID).Render("@"+strconv.FormatUint(uint64(row.object), 10)) +
		"." + row.message +
		lipgloss.NewStyle().Foreground(theme.ArgumentText).Render("("+row.args+")")
}

// newLogger builds the stderr logger: human-readable text on a
// terminal, JSON when piped.
func newLogger(levelName string) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", levelName, err)
	}
	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler), nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `wayline-scope — live Wayland event monitor.

Connects to the compositor, binds globals, and prints every event the
compositor sends on them as it arrives. The core protocol is built in;
bindable interfaces need a YAML protocol description loaded with
--protocol (a file, or a directory of descriptions that may reference
each other).

By default every advertised global with a loaded descriptor is bound
at the highest version both sides support. --bind narrows monitoring
to specific interfaces, optionally pinning a version.

--capture additionally records all traffic (both directions, with
timestamps) to an integrity-checked capture file for wayline-dump.

Usage:
  wayline-scope [flags]

Examples:
  # Monitor everything described in a protocol directory
  wayline-scope --protocol ./protocols

  # Watch seat input only, at seat version 7
  wayline-scope --protocol ./protocols --bind wl_seat@7

  # Record ten seconds of traffic for later analysis
  wayline-scope --protocol ./protocols --capture session.wcap --duration 10s

  # Full-screen live view
  wayline-scope --protocol ./protocols --tui

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
