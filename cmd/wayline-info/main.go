// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// wayline-info connects to a Wayland compositor, performs one
// roundtrip, and prints the compositor's global registry: every
// advertised global's numeric name, interface, and maximum version.
//
// The compositor is located through the standard environment protocol
// (WAYLAND_SOCKET, WAYLAND_DISPLAY, XDG_RUNTIME_DIR) unless --socket
// names a socket path directly.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/wayline/client"
	"github.com/bureau-foundation/wayline/lib/tui"
	"github.com/bureau-foundation/wayline/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var socketPath string
	var logLevel string

	flagSet := pflag.NewFlagSet("wayline-info", pflag.ContinueOnError)
	flagSet.StringVar(&socketPath, "socket", "", "compositor socket path (default: environment lookup)")
	flagSet.StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing to match the other wayline
	// binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("wayline-info %s\n", version.Info())
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	conn, err := connect(socketPath, client.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer conn.Close()

	// One roundtrip: the registry was bound at connect time, so by the
	// time the sync callback fires every initial global announcement
	// has been dispatched.
	if err := conn.Roundtrip(ctx); err != nil {
		return err
	}

	printGlobals(conn.Globals())
	return nil
}

func connect(socketPath string, options client.Options) (*client.Conn, error) {
	if socketPath != "" {
		return client.ConnectPath(socketPath, options)
	}
	return client.Connect(options)
}

// printGlobals writes one line per global, sorted by numeric name.
// Styled columns on a terminal, plain tab-separated text otherwise.
func printGlobals(globals []client.Global) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		for _, global := range globals {
			fmt.Printf("%d\t%s\t%d\n", global.Name, global.Interface, global.Version)
		}
		return
	}

	theme := tui.DefaultTheme

	// Column widths track the data; names and versions are small
	// integers in practice but nothing guarantees it.
	nameWidth := len("NAME")
	interfaceWidth := len("INTERFACE")
	for _, global := range globals {
		if width := len(strconv.FormatUint(uint64(global.Name), 10)); width > nameWidth {
			nameWidth = width
		}
		if width := len(global.Interface); width > interfaceWidth {
			interfaceWidth = width
		}
	}

	headerStyle := lipgloss.NewStyle().Foreground(theme.HeaderForeground).Bold(true)
	nameStyle := lipgloss.NewStyle().Width(nameWidth + 2).Foreground(theme.ObjectID)
	interfaceStyle := lipgloss.NewStyle().Width(interfaceWidth + 2).Foreground(theme.InterfaceName)
	versionStyle := lipgloss.NewStyle().Foreground(theme.FaintText)

	fmt.Println(
		headerStyle.Width(nameWidth+2).Render("NAME") +
			headerStyle.Width(interfaceWidth+2).Render("INTERFACE") +
			headerStyle.Render("VERSION"))
	for _, global := range globals {
		fmt.Println(
			nameStyle.Render(strconv.FormatUint(uint64(global.Name), 10)) +
				interfaceStyle.Render(global.Interface) +
				versionStyle.Render(strconv.FormatUint(uint64(global.Version), 10)))
	}
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
	fmt.Fprintf(os.Stderr, `wayline-info — print a Wayland compositor's global registry.

Connects to the compositor, waits for the initial burst of global
announcements, and prints one line per advertised global: numeric
name, interface, and the maximum version the compositor supports.

The compositor socket is found through WAYLAND_SOCKET, WAYLAND_DISPLAY,
and XDG_RUNTIME_DIR, the same lookup every Wayland client performs.
Set WAYLAND_DEBUG=1 together with --log-level debug to see the wire
traffic.

Usage:
  wayline-info [flags]

Examples:
  # Print the registry of the default compositor
  wayline-info

  # Print a specific compositor's registry, plain output
  wayline-info --socket /run/user/1000/wayland-1 | sort -k2

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
