// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// wayline-dump prints the contents of a wayline capture file.
//
// The capture's integrity trailer is verified before anything is
// printed; a corrupted or truncated file fails as a whole rather
// than dumping partial garbage.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/wayline/lib/codec"
	"github.com/bureau-foundation/wayline/lib/tui"
	"github.com/bureau-foundation/wayline/lib/version"
	"github.com/bureau-foundation/wayline/trace"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var asJSON bool
	var asDiag bool

	flagSet := pflag.NewFlagSet("wayline-dump", pflag.ContinueOnError)
	flagSet.BoolVar(&asJSON, "json", false, "print records as JSON, one object per line")
	flagSet.BoolVar(&asDiag, "cbor-diag", false, "print records in CBOR diagnostic notation")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing to match the other wayline
	// binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("wayline-dump %s\n", version.Info())
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
	if asJSON && asDiag {
		return fmt.Errorf("--json and --cbor-diag are mutually exclusive")
	}

	arguments := flagSet.Args()
	if len(arguments) != 1 {
		printHelp(flagSet)
		return fmt.Errorf("exactly one capture file argument required")
	}

	file, err := os.Open(arguments[0])
	if err != nil {
		return err
	}
	defer file.Close()

	reader, err := trace.NewReader(file)
	if err != nil {
		return err
	}

	var print func(record trace.Record) error
	switch {
	case asJSON:
		print = printJSON
	case asDiag:
		print = printDiag
	default:
		print = newTextPrinter()
	}

	for {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := print(record); err != nil {
			return err
		}
	}
}

// jsonRecord mirrors the capture record's field names for JSON
// output. The capture stores CBOR; the wire format is the contract,
// so the JSON keys follow its names.
type jsonRecord struct {
	Time      int64    `json:"time"`
	Direction string   `json:"direction"`
	Object    uint32   `json:"object"`
	Interface string   `json:"interface"`
	Version   uint32   `json:"version"`
	Opcode    uint16   `json:"opcode"`
	Message   string   `json:"message"`
	Size      int      `json:"size"`
	Args      []string `json:"args,omitempty"`
}

func printJSON(record trace.Record) error {
	encoded, err := json.Marshal(jsonRecord(record))
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

// printDiag re-encodes the record with the capture's deterministic
// codec and prints the diagnostic notation of the resulting bytes,
// which are identical to the bytes stored in the capture.
func printDiag(record trace.Record) error {
	encoded, err := codec.Marshal(record)
	if err != nil {
		return err
	}
	diagnostic, err := codec.Diagnose(encoded)
	if err != nil {
		return err
	}
	fmt.Println(diagnostic)
	return nil
}

// newTextPrinter formats records like the classic WAYLAND_DEBUG
// lines, prefixed with the capture timestamp. Styled on a terminal,
// plain otherwise.
func newTextPrinter() func(record trace.Record) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return func(record trace.Record) error {
			fmt.Printf("[%s] %s %s@%d.%s(%s)\n",
				formatTime(record.Time), arrow(record.Direction),
				record.Interface, record.Object, record.Message,
				strings.Join(record.Args, ", "))
			return nil
		}
	}

	theme := tui.DefaultTheme
	timeStyle := lipgloss.NewStyle().Foreground(theme.FaintText)
	interfaceStyle := lipgloss.NewStyle().Foreground(theme.InterfaceName)
	objectStyle := lipgloss.NewStyle().Foreground(theme.ObjectID)
	argumentStyle := lipgloss.NewStyle().Foreground(theme.ArgumentText)

	return func(record trace.Record) error {
		outbound := record.Direction == "outbound"
		arrowStyle := lipgloss.NewStyle().Foreground(theme.DirectionColor(outbound))
		line := timeStyle.Render("["+formatTime(record.Time)+"]") +
			" " + arrowStyle.Render(arrow(record.Direction)) +
			" " + interfaceStyle.Render(record.Interface) +
			objectStyle.Render(fmt.Sprintf("@%d", record.Object)) +
			"." + record.Message +
			argumentStyle.Render("("+strings.Join(record.Args, ", ")+")")
		fmt.Println(line)
		return nil
	}
}

func arrow(direction string) string {
	if direction == "outbound" {
		return "->"
	}
	return "<-"
}

func formatTime(unixNano int64) string {
	return time.Unix(0, unixNano).Format("15:04:05.000000")
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `wayline-dump — print the records of a wayline capture file.

Captures are written by wayline-scope --capture (or any program using
the trace package's Recorder). The file's keyed integrity trailer is
verified before printing; tampered or truncated captures are rejected.

By default records print as classic protocol trace lines. --json
emits one JSON object per record for scripting; --cbor-diag shows
each record in CBOR diagnostic notation, byte-faithful to what the
capture stores.

Usage:
  wayline-dump [flags] <file.wcap>

Examples:
  # Human-readable dump
  wayline-dump session.wcap

  # Count events per interface
  wayline-dump --json session.wcap | jq -r .interface | sort | uniq -c

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
