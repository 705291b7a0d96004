// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/wayline/client"
	"github.com/bureau-foundation/wayline/lib/tui"
)

const (
	// tailLimit bounds the rolling event tail held in memory.
	tailLimit = 1000
	// counterPaneWidth is the fixed width of the per-interface
	// counter column on the right.
	counterPaneWidth = 30
)

// scopeLabels is the static chrome of the TUI header.
type scopeLabels struct {
	socket  string
	capture string
}

func monitorLabels(socketPath, capturePath string) scopeLabels {
	socket := socketPath
	if socket == "" {
		socket = os.Getenv("WAYLAND_DISPLAY")
		if socket == "" {
			socket = "wayland-0"
		}
	}
	return scopeLabels{socket: socket, capture: capturePath}
}

// rowMsg delivers one monitor row from the dispatch goroutine.
type rowMsg struct {
	row eventRow
}

// streamClosedMsg reports that the dispatch goroutine ended, either
// through the context or a connection failure.
type streamClosedMsg struct{}

// heatTickMsg drives the heat decay animation.
type heatTickMsg struct{}

// runTUI owns the full-screen display mode. The connection is handed
// to a dispatch goroutine for the program's lifetime; decoded rows
// cross to the TUI over a channel, and the goroutine is joined before
// returning so the caller can close the connection safely.
func runTUI(ctx context.Context, conn *client.Conn, emit *func(row eventRow), bound []client.Object, labels scopeLabels) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rows := make(chan eventRow, 256)
	*emit = func(row eventRow) { rows <- row }

	dispatchErr := make(chan error, 1)
	go func() {
		defer close(rows)
		for {
			if _, err := conn.Dispatch(ctx); err != nil {
				dispatchErr <- err
				return
			}
		}
	}()

	program := tea.NewProgram(newScopeModel(rows, bound, labels), tea.WithAltScreen())
	_, runErr := program.Run()

	// Stop the dispatcher and drain so a blocked row send cannot
	// deadlock the join.
	cancel()
	for range rows {
	}
	err := <-dispatchErr

	if runErr != nil {
		return runErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

type scopeModel struct {
	theme  tui.Theme
	rows   <-chan eventRow
	labels scopeLabels

	viewport viewport.Model
	tail     []string
	// follow keeps the viewport pinned to the newest event; scrolling
	// up releases it, G re-engages it.
	follow bool

	counters    map[string]int
	names       []string
	heat        *tui.HeatTracker
	tickRunning bool

	eventCount int
	width      int
	height     int
	ready      bool
}

func newScopeModel(rows <-chan eventRow, bound []client.Object, labels scopeLabels) scopeModel {
	counters := make(map[string]int)
	var names []string
	for _, obj := range bound {
		name := obj.Interface().Name
		if _, seen := counters[name]; !seen {
			counters[name] = 0
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return scopeModel{
		theme:    tui.DefaultTheme,
		rows:     rows,
		labels:   labels,
		follow:   true,
		counters: counters,
		names:    names,
		heat:     tui.NewHeatTracker(),
	}
}

// Init implements tea.Model. Starts listening for monitor rows.
func (model scopeModel) Init() tea.Cmd {
	return listenForRow(model.rows)
}

// listenForRow returns a tea.Cmd that blocks until a row arrives from
// the dispatch goroutine, then delivers it as a rowMsg.
func listenForRow(rows <-chan eventRow) tea.Cmd {
	return func() tea.Msg {
		row, ok := <-rows
		if !ok {
			return streamClosedMsg{}
		}
		return rowMsg{row: row}
	}
}

// Update implements tea.Model.
func (model scopeModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.viewport.Width = model.tailWidth()
		model.viewport.Height = model.bodyHeight()
		model.refreshTail()
		model.ready = true
		return model, nil

	case tea.KeyMsg:
		switch message.String() {
		case "q", "ctrl+c":
			return model, tea.Quit
		case "g":
			model.follow = false
			model.viewport.GotoTop()
			return model, nil
		case "G":
			model.follow = true
			model.viewport.GotoBottom()
			return model, nil
		}
		var command tea.Cmd
		model.viewport, command = model.viewport.Update(message)
		model.follow = model.viewport.AtBottom()
		return model, command

	case rowMsg:
		return model.handleRow(message.row)

	case streamClosedMsg:
		return model, tea.Quit

	case heatTickMsg:
		if model.heat.HasHot(time.Now()) {
			return model, scheduleHeatTick()
		}
		model.tickRunning = false
		return model, nil
	}
	return model, nil
}

// handleRow folds one monitor row into the tail, the counters, and
// the heat animation, then re-arms the channel listener.
func (model scopeModel) handleRow(row eventRow) (tea.Model, tea.Cmd) {
	now := time.Now()
	model.eventCount++

	key := row.interfaceName
	if _, seen := model.counters[key]; !seen {
		model.names = append(model.names, key)
		slices.Sort(model.names)
	}
	model.counters[key]++

	kind := tui.HeatPut
	if row.kind == rowRemove {
		kind = tui.HeatRemove
	}
	model.heat.Ignite(key, kind, now)

	model.tail = append(model.tail, renderLine(model.theme, true, row))
	if len(model.tail) > tailLimit {
		model.tail = model.tail[len(model.tail)-tailLimit:]
	}
	model.refreshTail()

	commands := []tea.Cmd{listenForRow(model.rows)}
	if !model.tickRunning {
		model.tickRunning = true
		commands = append(commands, scheduleHeatTick())
	}
	return model, tea.Batch(commands...)
}

// scheduleHeatTick returns a tea.Cmd that sends a heatTickMsg after
// the animation tick interval.
func scheduleHeatTick() tea.Cmd {
	return tea.Tick(tui.HeatTickInterval, func(time.Time) tea.Msg {
		return heatTickMsg{}
	})
}

// refreshTail rebuilds the viewport content from the tail, truncating
// each line to the current width.
func (model *scopeModel) refreshTail() {
	width := model.viewport.Width
	if width <= 0 {
		return
	}
	lines := make([]string, len(model.tail))
	for index, line := range model.tail {
		lines[index] = ansi.Truncate(line, width, "…")
	}
	model.viewport.SetContent(strings.Join(lines, "\n"))
	if model.follow {
		model.viewport.GotoBottom()
	}
}

// bodyHeight is the height available to the panes: total minus the
// header and footer lines.
func (model scopeModel) bodyHeight() int {
	height := model.height - 2
	if height < 1 {
		height = 1
	}
	return height
}

// tailWidth is the width available to the event tail: total minus
// the counter pane, the scrollbar column, and their separators.
func (model scopeModel) tailWidth() int {
	width := model.width - counterPaneWidth - 3
	if width < 20 {
		width = 20
	}
	return width
}

// View implements tea.Model.
func (model scopeModel) View() string {
	if !model.ready {
		return "starting…"
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		model.viewport.View(),
		" ",
		tui.RenderScrollbar(model.theme, model.viewport.Height,
			model.viewport.TotalLineCount(), model.viewport.Height,
			model.viewport.YOffset, model.follow),
		" ",
		model.renderCounters(),
	)
	footer := lipgloss.NewStyle().Foreground(model.theme.HelpText).
		Render(" q quit   ↑/↓ scroll   g/G top/follow")
	return model.renderHeader() + "\n" + body + "\n" + footer
}

func (model scopeModel) renderHeader() string {
	titleStyle := lipgloss.NewStyle().Foreground(model.theme.Accent).Bold(true)
	infoStyle := lipgloss.NewStyle().Foreground(model.theme.FaintText)
	header := titleStyle.Render(" wayline-scope ") +
		infoStyle.Render(model.labels.socket)
	if model.labels.capture != "" {
		header += infoStyle.Render("  capture: " + model.labels.capture)
	}
	header += infoStyle.Render(fmt.Sprintf("  %d events", model.eventCount))
	return lipgloss.NewStyle().Width(model.width).MaxWidth(model.width).Render(header)
}

// renderCounters draws the right-hand pane: one row per interface
// with its event count, heat-tinted while recently active.
func (model scopeModel) renderCounters() string {
	const countWidth = 8
	nameWidth := counterPaneWidth - countWidth

	headerStyle := lipgloss.NewStyle().
		Foreground(model.theme.HeaderForeground).Bold(true)
	nameStyle := lipgloss.NewStyle().
		Width(nameWidth).MaxWidth(nameWidth).
		Foreground(model.theme.InterfaceName)
	countStyle := lipgloss.NewStyle().
		Width(countWidth).Align(lipgloss.Right).
		Foreground(model.theme.NormalText)

	rows := make([]string, 0, len(model.names)+1)
	rows = append(rows, headerStyle.Width(counterPaneWidth).Render("INTERFACE"))

	now := time.Now()
	for _, name := range model.names {
		row := nameStyle.Render(ansi.Truncate(name, nameWidth, "…")) +
			countStyle.Render(strconv.Itoa(model.counters[name]))
		// Heat tint for recently-active interfaces.
		if heat := model.heat.Heat(name, now); heat > 0 {
			accent := model.theme.HotAccentPut
			if model.heat.Kind(name) == tui.HeatRemove {
				accent = model.theme.HotAccentRemove
			}
			row = lipgloss.NewStyle().Background(accent).
				Width(counterPaneWidth).MaxWidth(counterPaneWidth).
				Render(row)
		}
		rows = append(rows, row)
	}

	// Pad so the pane fills the body height and the layout holds.
	for len(rows) < model.bodyHeight() {
		rows = append(rows, "")
	}
	if len(rows) > model.bodyHeight() {
		rows = rows[:model.bodyHeight()]
	}
	return strings.Join(rows, "\n")
}
