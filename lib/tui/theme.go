// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color palette for Wayline's terminal output. All
// colors use lipgloss ANSI 256-color codes for broad terminal
// compatibility.
//
// The fields cover universal chrome (text, selection, borders) and the
// semantic categories of protocol traffic: message direction, object
// identity, and error states.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Selected row.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Message directions.
	Outbound lipgloss.Color
	Inbound  lipgloss.Color

	// Protocol identity: interface names and object identifiers.
	InterfaceName lipgloss.Color
	ObjectID      lipgloss.Color

	// Argument payloads.
	ArgumentText lipgloss.Color

	// Error states: protocol errors, poisoned connections.
	ErrorText lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color
	Accent           lipgloss.Color

	// Animation accents: background tint for recently-active rows.
	// HotAccentPut is used for fresh activity; HotAccentRemove for
	// things leaving the view (globals removed, objects destroyed).
	HotAccentPut    lipgloss.Color
	HotAccentRemove lipgloss.Color
}

// DirectionColor returns the color for a message direction.
func (theme Theme) DirectionColor(outbound bool) lipgloss.Color {
	if outbound {
		return theme.Outbound
	}
	return theme.Inbound
}

// DefaultTheme is the built-in dark-terminal color scheme. Designed
// for 256-color terminals with a dark background (the common case for
// development environments and tmux sessions).
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	Outbound: lipgloss.Color("208"), // orange, requests leaving
	Inbound:  lipgloss.Color("114"), // green, events arriving

	InterfaceName: lipgloss.Color("75"),  // blue
	ObjectID:      lipgloss.Color("141"), // light purple
	ArgumentText:  lipgloss.Color("252"),

	ErrorText: lipgloss.Color("196"), // bright red

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),
	Accent:           lipgloss.Color("220"), // amber

	HotAccentPut:    lipgloss.Color("58"), // dark amber background tint
	HotAccentRemove: lipgloss.Color("52"), // dark red background tint
}
