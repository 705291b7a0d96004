// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui provides shared terminal user interface pieces for
// Wayline's interactive tools: a common color theme, a scrollbar
// column for viewport panes, and heat tracking for animated activity
// highlighting.
//
// The tools own their own data sources, layout, and rendering; this
// package only keeps their look consistent: same palette, same
// scrollbar, same decay animation.
package tui
