// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/bureau-foundation/protoclient/lib/codec"
)

// Format selects how a command writes its result.
type Format string

const (
	// FormatText is styled human-readable output.
	FormatText Format = "text"
	// FormatJSON is indented JSON.
	FormatJSON Format = "json"
	// FormatCBOR is Core Deterministic CBOR, for piping into other tools.
	FormatCBOR Format = "cbor"
)

// ParseFormat validates a --format value.
func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatCBOR:
		return Format(value), nil
	}
	return "", Usage("unknown format %q (want text, json or cbor)", value)
}

// Output writes command results in the selected format.
type Output struct {
	Writer io.Writer
	Format Format
	Styles Styles
}

// NewOutput returns an Output on stdout. Text styling is enabled only
// when stdout is a terminal.
func NewOutput(format string) (*Output, error) {
	parsed, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return &Output{
		Writer: os.Stdout,
		Format: parsed,
		Styles: NewStyles(term.IsTerminal(int(os.Stdout.Fd()))),
	}, nil
}

// Emit writes value when the format is JSON or CBOR and reports true.
// For text output it writes nothing and returns false, leaving the
// rendering to the caller. Nil slices are written as empty lists.
func (o *Output) Emit(value any) (bool, error) {
	value = normalizeNilSlice(value)
	switch o.Format {
	case FormatJSON:
		encoder := json.NewEncoder(o.Writer)
		encoder.SetIndent("", "  ")
		return true, encoder.Encode(value)
	case FormatCBOR:
		if err := codec.NewEncoder(o.Writer).Encode(value); err != nil {
			return true, fmt.Errorf("encoding cbor: %w", err)
		}
		return true, nil
	}
	return false, nil
}

// Printf writes formatted text output.
func (o *Output) Printf(format string, args ...any) {
	fmt.Fprintf(o.Writer, format, args...)
}

func normalizeNilSlice(value any) any {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Slice && v.IsNil() {
		return reflect.MakeSlice(v.Type(), 0, 0).Interface()
	}
	return value
}

// Styles are the lipgloss styles used by text output.
type Styles struct {
	Title  lipgloss.Style
	Author lipgloss.Style
	Muted  lipgloss.Style
	Link   lipgloss.Style
	Error  lipgloss.Style
}

// NewStyles returns colored styles, or unstyled ones when color is
// false.
func NewStyles(color bool) Styles {
	if !color {
		plain := lipgloss.NewStyle()
		return Styles{Title: plain, Author: plain, Muted: plain, Link: plain, Error: plain}
	}
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true),
		Author: lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		Muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Link:   lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Underline(true),
		Error:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
}
