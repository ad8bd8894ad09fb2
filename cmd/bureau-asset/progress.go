// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

// progress prints a single updating transfer line. It is silent
// unless the output is a terminal.
type progress struct {
	out     io.Writer
	label   string
	enabled bool
	total   uint64
	done    uint64
}

func newProgress(out *os.File, label string) *progress {
	return &progress{
		out:     out,
		label:   label,
		enabled: term.IsTerminal(int(out.Fd())),
	}
}

// Start sets the expected byte count. Zero means unknown.
func (p *progress) Start(total uint64) {
	p.total = total
	p.done = 0
	p.render()
}

// Add records n more transferred bytes.
func (p *progress) Add(n uint64) {
	p.done += n
	p.render()
}

// Finish ends the progress line.
func (p *progress) Finish() {
	if p.enabled {
		fmt.Fprintln(p.out)
	}
}

func (p *progress) render() {
	if !p.enabled {
		return
	}
	if p.total == 0 {
		fmt.Fprintf(p.out, "\r%s %s", p.label, humanize.IBytes(p.done))
		return
	}
	percent := float64(p.done) * 100 / float64(p.total)
	fmt.Fprintf(p.out, "\r%s %s / %s (%.0f%%)", p.label,
		humanize.IBytes(p.done), humanize.IBytes(p.total), percent)
}
