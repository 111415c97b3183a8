package util

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Printer writes user-facing lines for the CLI. Diagnostics go through the
// logging package instead; Printer output is what a user reads at the end of
// a command.
type Printer struct {
	mu        sync.Mutex
	out       io.Writer
	suspended bool
}

// Default prints to stdout.
var Default = NewPrinter(os.Stdout)

func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{out: w}
}

// SetOutput redirects the printer, mainly for tests.
func (p *Printer) SetOutput(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out = w
}

func (p *Printer) Printf(format string, a ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.suspended {
		return
	}
	fmt.Fprintf(p.out, format, a...)
}

func (p *Printer) Println(a ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.suspended {
		return
	}
	fmt.Fprintln(p.out, a...)
}

// Suspend silences the printer while an interactive prompt owns the terminal.
func (p *Printer) Suspend() {
	p.mu.Lock()
	p.suspended = true
	p.mu.Unlock()
}

func (p *Printer) Resume() {
	p.mu.Lock()
	p.suspended = false
	p.mu.Unlock()
}
