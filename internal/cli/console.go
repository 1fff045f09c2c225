package cli

import (
	"fmt"
	"io"
	"sync"
)

// Console prints the headless-mode messages. Say is suppressed by quiet;
// Whisper only prints when verbose.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	quiet   bool
	verbose bool
}

func NewConsole(out io.Writer, quiet, verbose bool) *Console {
	return &Console{out: out, quiet: quiet, verbose: verbose && !quiet}
}

func (c *Console) IsVerbose() bool {
	return c.verbose
}

func (c *Console) Say(format string, args ...interface{}) {
	if c.quiet {
		return
	}
	c.print(format, args...)
}

func (c *Console) Whisper(format string, args ...interface{}) {
	if !c.verbose {
		return
	}
	c.print(format, args...)
}

func (c *Console) print(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format+"\n", args...)
}
