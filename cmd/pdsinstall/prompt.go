package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// termPrompter reads answers line by line from an interactive terminal.
type termPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// newTermPrompter returns a prompter only when stdin is a terminal, so
// piped or scripted runs fail fast on missing input instead of blocking.
func newTermPrompter(stdin *os.File, out io.Writer) (*termPrompter, bool) {
	if !term.IsTerminal(int(stdin.Fd())) {
		return nil, false
	}
	return &termPrompter{in: bufio.NewReader(stdin), out: out}, true
}

func (p *termPrompter) Ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
