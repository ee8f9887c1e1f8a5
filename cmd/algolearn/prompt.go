package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// prompter reads answers line by line from one input stream. Input is not
// masked; pipe secrets in non-interactive use.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

func (p *prompter) ask(label string) (string, error) {
	if _, err := fmt.Fprintf(p.out, "%s: ", label); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", err
		}
		if line == "" {
			return "", fmt.Errorf("no input for %s", strings.ToLower(label))
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// value returns current when set and otherwise asks for label.
func (p *prompter) value(current, label string) (string, error) {
	if current != "" {
		return current, nil
	}
	return p.ask(label)
}
