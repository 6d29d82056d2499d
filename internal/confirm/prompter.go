package confirm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// LinePrompter reads a single line per question. It is used when stdin is
// not a terminal.
type LinePrompter struct {
	out    io.Writer
	reader *bufio.Reader
}

// NewLinePrompter creates a LinePrompter.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{out: out, reader: bufio.NewReader(in)}
}

// Ask prints the question and reads one line. EOF without input is an error.
func (p *LinePrompter) Ask(ctx context.Context, title, description string) (string, error) {
	fmt.Fprintf(p.out, "%s\n%s\n> ", title, description)

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := p.reader.ReadString('\n')
		ch <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil && !(errors.Is(r.err, io.EOF) && r.line != "") {
			return "", fmt.Errorf("failed to read answer: %w", r.err)
		}
		return strings.TrimRight(r.line, "\r\n"), nil
	}
}

// FormPrompter asks through a huh input form.
type FormPrompter struct{}

// Ask runs a one-field form.
func (FormPrompter) Ask(ctx context.Context, title, description string) (string, error) {
	var answer string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Description(description).
				Value(&answer),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return "", fmt.Errorf("prompt canceled: %w", err)
	}
	return answer, nil
}

// NewPrompter picks the form prompter on a terminal and the line prompter
// otherwise.
func NewPrompter(in *os.File, out io.Writer) Prompter {
	fd := in.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return FormPrompter{}
	}
	return NewLinePrompter(in, out)
}
