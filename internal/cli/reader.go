package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInputCancelled is returned when input is canceled by context.
var ErrInputCancelled = errors.New("input canceled")

// LineReader reads answers to prompts without blocking past cancellation.
type LineReader struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewLineReader creates a reader over in that writes prompts to out.
func NewLineReader(in io.Reader, out io.Writer) *LineReader {
	return &LineReader{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Prompt prints prompt and returns the trimmed line that follows. The
// underlying read keeps running if ctx ends first.
func (r *LineReader) Prompt(ctx context.Context, prompt string) (string, error) {
	if prompt != "" && r.out != nil {
		if _, err := fmt.Fprint(r.out, FormatPrompt(prompt)); err != nil {
			return "", err
		}
	}

	type result struct {
		err   error
		value string
	}
	resultCh := make(chan result, 1)

	go func() {
		value, err := r.reader.ReadString('\n')
		resultCh <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case res := <-resultCh:
		if res.err != nil && !(errors.Is(res.err, io.EOF) && res.value != "") {
			return "", res.err
		}
		return strings.TrimSpace(res.value), nil
	}
}

// Confirm asks a yes/no question. Anything but y or yes is no.
func (r *LineReader) Confirm(ctx context.Context, question string) (bool, error) {
	answer, err := r.Prompt(ctx, question+" [y/N]")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
