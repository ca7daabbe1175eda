package screens

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Input reads prompted lines. Reading happens on a background goroutine
// so a pending prompt can be abandoned when ctx is done; the line is then
// delivered to the next prompt. The goroutine reads one line per prompt,
// so a secret prompt on a terminal never races the line reader.
type Input struct {
	src    io.Reader
	prompt io.Writer

	// fd and terminal describe src when it is a terminal.
	fd           int
	terminal     bool
	readPassword func(fd int) ([]byte, error)

	once    sync.Once
	reqs    chan bool // true asks for a secret
	results chan result

	mu      sync.Mutex
	waiting bool
	eof     bool
}

type result struct {
	line string
	err  error
}

// NewInput reads lines from r and writes prompts to prompt. When r is a
// terminal, Secret reads without echo.
func NewInput(r io.Reader, prompt io.Writer) *Input {
	in := &Input{src: r, prompt: prompt, fd: -1, readPassword: term.ReadPassword}
	if f, ok := r.(interface{ Fd() uintptr }); ok {
		fd := int(f.Fd())
		if term.IsTerminal(fd) {
			in.fd, in.terminal = fd, true
		}
	}
	return in
}

func (in *Input) start() {
	in.reqs = make(chan bool, 1)
	in.results = make(chan result, 1)
	go func() {
		defer close(in.results)
		sc := bufio.NewScanner(in.src)
		for secret := range in.reqs {
			if secret && in.terminal {
				b, err := in.readPassword(in.fd)
				// The user's Enter was not echoed.
				fmt.Fprintln(in.prompt)
				if err != nil {
					in.results <- result{err: err}
					return
				}
				in.results <- result{line: strings.TrimRight(string(b), "\r")}
				continue
			}
			if !sc.Scan() {
				err := sc.Err()
				if err == nil {
					err = io.EOF
				}
				in.results <- result{err: err}
				return
			}
			in.results <- result{line: strings.TrimRight(sc.Text(), "\r")}
		}
	}()
}

// Line prints label and returns the next line without its line ending.
// It returns io.EOF once the input is exhausted.
func (in *Input) Line(label string) (string, error) {
	return in.LineContext(context.Background(), label)
}

// LineContext is Line, giving up when ctx is done.
func (in *Input) LineContext(ctx context.Context, label string) (string, error) {
	return in.read(ctx, label, false)
}

// Secret is Line without echo when the input is a terminal.
func (in *Input) Secret(label string) (string, error) {
	return in.SecretContext(context.Background(), label)
}

// SecretContext is Secret, giving up when ctx is done.
func (in *Input) SecretContext(ctx context.Context, label string) (string, error) {
	return in.read(ctx, label, true)
}

func (in *Input) read(ctx context.Context, label string, secret bool) (string, error) {
	in.once.Do(in.start)
	if label != "" {
		fmt.Fprint(in.prompt, label)
	}

	in.mu.Lock()
	if in.eof {
		in.mu.Unlock()
		return "", io.EOF
	}
	if !in.waiting {
		in.waiting = true
		in.reqs <- secret
	}
	in.mu.Unlock()

	select {
	case r, ok := <-in.results:
		in.mu.Lock()
		defer in.mu.Unlock()
		in.waiting = false
		if !ok {
			in.eof = true
			return "", io.EOF
		}
		if r.err != nil {
			in.eof = true
		}
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
