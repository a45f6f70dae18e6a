// Package console is an interactive prompt loop around a Translator.
package console

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minidb/aibridge/internal/chatclient"
	"github.com/minidb/aibridge/internal/nl2sql"
)

const banner = "Natural language to SQL console. Type exit or quit to leave."

// exitInterrupted is the shell convention for a process ended by SIGINT.
const exitInterrupted = 130

// TranslatorFactory builds the local translator used when no -base-url is
// given.
type TranslatorFactory func() (nl2sql.Translator, error)

type Options struct {
	BaseURL       string
	Timeout       time.Duration
	NewTranslator TranslatorFactory
	Stdin         io.Reader
	Stdout        io.Writer
	Stderr        io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdin := defaults.Stdin
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("aibridge-console", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", strings.TrimSpace(defaults.BaseURL), "bridge base URL; empty uses the local translator")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 90*time.Second), "per-prompt timeout (e.g. 90s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return 2
	}

	translator, err := buildTranslator(*baseURL, *timeout, defaults.NewTranslator)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "translator unavailable: %v\n", err)
		return 1
	}

	_, _ = fmt.Fprintln(stdout, banner)
	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	lines, readErr := readLines(readCtx, stdin)
	for {
		_, _ = fmt.Fprint(stdout, "> ")
		var line string
		select {
		case <-ctx.Done():
			_, _ = fmt.Fprintln(stdout)
			return exitInterrupted
		case next, ok := <-lines:
			if !ok {
				if ctx.Err() != nil {
					return exitInterrupted
				}
				_, _ = fmt.Fprintln(stdout)
				if err := readErr(); err != nil {
					_, _ = fmt.Fprintf(stderr, "read input: %v\n", err)
					return 1
				}
				return 0
			}
			line = strings.TrimSpace(next)
		}
		if line == "" {
			continue
		}
		if isExit(line) {
			return 0
		}

		promptCtx, cancel := context.WithTimeout(ctx, *timeout)
		reply := nl2sql.TranslateText(promptCtx, translator, line)
		cancel()
		if ctx.Err() != nil {
			return exitInterrupted
		}
		_, _ = fmt.Fprintln(stdout, reply)
	}
}

// readLines scans r on its own goroutine so the prompt loop can return on
// cancellation while a read is still blocked. The error func is only valid
// after the channel is closed.
func readLines(ctx context.Context, r io.Reader) (<-chan string, func() error) {
	lines := make(chan string)
	var scanErr error
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr = scanner.Err()
	}()
	return lines, func() error { return scanErr }
}

func buildTranslator(baseURL string, timeout time.Duration, factory TranslatorFactory) (nl2sql.Translator, error) {
	if baseURL != "" {
		return chatclient.New(chatclient.Options{BaseURL: baseURL, Timeout: timeout})
	}
	if factory == nil {
		return nil, fmt.Errorf("no -base-url and no local translator configured")
	}
	return factory()
}

func isExit(line string) bool {
	switch strings.ToLower(line) {
	case "exit", "quit":
		return true
	}
	return false
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
