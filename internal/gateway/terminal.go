package gateway

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// TerminalChat is the chat ID used by the terminal gateway.
const TerminalChat = "terminal"

// TerminalGateway reads commands line by line and prints replies.
type TerminalGateway struct {
	in    io.Reader
	owner string

	mu  sync.Mutex
	out io.Writer
}

func NewTerminalGateway(in io.Reader, out io.Writer, owner string) *TerminalGateway {
	return &TerminalGateway{in: in, out: out, owner: owner}
}

// Start returns at end of input or when ctx is done.
func (t *TerminalGateway) Start(ctx context.Context, h Handler) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(t.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			h.Handle(ctx, Message{ChatID: TerminalChat, Owner: t.owner, Text: line})
		}
	}
}

func (t *TerminalGateway) Send(_ string, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.out, "\n%s\n", text)
	return err
}

func (t *TerminalGateway) Stop() error { return nil }
