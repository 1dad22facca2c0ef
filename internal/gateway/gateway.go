package gateway

import (
	"context"
	"strings"
	"unicode/utf8"
)

// Message is one inbound chat message.
type Message struct {
	ChatID string
	Owner  string
	Text   string
}

// Handler consumes inbound messages.
type Handler interface {
	Handle(ctx context.Context, msg Message)
}

// Sender delivers a reply to a chat.
type Sender interface {
	Send(chatID string, text string) error
}

// Messenger defines the interface for communication gateways (Telegram, Discord, terminal)
type Messenger interface {
	Sender
	// Start runs the receive loop until ctx is done, passing every message to h
	Start(ctx context.Context, h Handler) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

// chunks splits text into pieces of at most limit bytes, preferring line
// breaks and never cutting a rune.
func chunks(text string, limit int) []string {
	var out []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		out = append(out, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}
