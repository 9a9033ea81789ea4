package bot

import (
	"context"
	"strings"
)

// Color is an embed accent color as 0xRRGGBB.
type Color int

const (
	ColorBlue   Color = 0x3498db
	ColorGreen  Color = 0x2ecc71
	ColorRed    Color = 0xe74c3c
	ColorOrange Color = 0xe67e22
)

type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Message is a reply. Front ends that support rich messages render Embed
// messages as cards; everything else goes out as Text().
type Message struct {
	Title  string
	Body   string
	Fields []Field
	Footer string
	Color  Color
	Embed  bool
}

// Text renders the message as plain markdown.
func (m Message) Text() string {
	var b strings.Builder
	line := func(s string) {
		if s == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(s)
	}
	line(m.Title)
	line(m.Body)
	for _, f := range m.Fields {
		line("**" + f.Name + "**\n" + f.Value)
	}
	line(m.Footer)
	return b.String()
}

// Sender delivers a reply to a channel of the front end a command came from.
type Sender interface {
	Send(ctx context.Context, channelID string, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, channelID string, msg Message) error

func (f SenderFunc) Send(ctx context.Context, channelID string, msg Message) error {
	return f(ctx, channelID, msg)
}
