// Package discord is the Discord front end: it turns guild messages into bot
// commands and renders replies as messages or embeds.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/aiox-platform/o1bot/internal/bot"
	"github.com/aiox-platform/o1bot/internal/config"
	"github.com/aiox-platform/o1bot/internal/governance"
)

// Discord API limits.
const (
	maxContentLength     = 2000
	maxTitleLength       = 256
	maxDescriptionLength = 4096
	maxFieldValueLength  = 1024
	maxFooterLength      = 2048
)

// Handler processes one command.
type Handler interface {
	Handle(ctx context.Context, cmd bot.Command, out bot.Sender)
}

// session is the subset of *discordgo.Session the gateway uses.
type session interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Gateway struct {
	session session
	handler Handler
	trigger string

	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
}

// New creates a gateway for a bot token. The connection is opened by Run.
func New(cfg config.DiscordConfig, handler Handler) (*Gateway, error) {
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentGuilds | discordgo.IntentGuildMessages | discordgo.IntentMessageContent
	return newGateway(s, handler, cfg.Trigger), nil
}

func newGateway(s session, handler Handler, trigger string) *Gateway {
	return &Gateway{session: s, handler: handler, trigger: trigger}
}

// Run connects and dispatches commands until ctx is cancelled, then waits
// for in-flight commands and disconnects.
func (g *Gateway) Run(ctx context.Context) error {
	remove := g.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		g.onMessage(ctx, m)
	})
	defer remove()

	if err := g.session.Open(); err != nil {
		return fmt.Errorf("opening discord gateway: %w", err)
	}
	slog.Info("discord gateway connected", "trigger", g.trigger)

	<-ctx.Done()
	remove()
	g.drain()

	if err := g.session.Close(); err != nil {
		return fmt.Errorf("closing discord gateway: %w", err)
	}
	slog.Info("discord gateway closed")
	return nil
}

func (g *Gateway) onMessage(ctx context.Context, m *discordgo.MessageCreate) {
	cmd, ok := toCommand(m, g.trigger)
	if !ok {
		return
	}
	if !g.acquire() {
		slog.Debug("discord gateway draining, dropping command", "message_id", m.ID)
		return
	}
	defer g.wg.Done()

	slog.Debug("discord command received", "message_id", m.ID, "user_id", cmd.Caller.UserID, "command", cmd.Kind)
	g.handler.Handle(ctx, cmd, g)
}

// acquire registers an in-flight command unless the gateway is draining.
// The flag and wg.Add share a lock so drain never waits on a late Add.
func (g *Gateway) acquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.draining {
		return false
	}
	g.wg.Add(1)
	return true
}

func (g *Gateway) drain() {
	g.mu.Lock()
	g.draining = true
	g.mu.Unlock()
	g.wg.Wait()
}

// Send implements bot.Sender. An embed whose body exceeds the description
// limit goes out as several embeds.
func (g *Gateway) Send(ctx context.Context, channelID string, msg bot.Message) error {
	if !msg.Embed {
		if _, err := g.session.ChannelMessageSend(channelID, truncate(msg.Text(), maxContentLength), discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("sending to channel %s: %w", channelID, err)
		}
		return nil
	}

	for _, e := range toEmbeds(msg) {
		if _, err := g.session.ChannelMessageSendEmbed(channelID, e, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("sending to channel %s: %w", channelID, err)
		}
	}
	return nil
}

func toCommand(m *discordgo.MessageCreate, trigger string) (bot.Command, bool) {
	if m.Author == nil || m.Author.Bot {
		return bot.Command{}, false
	}
	cmd, ok := bot.ParseCommand(m.Content, trigger)
	if !ok {
		return bot.Command{}, false
	}

	cmd.ID = m.ID
	cmd.ChannelID = m.ChannelID
	cmd.Caller = governance.Caller{UserID: m.Author.ID, OriginID: m.GuildID}
	if m.Member != nil {
		cmd.Caller.Roles = m.Member.Roles
	}
	return cmd, true
}

// toEmbeds renders msg as one embed, or as a run of embeds when the body is
// longer than one description allows. The title leads the first embed;
// fields and footer close the last.
func toEmbeds(msg bot.Message) []*discordgo.MessageEmbed {
	parts := splitDescription(msg.Body, maxDescriptionLength)
	embeds := make([]*discordgo.MessageEmbed, len(parts))
	for i, part := range parts {
		embeds[i] = &discordgo.MessageEmbed{Description: part, Color: int(msg.Color)}
	}
	embeds[0].Title = truncate(msg.Title, maxTitleLength)

	last := embeds[len(embeds)-1]
	for _, f := range msg.Fields {
		last.Fields = append(last.Fields, &discordgo.MessageEmbedField{
			Name:   truncate(f.Name, maxTitleLength),
			Value:  truncate(f.Value, maxFieldValueLength),
			Inline: f.Inline,
		})
	}
	if msg.Footer != "" {
		last.Footer = &discordgo.MessageEmbedFooter{Text: truncate(msg.Footer, maxFooterLength)}
	}
	return embeds
}

// splitDescription cuts s into pieces of at most n runes, preferring to cut
// after a newline. It always returns at least one piece.
func splitDescription(s string, n int) []string {
	r := []rune(s)
	var parts []string
	for len(r) > n {
		cut := n
		for i := n - 1; i > 0; i-- {
			if r[i] == '\n' {
				cut = i + 1
				break
			}
		}
		parts = append(parts, string(r[:cut]))
		r = r[cut:]
	}
	return append(parts, string(r))
}

// truncate cuts s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
