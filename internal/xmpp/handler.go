// Package xmpp is the XMPP front end, connected to a server as an external
// component. Direct chats and rooms the component is present in can issue
// commands.
package xmpp

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gosrc.io/xmpp"
	"gosrc.io/xmpp/stanza"

	"github.com/aiox-platform/o1bot/internal/bot"
	"github.com/aiox-platform/o1bot/internal/config"
	"github.com/aiox-platform/o1bot/internal/governance"
)

const (
	typeChat      stanza.StanzaType = "chat"
	typeGroupchat stanza.StanzaType = "groupchat"
	typeError     stanza.StanzaType = "error"
)

// CommandHandler processes one command.
type CommandHandler interface {
	Handle(ctx context.Context, cmd bot.Command, out bot.Sender)
}

// stanzaSender is the part of xmpp.Sender used for replies.
type stanzaSender interface {
	Send(packet stanza.Packet) error
}

// Handler turns <message> stanzas into commands. Each command runs on its
// own goroutine so a slow completion does not stall the stream.
type Handler struct {
	commands    CommandHandler
	trigger     string
	roleID      string
	roleHolders map[string]bool

	ctx      context.Context
	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
}

// NewHandler creates a stanza handler. Callers listed in cfg.RoleHolders
// (bare JIDs in chats, nicknames in rooms) are given roleID.
func NewHandler(cfg config.XMPPConfig, roleID string, commands CommandHandler) *Handler {
	holders := make(map[string]bool, len(cfg.RoleHolders))
	for _, h := range cfg.RoleHolders {
		holders[strings.ToLower(h)] = true
	}
	return &Handler{
		commands:    commands,
		trigger:     cfg.Trigger,
		roleID:      roleID,
		roleHolders: holders,
		ctx:         context.Background(),
	}
}

func (h *Handler) bind(ctx context.Context) { h.ctx = ctx }

// drain stops new commands from starting and waits for in-flight ones.
func (h *Handler) drain() {
	h.mu.Lock()
	h.draining = true
	h.mu.Unlock()
	h.wg.Wait()
}

func (h *Handler) acquire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.wg.Add(1)
	return true
}

// HandleMessage dispatches command messages to the command handler.
func (h *Handler) HandleMessage(s xmpp.Sender, p stanza.Packet) {
	msg, ok := p.(stanza.Message)
	if !ok {
		return
	}
	h.dispatch(s, msg)
}

func (h *Handler) dispatch(s stanzaSender, msg stanza.Message) {
	cmd, ok := h.toCommand(msg)
	if !ok {
		return
	}

	slog.Debug("XMPP command received",
		"from", msg.From,
		"to", msg.To,
		"type", string(msg.Type),
		"command", cmd.Kind,
	)

	if !h.acquire() {
		slog.Debug("XMPP handler draining, dropping command", "from", msg.From)
		return
	}
	out := &replier{sender: s, from: msg.To, kind: replyType(msg.Type)}
	go func() {
		defer h.wg.Done()
		h.commands.Handle(h.ctx, cmd, out)
	}()
}

func (h *Handler) toCommand(msg stanza.Message) (bot.Command, bool) {
	if msg.Body == "" || msg.Type == typeError {
		return bot.Command{}, false
	}
	cmd, ok := bot.ParseCommand(msg.Body, h.trigger)
	if !ok {
		return bot.Command{}, false
	}
	cmd.ID = msg.Id

	var holder string
	if msg.Type == typeGroupchat {
		nick := resource(msg.From)
		if nick == "" {
			return bot.Command{}, false
		}
		room := bareJID(msg.From)
		cmd.ChannelID = room
		cmd.Caller = governance.Caller{UserID: msg.From, OriginID: room}
		holder = nick
	} else {
		cmd.ChannelID = msg.From
		cmd.Caller = governance.Caller{UserID: bareJID(msg.From), OriginID: domain(msg.From)}
		holder = bareJID(msg.From)
	}

	if h.roleHolders[strings.ToLower(holder)] {
		cmd.Caller.Roles = []string{h.roleID}
	}
	return cmd, true
}

// HandlePresence auto-approves subscribe requests.
func (h *Handler) HandlePresence(s xmpp.Sender, p stanza.Packet) {
	pres, ok := p.(stanza.Presence)
	if !ok {
		return
	}

	slog.Debug("XMPP presence received",
		"from", pres.From,
		"to", pres.To,
		"type", string(pres.Type),
	)

	if pres.Type == "subscribe" {
		reply := stanza.Presence{
			Attrs: stanza.Attrs{
				From: pres.To,
				To:   pres.From,
				Type: "subscribed",
			},
		}
		if err := s.Send(reply); err != nil {
			slog.Error("sending presence subscribed reply", "error", err)
		}
	}
}

func replyType(t stanza.StanzaType) stanza.StanzaType {
	if t == typeGroupchat {
		return typeGroupchat
	}
	return typeChat
}

// replier sends replies from the component JID a command was addressed to.
type replier struct {
	sender stanzaSender
	from   string
	kind   stanza.StanzaType
}

func (r *replier) Send(ctx context.Context, channelID string, msg bot.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.sender.Send(stanza.Message{
		Attrs: stanza.Attrs{
			From: r.from,
			To:   channelID,
			Type: r.kind,
			Id:   uuid.NewString(),
		},
		Body: formatText(msg),
	})
}

// formatText renders a reply for clients without markdown support.
func formatText(msg bot.Message) string {
	return strings.ReplaceAll(msg.Text(), "**", "")
}
