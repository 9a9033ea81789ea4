package bot

import (
	"strings"
	"unicode"

	"github.com/aiox-platform/o1bot/internal/governance"
)

// CommandKind is the branch a command routes to.
type CommandKind string

const (
	CommandStatus   CommandKind = "status"
	CommandHelp     CommandKind = "help"
	CommandPrompt   CommandKind = "prompt"
	CommandReset    CommandKind = "reset"
	CommandMode     CommandKind = "mode"
	CommandUsage    CommandKind = "usage"
	CommandGenerate CommandKind = "generate"
)

var subcommands = map[string]CommandKind{
	"help":   CommandHelp,
	"prompt": CommandPrompt,
	"reset":  CommandReset,
	"mode":   CommandMode,
	"usage":  CommandUsage,
}

// Command is one inbound chat command, already stripped of its trigger.
type Command struct {
	ID        string
	Kind      CommandKind
	Args      string
	Trigger   string
	ChannelID string
	Caller    governance.Caller
}

// ParseCommand recognises "<trigger>", "<trigger> <subcommand> [args]" and
// "<trigger> <input>". The trigger must be followed by whitespace or the end
// of the text. Anything that is not a subcommand is generation input.
func ParseCommand(text, trigger string) (Command, bool) {
	text = strings.TrimSpace(text)
	rest, ok := strings.CutPrefix(text, trigger)
	if !ok || trigger == "" {
		return Command{}, false
	}
	if rest != "" && !unicode.IsSpace([]rune(rest)[0]) {
		return Command{}, false
	}
	rest = strings.TrimSpace(rest)

	cmd := Command{Trigger: trigger}
	if rest == "" {
		cmd.Kind = CommandStatus
		return cmd, true
	}

	word, args := rest, ""
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		word, args = rest[:i], rest[i:]
	}
	if kind, ok := subcommands[strings.ToLower(word)]; ok {
		cmd.Kind = kind
		cmd.Args = strings.TrimSpace(args)
		return cmd, true
	}

	cmd.Kind = CommandGenerate
	cmd.Args = rest
	return cmd, true
}
