package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantOK   bool
		wantKind CommandKind
		wantArgs string
	}{
		{name: "bare trigger", text: "!o1", wantOK: true, wantKind: CommandStatus},
		{name: "trigger with spaces", text: "  !o1   ", wantOK: true, wantKind: CommandStatus},
		{name: "help", text: "!o1 help", wantOK: true, wantKind: CommandHelp},
		{name: "prompt", text: "!o1 prompt You are terse.", wantOK: true, wantKind: CommandPrompt, wantArgs: "You are terse."},
		{name: "prompt without text", text: "!o1 prompt", wantOK: true, wantKind: CommandPrompt},
		{name: "prompt keeps newlines", text: "!o1 prompt\nline one\nline two", wantOK: true, wantKind: CommandPrompt, wantArgs: "line one\nline two"},
		{name: "subcommand is case insensitive", text: "!o1 RESET", wantOK: true, wantKind: CommandReset},
		{name: "mode", text: "!o1 mode mini", wantOK: true, wantKind: CommandMode, wantArgs: "mini"},
		{name: "usage", text: "!o1 usage", wantOK: true, wantKind: CommandUsage},
		{name: "generate", text: "!o1 explain monads", wantOK: true, wantKind: CommandGenerate, wantArgs: "explain monads"},
		{name: "generate starting with a subcommand prefix", text: "!o1 prompts are fun", wantOK: true, wantKind: CommandGenerate, wantArgs: "prompts are fun"},
		{name: "trigger glued to text", text: "!o1x", wantOK: false},
		{name: "other text", text: "hello !o1", wantOK: false},
		{name: "empty", text: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, ok := ParseCommand(tt.text, "!o1")
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantKind, cmd.Kind)
			assert.Equal(t, tt.wantArgs, cmd.Args)
			assert.Equal(t, "!o1", cmd.Trigger)
		})
	}
}

func TestParseCommand_EmptyTrigger(t *testing.T) {
	_, ok := ParseCommand("hello", "")
	assert.False(t, ok)
}

func TestMessage_Text(t *testing.T) {
	msg := Message{
		Title:  "Title",
		Body:   "Body",
		Fields: []Field{{Name: "Mode", Value: "economy"}},
		Footer: "Footer",
	}
	assert.Equal(t, "Title\nBody\n**Mode**\neconomy\nFooter", msg.Text())
	assert.Equal(t, "Only", Message{Body: "Only"}.Text())
}
