package bot

import (
	"fmt"
	"time"

	"github.com/aiox-platform/o1bot/internal/completion"
	"github.com/aiox-platform/o1bot/internal/governance/quota"
	"github.com/aiox-platform/o1bot/internal/users"
)

func helpMessage(trigger string) Message {
	return Message{
		Title: "📚 O1 Bot Help 📚",
		Body:  "Prefix-based commands:",
		Fields: []Field{
			{Name: trigger, Value: "Show your current prompt + mode or help if none set."},
			{Name: trigger + " <input>", Value: "Generate a response with your stored prompt + input."},
			{Name: trigger + " prompt <prompt>", Value: "Set your custom prompt."},
			{Name: trigger + " reset", Value: "Clear your current prompt."},
			{Name: trigger + " mode <standard|economy>", Value: "Switch model mode (`o1` and `mini` also work; economy is default)."},
			{Name: trigger + " usage", Value: "Show today's token usage and when it resets."},
			{Name: trigger + " help", Value: "Show this message."},
		},
		Footer: "Uses OpenAI's o1 models. No slash commands!",
		Color:  ColorBlue,
		Embed:  true,
	}
}

func statusMessage(trigger string, u users.UserConfig) Message {
	return Message{
		Title:  "📄 Your Current Prompt 📄",
		Body:   u.Prompt,
		Fields: []Field{{Name: "Current Mode", Value: string(u.Mode)}},
		Footer: fmt.Sprintf("Use `%s <input>` to generate a response.", trigger),
		Color:  ColorBlue,
		Embed:  true,
	}
}

func promptSetMessage(trigger, prompt string) Message {
	return Message{
		Title:  "✅ Prompt Set Successfully ✅",
		Body:   "Your custom prompt has been set as follows:",
		Fields: []Field{{Name: "Your Prompt:", Value: prompt}},
		Footer: fmt.Sprintf("Use `%s <your input>` to generate a response from this prompt.", trigger),
		Color:  ColorGreen,
		Embed:  true,
	}
}

func promptResetMessage(trigger string) Message {
	return Message{
		Title:  "✅ Prompt Reset Successfully ✅",
		Body:   "Your custom prompt has been reset.",
		Footer: fmt.Sprintf("Use `%s prompt <your prompt>` to set a new prompt.", trigger),
		Color:  ColorGreen,
		Embed:  true,
	}
}

func modeSetMessage(mode users.Mode) Message {
	return Message{
		Title: fmt.Sprintf("✅ **Mode Set to `%s`** ✅", mode),
		Body:  fmt.Sprintf("You can now use the bot in `%s` mode.", mode),
		Color: ColorGreen,
	}
}

func processingMessage() Message {
	return Message{
		Title: "🔄 **Processing** 🔄",
		Body:  "Generating response, please wait...",
		Color: ColorOrange,
	}
}

func usageMessage(st quota.UsageStatus) Message {
	reset := "not scheduled"
	if !st.NextReset.IsZero() {
		reset = st.NextReset.UTC().Format(time.RFC1123)
	}
	color := ColorBlue
	if st.Exceeded() {
		color = ColorRed
	}
	return Message{
		Title: "📊 Your Token Usage 📊",
		Fields: []Field{
			{Name: "Used", Value: fmt.Sprintf("%d / %d", st.Used, st.Quota), Inline: true},
			{Name: "Remaining", Value: fmt.Sprintf("%d", st.Remaining()), Inline: true},
			{Name: "Next Reset", Value: reset},
		},
		Color: color,
		Embed: true,
	}
}

func responseMessage(part, footer string) Message {
	return Message{
		Title:  "🧠 O1 Response",
		Body:   part,
		Footer: footer,
		Color:  ColorGreen,
		Embed:  true,
	}
}

func usageFooter(u completion.Usage) string {
	return fmt.Sprintf(
		"📝 Prompt Tokens: %d | 🧠 Reasoning Tokens: %d | 🪄 Completion Tokens: %d | 🔢 Total Tokens: %d",
		u.PromptTokens, u.Reasoning(), u.CompletionTokens, u.TotalTokens,
	)
}
