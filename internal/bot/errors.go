package bot

import (
	"errors"
	"strings"
)

// ErrorKind labels a user-facing failure. It is also the metrics outcome.
type ErrorKind string

// CommandError is a failure reported back to the caller's channel. Title and
// Message may contain {trigger}, replaced with the front end's trigger.
type CommandError struct {
	Kind    ErrorKind
	Title   string
	Message string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Is matches any CommandError of the same kind.
func (e *CommandError) Is(target error) bool {
	t, ok := target.(*CommandError)
	return ok && t.Kind == e.Kind
}

// With returns a copy of e carrying cause for logging.
func (e *CommandError) With(cause error) *CommandError {
	c := *e
	c.Err = cause
	return &c
}

// Reply renders the error as a plain message.
func (e *CommandError) Reply(trigger string) Message {
	return Message{
		Title: e.Title,
		Body:  strings.ReplaceAll(e.Message, "{trigger}", trigger),
		Color: ColorRed,
	}
}

var (
	ErrRateLimited = &CommandError{
		Kind: "rate_limited", Title: "🚫 **Rate Limit Exceeded** 🚫",
		Message: "Please wait a moment before trying again.",
	}
	ErrAccessDenied = &CommandError{
		Kind: "access_denied", Title: "❌ **Role Required** ❌",
		Message: "You do not have permission to use this bot's commands.",
	}
	ErrQuotaExceeded = &CommandError{
		Kind: "quota_exceeded", Title: "🚫 **Quota Exceeded** 🚫",
		Message: "You've reached your daily token limit.",
	}
	ErrNoPrompt = &CommandError{
		Kind: "no_prompt", Title: "ℹ️ **No Prompt Found** ℹ️",
		Message: "Use `{trigger} prompt <your prompt>` to set one.",
	}
	ErrPromptNotSet = &CommandError{
		Kind: "prompt_not_set", Title: "ℹ️ **No Prompt Found** ℹ️",
		Message: "You do not have a prompt set.",
	}
	ErrInvalidUsage = &CommandError{
		Kind: "invalid_usage", Title: "⚠️ **Invalid Usage** ⚠️",
		Message: "Please provide a prompt.",
	}
	ErrInvalidMode = &CommandError{
		Kind: "invalid_mode", Title: "⚠️ **Invalid Mode** ⚠️",
		Message: "Choose either `standard` (`o1`) or `economy` (`mini`).",
	}
	ErrProviderFailure = &CommandError{
		Kind: "provider_failure", Title: "❌ **Error** ❌",
		Message: "The model could not generate a response. Please try again later.",
	}
	ErrInternal = &CommandError{
		Kind: "internal_error", Title: "❌ **Unexpected Error** ❌",
		Message: "Something went wrong while handling your command.",
	}
)

// errIgnored ends a command without any reply.
var errIgnored = errors.New("command ignored")
