package tui

import (
	"os"

	"github.com/charmbracelet/huh"
)

// ConfirmField is a yes/no field bound to value.
func ConfirmField(message string, value *bool) *huh.Confirm {
	return huh.NewConfirm().
		Title(message).
		Affirmative("Yes").
		Negative("No").
		Value(value)
}

// IsInteractive returns true if stdin is a terminal (not piped)
func IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

var ciEnvVars = []string{
	"CI",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"JENKINS_URL",
	"TRAVIS",
	"CIRCLECI",
	"BUILDKITE",
}

// ShouldPrompt returns true if prompts should be shown based on environment.
// Prompts are disabled in CI environments, when EVENTCTL_NO_PROMPT is set,
// or when stdin is not a terminal.
func ShouldPrompt() bool {
	if os.Getenv("EVENTCTL_NO_PROMPT") != "" {
		return false
	}
	for _, envVar := range ciEnvVars {
		if os.Getenv(envVar) != "" {
			return false
		}
	}

	return IsInteractive()
}
