// Package notify defines the user-facing notification channel.
//
// Rendering (chat bridge, CLI, log sink) is an external collaborator;
// everything inside golem only ever calls Say.
package notify

import "log/slog"

// Notifier delivers a human-readable notice to the user.
type Notifier interface {
	Say(text string)
}

// LogNotifier writes notices to a structured logger.
// It is the default sink when no chat bridge is wired.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier backed by the given logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Say implements Notifier.
func (n *LogNotifier) Say(text string) {
	n.logger.Info("notice", "text", text)
}

// Func adapts a plain function to the Notifier interface.
type Func func(text string)

// Say implements Notifier.
func (f Func) Say(text string) { f(text) }
