package cli

import (
	"fmt"
	"io"
	"sync"

	"segmentbook-service/internal/client/router"
)

// consoleNotifier prints toasts on stderr so they never mix with page output.
type consoleNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func newConsoleNotifier(w io.Writer) *consoleNotifier {
	return &consoleNotifier{w: w}
}

func (n *consoleNotifier) Notify(level router.Level, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	prefix := "i"
	switch level {
	case router.LevelSuccess:
		prefix = "✓"
	case router.LevelError:
		prefix = "✗"
	}
	fmt.Fprintf(n.w, "%s %s\n", prefix, msg)
}
