// Package notify delivers alert and report messages to external chat
// channels.
package notify

// TextNotifier is a minimal text notification interface. It is
// intentionally small so jobs can depend on it without importing
// concrete implementations.
type TextNotifier interface {
	SendText(text string) error
}

// Multi fans one message out to several notifiers. Send failures are
// collected; the first error is returned after every target was tried.
type Multi []TextNotifier

func (m Multi) SendText(text string) error {
	var first error
	for _, n := range m {
		if err := n.SendText(text); err != nil && first == nil {
			first = err
		}
	}
	return first
}
