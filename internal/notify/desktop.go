package notify

import (
	"context"

	"github.com/gen2brain/beeep"
)

var desktopNotify = func(title, message, icon string) error {
	return beeep.Notify(title, message, icon)
}

// Desktop shows notifications through the platform notification service.
type Desktop struct{}

// NewDesktop creates a desktop notifier.
func NewDesktop() *Desktop {
	return &Desktop{}
}

// Notify implements Notifier.
func (d *Desktop) Notify(_ context.Context, n Notification) error {
	return desktopNotify(n.Title, n.Message, desktopIcon(n.Category))
}

// desktopIcon maps a category to a freedesktop icon name.
func desktopIcon(c Category) string {
	switch c {
	case CategorySuccess:
		return "dialog-ok"
	case CategoryFailure:
		return "dialog-error"
	default:
		return "dialog-information"
	}
}
