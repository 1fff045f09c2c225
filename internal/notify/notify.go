// Package notify delivers run notifications to the desktop, email and logs.
package notify

import (
	"context"
	"fmt"
	"strings"
)

// Category classifies a notification.
type Category string

const (
	CategorySuccess Category = "success"
	CategoryFailure Category = "failure"
	CategoryInfo    Category = "info"
)

// Notification is one message produced by a run.
type Notification struct {
	Category Category
	Title    string
	Message  string
	Detail   []string
}

func (n Notification) String() string {
	s := fmt.Sprintf("[%s] %s", n.Category, n.Title)
	if n.Message != "" {
		s += ": " + n.Message
	}
	return s
}

// Body joins the message and detail lines.
func (n Notification) Body() string {
	parts := make([]string, 0, len(n.Detail)+1)
	if n.Message != "" {
		parts = append(parts, n.Message)
	}
	parts = append(parts, n.Detail...)
	return strings.Join(parts, "\n")
}

// Notifier delivers notifications. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notification) error

// Notify implements Notifier.
func (f Func) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Nop discards notifications.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Notification) error { return nil }
