// Package picker lets a user choose an element on a live page by hovering
// and clicking, and returns that element's cleaned HTML.
package picker

import (
	"context"
)

// NodeRef identifies an element inside a Page. Zero is never a valid ref.
type NodeRef int64

// EventKind is the kind of an input event reported by a Page.
type EventKind int

const (
	EventHover EventKind = iota + 1
	EventUnhover
	EventClick
	EventEscape
	// EventDetach means the page navigated away or closed.
	EventDetach
)

func (k EventKind) String() string {
	switch k {
	case EventHover:
		return "hover"
	case EventUnhover:
		return "unhover"
	case EventClick:
		return "click"
	case EventEscape:
		return "escape"
	case EventDetach:
		return "detach"
	}
	return "unknown"
}

// Event is one user input on the page.
type Event struct {
	Kind EventKind
	Node NodeRef
}

// Page is the transport to a live document.
type Page interface {
	// Arm starts reporting hover, click and Escape events.
	Arm(ctx context.Context) error
	// Disarm stops reporting events and restores the cursor.
	Disarm(ctx context.Context) error

	AddClass(ctx context.Context, ref NodeRef, class string) error
	RemoveClass(ctx context.Context, ref NodeRef, class string) error

	// OuterHTML returns the element's markup and its parent's tag name.
	OuterHTML(ctx context.Context, ref NodeRef) (markup, parentTag string, err error)

	// ShowOverlay shows the quick-actions overlay for a selected element.
	ShowOverlay(ctx context.Context, ref NodeRef) error
	HideOverlay(ctx context.Context) error

	Events() <-chan Event
}
