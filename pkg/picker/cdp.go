package picker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/inspectai/internal/logger"
	"github.com/jmylchreest/inspectai/pkg/browser"
)

const eventBuffer = 64

// CDPPage implements Page on a browser tab.
type CDPPage struct {
	tab    *browser.Tab
	events chan Event
}

// NewCDPPage installs the picker script in tab. The script survives
// navigations; a main-frame navigation is reported as EventDetach.
func NewCDPPage(ctx context.Context, tab *browser.Tab) (*CDPPage, error) {
	p := &CDPPage{
		tab:    tab,
		events: make(chan Event, eventBuffer),
	}

	chromedp.ListenTarget(tab.Context(), p.onTargetEvent)

	err := tab.Run(ctx,
		runtime.AddBinding(bindingName),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(pickerScript).Do(ctx)
			return err
		}),
		chromedp.Evaluate(pickerScript, nil),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to install picker: %w", err)
	}

	context.AfterFunc(tab.Context(), func() {
		p.emit(Event{Kind: EventDetach})
	})
	return p, nil
}

type bindingPayload struct {
	Kind string  `json:"kind"`
	ID   NodeRef `json:"id"`
}

var payloadKinds = map[string]EventKind{
	"hover":   EventHover,
	"unhover": EventUnhover,
	"click":   EventClick,
	"escape":  EventEscape,
}

// onTargetEvent runs on chromedp's event goroutine and must not block.
func (p *CDPPage) onTargetEvent(ev interface{}) {
	switch e := ev.(type) {
	case *runtime.EventBindingCalled:
		if e.Name != bindingName {
			return
		}
		var payload bindingPayload
		if err := json.Unmarshal([]byte(e.Payload), &payload); err != nil {
			logger.Debug("bad picker payload", "payload", e.Payload, "error", err)
			return
		}
		kind, ok := payloadKinds[payload.Kind]
		if !ok {
			return
		}
		p.emit(Event{Kind: kind, Node: payload.ID})

	case *page.EventFrameNavigated:
		if e.Frame != nil && e.Frame.ParentID == "" {
			p.emit(Event{Kind: EventDetach})
		}
	}
}

func (p *CDPPage) emit(ev Event) {
	select {
	case p.events <- ev:
	default:
		logger.Warn("picker event dropped", "kind", ev.Kind.String())
	}
}

// Events returns the page's input events.
func (p *CDPPage) Events() <-chan Event {
	return p.events
}

func (p *CDPPage) call(ctx context.Context, expr string) error {
	var ok bool
	if err := p.tab.Run(ctx, chromedp.Evaluate(expr, &ok)); err != nil {
		return err
	}
	if !ok {
		return ErrNodeGone
	}
	return nil
}

// Arm starts reporting events.
func (p *CDPPage) Arm(ctx context.Context) error {
	return p.call(ctx, "window.__inspectai.arm()")
}

// Disarm stops reporting events.
func (p *CDPPage) Disarm(ctx context.Context) error {
	return p.call(ctx, "window.__inspectai.disarm()")
}

// AddClass adds class to the element.
func (p *CDPPage) AddClass(ctx context.Context, ref NodeRef, class string) error {
	return p.call(ctx, fmt.Sprintf("window.__inspectai.addClass(%d, %s)", ref, strconv.Quote(class)))
}

// RemoveClass removes class from the element.
func (p *CDPPage) RemoveClass(ctx context.Context, ref NodeRef, class string) error {
	return p.call(ctx, fmt.Sprintf("window.__inspectai.removeClass(%d, %s)", ref, strconv.Quote(class)))
}

// OuterHTML returns the element's markup without picker classes.
func (p *CDPPage) OuterHTML(ctx context.Context, ref NodeRef) (string, string, error) {
	var out struct {
		HTML   string `json:"html"`
		Parent string `json:"parent"`
	}
	expr := fmt.Sprintf("window.__inspectai.outer(%d)", ref)
	if err := p.tab.Run(ctx, chromedp.Evaluate(expr, &out)); err != nil {
		return "", "", err
	}
	return out.HTML, out.Parent, nil
}

// ShowOverlay shows the Copy HTML overlay for the element.
func (p *CDPPage) ShowOverlay(ctx context.Context, ref NodeRef) error {
	return p.call(ctx, fmt.Sprintf("window.__inspectai.showOverlay(%d)", ref))
}

// HideOverlay removes the overlay if present.
func (p *CDPPage) HideOverlay(ctx context.Context) error {
	return p.call(ctx, "window.__inspectai.hideOverlay()")
}

var _ Page = (*CDPPage)(nil)
