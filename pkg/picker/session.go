package picker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/inspectai/internal/logger"
	"github.com/jmylchreest/inspectai/pkg/cleaner/sanitize"
)

// Classes applied to page elements while picking.
const (
	HighlightClass = "inspect-ai-highlight"
	SelectedClass  = "inspect-ai-selected"
)

// cleanupTimeout bounds page calls made after the caller's context is done.
const cleanupTimeout = 5 * time.Second

// State is the session's picking state.
type State int

const (
	StateIdle State = iota
	StatePicking
)

func (s State) String() string {
	if s == StatePicking {
		return "picking"
	}
	return "idle"
}

// Selection is the element a user clicked.
type Selection struct {
	ID        string    `json:"id" yaml:"id"`
	Node      NodeRef   `json:"-" yaml:"-"`
	// HTML is the sanitized outer HTML. RawHTML is as read from the page.
	HTML      string    `json:"html" yaml:"html"`
	RawHTML   string    `json:"rawHtml,omitempty" yaml:"raw_html,omitempty"`
	ParentTag string    `json:"parentTag,omitempty" yaml:"parent_tag,omitempty"`
	At        time.Time `json:"at" yaml:"at"`
}

// Text returns the cleaned markup.
func (s *Selection) Text() string {
	return s.HTML
}

// Session drives picking on one page. Only one Pick runs at a time.
type Session struct {
	page        Page
	sanitizer   *sanitize.Sanitizer
	showOverlay bool

	mu       sync.Mutex
	state    State
	selected NodeRef
}

// Option configures a Session.
type Option func(*Session)

// WithSanitizer overrides the default sanitizer.
func WithSanitizer(s *sanitize.Sanitizer) Option {
	return func(sess *Session) {
		sess.sanitizer = s
	}
}

// WithOverlay controls whether the quick-actions overlay is shown after a click.
func WithOverlay(show bool) Option {
	return func(sess *Session) {
		sess.showOverlay = show
	}
}

// NewSession creates an idle session on page.
func NewSession(page Page, opts ...Option) *Session {
	s := &Session{
		page:        page,
		sanitizer:   sanitize.New(nil),
		showOverlay: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pick waits for the user to click an element and returns it. It returns
// ErrSelectionCancelled on Escape, ErrTransportDisconnected if the page goes
// away, or ctx.Err() if ctx ends first. The page is disarmed and the
// highlight removed on every path.
func (s *Session) Pick(ctx context.Context) (*Selection, error) {
	s.mu.Lock()
	if s.state == StatePicking {
		s.mu.Unlock()
		return nil, ErrAlreadyPicking
	}
	s.state = StatePicking
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
	}()

	id := uuid.NewString()
	log := logger.With("session", id)

	s.Release(ctx)
	s.drainEvents()

	if err := s.page.Arm(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArmFailed, err)
	}
	log.Debug("picking started")

	var hovered NodeRef
	disarmed := false
	disarm := func() {
		if disarmed {
			return
		}
		disarmed = true
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if hovered != 0 {
			if err := s.page.RemoveClass(cctx, hovered, HighlightClass); err != nil {
				log.Debug("failed to clear highlight", "error", err)
			}
			hovered = 0
		}
		if err := s.page.Disarm(cctx); err != nil {
			log.Debug("failed to disarm page", "error", err)
		}
	}
	defer disarm()

	events := s.page.Events()
	for {
		select {
		case <-ctx.Done():
			log.Debug("picking aborted", "error", ctx.Err())
			return nil, ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return nil, ErrTransportDisconnected
			}
			switch ev.Kind {
			case EventHover:
				if ev.Node == hovered {
					continue
				}
				if hovered != 0 {
					if err := s.page.RemoveClass(ctx, hovered, HighlightClass); err != nil {
						log.Debug("failed to clear highlight", "error", err)
					}
				}
				hovered = ev.Node
				if err := s.page.AddClass(ctx, hovered, HighlightClass); err != nil {
					log.Debug("failed to highlight", "error", err)
				}

			case EventUnhover:
				if ev.Node != hovered || hovered == 0 {
					continue
				}
				if err := s.page.RemoveClass(ctx, hovered, HighlightClass); err != nil {
					log.Debug("failed to clear highlight", "error", err)
				}
				hovered = 0

			case EventClick:
				disarm()
				sel, err := s.selectNode(ctx, ev.Node)
				if err != nil {
					return nil, err
				}
				sel.ID = id
				log.Debug("element selected", "node", sel.Node, "size", len(sel.HTML))
				return sel, nil

			case EventEscape:
				log.Debug("picking cancelled")
				return nil, ErrSelectionCancelled

			case EventDetach:
				log.Debug("page detached while picking")
				return nil, ErrTransportDisconnected
			}
		}
	}
}

func (s *Session) selectNode(ctx context.Context, ref NodeRef) (*Selection, error) {
	if err := s.page.AddClass(ctx, ref, SelectedClass); err != nil {
		return nil, fmt.Errorf("failed to mark selection: %w", err)
	}

	raw, parent, err := s.page.OuterHTML(ctx, ref)
	if err == nil && raw == "" {
		err = ErrNodeGone
	}
	var clean string
	if err == nil {
		clean, err = s.sanitizer.SanitizeFragment(raw, parent)
	}
	if err != nil {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		_ = s.page.RemoveClass(cctx, ref, SelectedClass)
		return nil, err
	}

	s.mu.Lock()
	s.selected = ref
	s.mu.Unlock()

	if s.showOverlay {
		if err := s.page.ShowOverlay(ctx, ref); err != nil {
			logger.Debug("failed to show overlay", "error", err)
		}
	}
	return &Selection{
		Node:      ref,
		HTML:      clean,
		RawHTML:   raw,
		ParentTag: parent,
		At:        time.Now(),
	}, nil
}

// Release clears the current selection mark and hides the overlay.
func (s *Session) Release(ctx context.Context) {
	s.mu.Lock()
	ref := s.selected
	s.selected = 0
	s.mu.Unlock()

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := s.page.HideOverlay(cctx); err != nil {
		logger.Debug("failed to hide overlay", "error", err)
	}
	if ref != 0 {
		if err := s.page.RemoveClass(cctx, ref, SelectedClass); err != nil {
			logger.Debug("failed to clear selection", "error", err)
		}
	}
}

// drainEvents discards input left over from before this session armed.
func (s *Session) drainEvents() {
	events := s.page.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind == EventDetach {
				logger.Debug("discarding stale detach event")
			}
		default:
			return
		}
	}
}
