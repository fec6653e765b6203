package picker

import "errors"

var (
	// ErrAlreadyPicking is returned when Pick is called on a session that is picking.
	ErrAlreadyPicking = errors.New("picking already in progress")
	// ErrSelectionCancelled is returned when the user pressed Escape.
	ErrSelectionCancelled = errors.New("selection cancelled")
	// ErrTransportDisconnected is returned when the page went away mid-pick.
	ErrTransportDisconnected = errors.New("page connection lost")
	// ErrArmFailed is returned when the page could not start reporting events.
	ErrArmFailed = errors.New("could not start picking on this page")
	// ErrNodeGone is returned when a selected element left the document.
	ErrNodeGone = errors.New("element no longer in the document")
)
