package scrape

import "errors"

var (
	// ErrContainerNotFound means none of the locator's selectors matched.
	ErrContainerNotFound = errors.New("answer container not found")
	// ErrContentTooShort means the container exists but has not rendered enough text yet.
	ErrContentTooShort = errors.New("answer content too short")
	// ErrExtractionTimeout means polling gave up without usable content.
	ErrExtractionTimeout = errors.New("google ai response timed out or could not be parsed")
	// ErrSafetyTimeout means the whole search request overran its deadline.
	ErrSafetyTimeout = errors.New("google ai mode request timed out")
	// ErrBlocked means the search page served a captcha or rate-limit page.
	ErrBlocked = errors.New("search page blocked")
)
