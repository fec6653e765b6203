// Package cleaner defines the pipeline stage that turns picked or scraped
// HTML into the payload sent to an AI backend.
//
// Implementations live in subpackages: sanitize produces a cleaned element
// tree (HTML), markdown folds a tree into a Markdown document.
package cleaner

// Cleaner transforms an HTML fragment into a reduced representation.
type Cleaner interface {
	// Clean transforms the input HTML. The output format depends on the
	// implementation (cleaned HTML, markdown).
	Clean(html string) (string, error)

	// Name returns the cleaner type for logging/debugging.
	Name() string
}
