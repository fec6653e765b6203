package cleaner

// NoopCleaner passes content through without modification. The clean and
// ask commands use it for --raw, sending the element exactly as picked.
type NoopCleaner struct{}

// NewNoop creates a new no-op cleaner.
func NewNoop() *NoopCleaner {
	return &NoopCleaner{}
}

// Clean returns the input unchanged.
func (c *NoopCleaner) Clean(html string) (string, error) {
	return html, nil
}

// Name returns the cleaner type.
func (c *NoopCleaner) Name() string {
	return "noop"
}

var _ Cleaner = (*NoopCleaner)(nil)
