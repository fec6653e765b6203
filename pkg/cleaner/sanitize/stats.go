package sanitize

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Stats captures what a sanitize pass removed.
type Stats struct {
	InputBytes  int `json:"input_bytes"`
	OutputBytes int `json:"output_bytes"`

	ElementsRemoved     map[string]int `json:"elements_removed"` // tag -> count
	ElementsKept        int            `json:"elements_kept"`
	CommentsRemoved     int            `json:"comments_removed"`
	AttributesRemoved   int            `json:"attributes_removed"`
	AttributesTruncated int            `json:"attributes_truncated"`

	Duration time.Duration `json:"duration"`
}

// NewStats creates a new Stats instance with initialized maps.
func NewStats() *Stats {
	return &Stats{ElementsRemoved: make(map[string]int)}
}

// RecordRemoval records that an element was removed.
func (s *Stats) RecordRemoval(tag string) {
	s.ElementsRemoved[strings.ToLower(tag)]++
}

// TotalElementsRemoved returns the sum of all removed elements.
func (s *Stats) TotalElementsRemoved() int {
	total := 0
	for _, count := range s.ElementsRemoved {
		total += count
	}
	return total
}

// ReductionPercent returns the percentage reduction in size.
func (s *Stats) ReductionPercent() float64 {
	if s.InputBytes == 0 {
		return 0
	}
	return float64(s.InputBytes-s.OutputBytes) / float64(s.InputBytes) * 100
}

// String returns a human-readable summary of the stats.
func (s *Stats) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Size: %s -> %s (%.1f%% reduction)\n",
		humanize.Bytes(uint64(s.InputBytes)), humanize.Bytes(uint64(s.OutputBytes)), s.ReductionPercent())
	fmt.Fprintf(&sb, "Elements: %d removed, %d kept\n", s.TotalElementsRemoved(), s.ElementsKept)

	if len(s.ElementsRemoved) > 0 {
		tags := make([]string, 0, len(s.ElementsRemoved))
		for tag := range s.ElementsRemoved {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		parts := make([]string, len(tags))
		for i, tag := range tags {
			parts[i] = fmt.Sprintf("%s=%d", tag, s.ElementsRemoved[tag])
		}
		sb.WriteString("Removed by tag: ")
		sb.WriteString(strings.Join(parts, ", "))
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Comments removed: %d\n", s.CommentsRemoved)
	fmt.Fprintf(&sb, "Attributes: %d removed, %d truncated\n", s.AttributesRemoved, s.AttributesTruncated)
	fmt.Fprintf(&sb, "Timing: %v\n", s.Duration.Round(time.Microsecond))

	return sb.String()
}

// Result is the output of SanitizeWithStats.
type Result struct {
	HTML  string `json:"html"`
	Stats *Stats `json:"stats"`
}
