// Package diff computes a line-level comparison between two revision
// snapshots. The comparison is positional: lines are matched by index, not
// by longest common subsequence, so an insertion near the top of the target
// shows up as removed/added pairs for everything below it. Comparison
// output shape depends on this, so it must not be swapped for an LCS diff
// without versioning the result.
package diff

import (
	"html"
	"regexp"
	"strings"
)

type SegmentType string

const (
	SegmentUnchanged SegmentType = "unchanged"
	SegmentAdded     SegmentType = "added"
	SegmentRemoved   SegmentType = "removed"
)

// Segment is one labeled line of a comparison.
type Segment struct {
	Type SegmentType `json:"type"`
	Text string      `json:"text"`
}

var (
	blockBreakRe = regexp.MustCompile(`(?i)<\s*(?:/p|/h[1-6]|/div|/li|/blockquote|/pre|/tr|br\s*/?)\s*>`)
	tagRe        = regexp.MustCompile(`<[^>]*>`)
)

// Blocks normalizes rich-text content into its comparison lines: closing
// block-level tags and line breaks become line boundaries, inline markup is
// stripped, entities are decoded, and blank lines are dropped.
func Blocks(content string) []string {
	normalized := blockBreakRe.ReplaceAllString(content, "\n")
	normalized = tagRe.ReplaceAllString(normalized, "")
	normalized = html.UnescapeString(normalized)
	normalized = strings.ReplaceAll(normalized, "\r\n", "\n")

	var blocks []string
	for _, line := range strings.Split(normalized, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		blocks = append(blocks, strings.Join(fields, " "))
	}
	return blocks
}

// PlainText flattens rich-text content to a single normalized line. The
// draft preview is derived from it.
func PlainText(content string) string {
	return strings.Join(Blocks(content), " ")
}

// Compare walks the normalized lines of both snapshots by index. Equal
// lines emit one unchanged segment; differing positions emit the base line
// as removed (when present) followed by the target line as added (when
// present). Two empty snapshots produce an empty result.
func Compare(base, target string) []Segment {
	baseLines := Blocks(base)
	targetLines := Blocks(target)

	max := len(baseLines)
	if len(targetLines) > max {
		max = len(targetLines)
	}

	segments := make([]Segment, 0, max)
	for i := 0; i < max; i++ {
		var baseLine, targetLine string
		hasBase := i < len(baseLines)
		hasTarget := i < len(targetLines)
		if hasBase {
			baseLine = baseLines[i]
		}
		if hasTarget {
			targetLine = targetLines[i]
		}

		if hasBase && hasTarget && baseLine == targetLine {
			segments = append(segments, Segment{Type: SegmentUnchanged, Text: baseLine})
			continue
		}
		if hasBase {
			segments = append(segments, Segment{Type: SegmentRemoved, Text: baseLine})
		}
		if hasTarget {
			segments = append(segments, Segment{Type: SegmentAdded, Text: targetLine})
		}
	}
	return segments
}
