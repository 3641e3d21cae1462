// Package export renders a draft revision as a standalone HTML page or a
// PDF printed through headless Chrome.
package export

import (
	"errors"
	"time"
)

// Format is the export output format.
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

// ErrPDFDependencyMissing is returned when no Chromium binary is available
// for PDF rendering.
var ErrPDFDependencyMissing = errors.New("pdf export dependency missing")

// ErrUnsupportedFormat is returned for formats the service cannot render.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Document is the revision snapshot being exported.
type Document struct {
	Title       string
	ContentHTML string
	AuthorID    string
	Note        string
	SavedAt     time.Time
}

// Comment is one feedback entry included in the export appendix.
type Comment struct {
	AuthorID  string
	Body      string
	Placement string
	Quote     string
	CreatedAt time.Time
}

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}
