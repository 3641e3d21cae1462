package export

import "fmt"

// Render produces the export artifact for a revision snapshot in the
// requested format.
func Render(format Format, doc Document, comments []Comment) (*Result, error) {
	html, err := RenderHTML(doc, comments)
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	switch format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(doc.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return renderPDF(html, doc.Title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
