package export

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testDocument() Document {
	return Document{
		Title:       "Chapter One",
		ContentHTML: "<p>It was a dark night.</p>",
		AuthorID:    "u1",
		Note:        "Initial draft",
		SavedAt:     time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC),
	}
}

func TestRenderHTMLIncludesDocument(t *testing.T) {
	html, err := RenderHTML(testDocument(), nil)
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	if !strings.Contains(html, "<h1>Chapter One</h1>") {
		t.Fatalf("missing title in %q", html)
	}
	if !strings.Contains(html, "<p>It was a dark night.</p>") {
		t.Fatalf("content not rendered as HTML in %q", html)
	}
	if !strings.Contains(html, "Saved by u1") {
		t.Fatalf("missing byline in %q", html)
	}
	if !strings.Contains(html, "Initial draft") {
		t.Fatalf("missing revision note in %q", html)
	}
	if strings.Contains(html, "Feedback") {
		t.Fatalf("unexpected feedback appendix in %q", html)
	}
}

func TestRenderHTMLIncludesComments(t *testing.T) {
	comments := []Comment{
		{AuthorID: "u2", Body: "Tighten this sentence", Placement: "inline", Quote: "dark night", CreatedAt: time.Now()},
		{AuthorID: "u3", Body: "Love the opening", Placement: "sidebar", CreatedAt: time.Now()},
	}
	html, err := RenderHTML(testDocument(), comments)
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	if !strings.Contains(html, "Feedback") {
		t.Fatalf("missing feedback appendix in %q", html)
	}
	if !strings.Contains(html, "Tighten this sentence") || !strings.Contains(html, "Love the opening") {
		t.Fatalf("missing comments in %q", html)
	}
	if !strings.Contains(html, "dark night") {
		t.Fatalf("missing quote in %q", html)
	}
}

func TestRenderHTMLFormat(t *testing.T) {
	result, err := Render(FormatHTML, testDocument(), nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if result.Filename != "Chapter-One.html" {
		t.Fatalf("unexpected filename %q", result.Filename)
	}
	if result.MimeType != "text/html; charset=utf-8" {
		t.Fatalf("unexpected mime type %q", result.MimeType)
	}
}

func TestRenderRejectsUnknownFormat(t *testing.T) {
	_, err := Render(Format("docx"), testDocument(), nil)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Chapter One", "Chapter-One"},
		{"a/b\\c:d", "abcd"},
		{"", "draft"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEncodeDataURL(t *testing.T) {
	got := encodeDataURL("<p>a b</p>")
	if strings.Contains(got, " ") || strings.Contains(got, "+") {
		t.Fatalf("spaces must be %%20-encoded, got %q", got)
	}
	if got != "%3Cp%3Ea%20b%3C%2Fp%3E" {
		t.Fatalf("encodeDataURL() = %q", got)
	}
}
