package export

import (
	"bytes"
	"html/template"
	"time"
)

var documentTemplate = template.Must(template.New("document").Funcs(template.FuncMap{
	"formatDate": func(t time.Time) string {
		return t.Format("Jan 2, 2006 15:04")
	},
	"safeHTML": func(s string) template.HTML {
		// Draft content is author-supplied HTML and is rendered as-is,
		// matching how the editor displays it.
		return template.HTML(s)
	},
}).Parse(documentTemplateText))

type templateData struct {
	Title    string
	Content  string
	AuthorID string
	Note     string
	SavedAt  time.Time
	Comments []Comment
}

// RenderHTML renders the export page for a revision, with an optional
// feedback appendix.
func RenderHTML(doc Document, comments []Comment) (string, error) {
	var buf bytes.Buffer
	err := documentTemplate.Execute(&buf, templateData{
		Title:    doc.Title,
		Content:  doc.ContentHTML,
		AuthorID: doc.AuthorID,
		Note:     doc.Note,
		SavedAt:  doc.SavedAt,
		Comments: comments,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

const documentTemplateText = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .comment { background: #f5f5f5; padding: 1rem; margin: 1rem 0; border-left: 3px solid #333; }
    .comment .quote { color: #666; font-style: italic; }
    .comment .byline { color: #666; font-size: 0.85em; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">Saved by {{.AuthorID}} on {{formatDate .SavedAt}}{{if .Note}} &middot; {{.Note}}{{end}}</div>
  <div>{{.Content | safeHTML}}</div>
  {{if .Comments}}
  <h2>Feedback</h2>
  {{range .Comments}}
  <div class="comment">
    {{if .Quote}}<p class="quote">&ldquo;{{.Quote}}&rdquo;</p>{{end}}
    <p>{{.Body}}</p>
    <p class="byline">{{.AuthorID}} &middot; {{.Placement}} &middot; {{formatDate .CreatedAt}}</p>
  </div>
  {{end}}
  {{end}}
</body>
</html>`
