package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"

	"streamhub/internal/domain"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

// noteTemplates are parsed once; every one has a _subject.txt, .html and .txt file.
var noteTemplates = []string{domain.TemplateJoinRequest, domain.TemplateRequestDecision}

type noteTemplate struct {
	subject *texttemplate.Template
	html    *template.Template
	text    *texttemplate.Template
}

// templateRenderer renders the join-request and request-decision emails from
// the embedded templates folder. HTML bodies escape requester comments.
type templateRenderer struct {
	templates map[string]noteTemplate
}

// NewTemplateRenderer parses the embedded notification templates. It panics if
// one is missing or malformed, since they ship inside the binary.
func NewTemplateRenderer() domain.EmailTemplateRenderer {
	r := &templateRenderer{templates: make(map[string]noteTemplate, len(noteTemplates))}
	for _, name := range noteTemplates {
		r.templates[name] = noteTemplate{
			subject: texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/"+name+"_subject.txt")),
			html:    template.Must(template.ParseFS(templateFS, "templates/"+name+".html")),
			text:    texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/"+name+".txt")),
		}
	}
	return r
}

// Render executes one of the notification templates (domain.TemplateJoinRequest,
// domain.TemplateRequestDecision) with data and returns subject, html, and text bodies.
func (r *templateRenderer) Render(templateName string, data any) (subject, htmlBody, textBody string, err error) {
	t, ok := r.templates[templateName]
	if !ok {
		return "", "", "", fmt.Errorf("unknown email template %q", templateName)
	}
	var buf bytes.Buffer
	if err := t.subject.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("render %s subject: %w", templateName, err)
	}
	subject = strings.TrimSpace(buf.String())
	buf.Reset()
	if err := t.html.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("render %s html: %w", templateName, err)
	}
	htmlBody = buf.String()
	buf.Reset()
	if err := t.text.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("render %s text: %w", templateName, err)
	}
	return subject, htmlBody, buf.String(), nil
}
