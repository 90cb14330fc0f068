package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Renderer renders the transactional email bodies embedded in the package.
type Renderer struct {
	templates *template.Template
}

// NewRenderer initialises a Renderer by parsing all embedded templates.
func NewRenderer() (*Renderer, error) {
	t, err := template.New("mail").Funcs(template.FuncMap{}).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{templates: t}, nil
}

// Render executes the named template with the provided data and returns the
// rendered HTML. The name is the template file without its .tmpl extension.
func (r *Renderer) Render(name string, data any) (string, error) {
	if r == nil || r.templates == nil {
		return "", fmt.Errorf("nil renderer")
	}

	buf := bytes.NewBuffer(nil)
	if err := r.templates.ExecuteTemplate(buf, name+".tmpl", data); err != nil {
		return "", err
	}

	return buf.String(), nil
}
