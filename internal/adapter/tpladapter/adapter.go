package tpladapter

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"time"

	_ "embed"

	"github.com/spf13/afero"
	"github.com/watchzerg/magnet-picker-sub000/internal/entity"
)

const (
	templateNameTier = "TIER"

	funcNameTier = "tier"
	funcNameDate = "date"
)

//go:embed report.html
var defaultTemplate string

// BodyRenderer renders the report itself, without the surrounding page.
type BodyRenderer interface {
	HTML(w io.Writer, report *entity.Report) error
}

type pageData struct {
	Report *entity.Report
	Body   template.HTML
}

type tplAdapter struct {
	tpl  *template.Template
	body BodyRenderer
}

// NewTplAdapter wraps body into an HTML page. An empty templateFileName selects the built in
// template.
func NewTplAdapter(fs afero.Fs, templateFileName string, body BodyRenderer) (*tplAdapter, error) {
	a := &tplAdapter{body: body}
	tpl := template.New("").Funcs(template.FuncMap{
		funcNameTier: a.renderTier,
		funcNameDate: func(t time.Time) string { return t.Format(time.DateTime) },
	})

	src := defaultTemplate
	if templateFileName != "" {
		data, err := afero.ReadFile(fs, templateFileName)
		if err != nil {
			return nil, fmt.Errorf("cannot read template: %w", err)
		}

		src = string(data)
	}

	if _, err := tpl.Parse(src); err != nil {
		return nil, fmt.Errorf("cannot parse template: %w", err)
	}

	a.tpl = tpl

	return a, nil
}

func (a *tplAdapter) HTML(w io.Writer, report *entity.Report) error {
	body := bytes.Buffer{}
	if err := a.body.HTML(&body, report); err != nil {
		return err
	}

	if err := a.tpl.Execute(w, pageData{Report: report, Body: template.HTML(body.String())}); err != nil {
		return fmt.Errorf("cannot execute template: %w", err)
	}

	return nil
}

// renderTier runs the optional TIER template for a tier name and count. Templates without it
// render the plain count.
func (a *tplAdapter) renderTier(name string, count int) (template.HTML, error) {
	tpl := a.tpl.Lookup(templateNameTier)
	if tpl == nil {
		return template.HTML(template.HTMLEscapeString(fmt.Sprintf("%s: %d", name, count))), nil
	}

	buf := bytes.Buffer{}
	if err := tpl.Execute(&buf, map[string]any{"Name": name, "Count": count}); err != nil {
		return "", fmt.Errorf("cannot execute template %s: %w", templateNameTier, err)
	}

	return template.HTML(buf.String()), nil
}
