package mdadapter

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/watchzerg/magnet-picker-sub000/internal/entity"
)

const reportTemplate = `# {{ .Title }}

Picked {{ len .Rows }} of {{ .Pool }} candidates at {{ .CreatedAt.Format "2006-01-02 15:04:05" }}.
Required above {{ .Required }}, preferred above {{ .Preferred }}, target {{ .Target }}.

| # | Name | Size | Score | Tier |
|---|------|------|-------|------|
{{ range $i, $r := .Rows }}| {{ inc $i }} | [{{ cell $r.Name }}]({{ $r.Link }}) | {{ $r.Size }} | {{ $r.Score }} | {{ $r.Tier }} |
{{ end }}
{{ if .Rules }}
## Rules

| Order | Condition | Score | Stop |
|-------|-----------|-------|------|
{{ range .Rules }}| {{ .Order }} | {{ cell .Condition }} | {{ .Delta }} | {{ if .Stop }}yes{{ else }}no{{ end }} |
{{ end }}{{ end }}`

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"inc":  func(i int) int { return i + 1 },
	"cell": escapeCell,
}).Parse(reportTemplate))

// Markdown writes the report as Markdown.
func (a *pageAdapter) Markdown(w io.Writer, report *entity.Report) error {
	if err := reportTmpl.Execute(w, report); err != nil {
		return fmt.Errorf("cannot execute report template: %w", err)
	}

	return nil
}

// HTML writes the report rendered to HTML.
func (a *pageAdapter) HTML(w io.Writer, report *entity.Report) error {
	var buf bytes.Buffer
	if err := a.Markdown(&buf, report); err != nil {
		return err
	}

	if err := a.md.Convert(buf.Bytes(), w); err != nil {
		return fmt.Errorf("cannot render report: %w", err)
	}

	return nil
}

func escapeCell(s string) string {
	r := strings.NewReplacer("|", `\|`, "[", `\[`, "]", `\]`, "\n", " ")

	return r.Replace(s)
}
