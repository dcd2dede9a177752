package web

import (
	"embed"
	"html/template"
	"io"
	"time"

	dataio "github.com/geniass/shelf-dealz/pkg/io"
)

//go:embed templates
var templatesFs embed.FS

type BaseContext struct {
	PathPrefix string
	Site       string
}

type DealzContext struct {
	BaseContext
	Title       string
	LastUpdated time.Time
	Products    []dataio.RecordWithPath
}

func (c DealzContext) FormattedLastUpdated() string {
	loc, err := time.LoadLocation("America/Lima")
	if err != nil {
		loc = time.UTC
	}
	return c.LastUpdated.In(loc).Format("2006-01-02T15:04:05 MST")
}

func RenderDealz(w io.Writer, c DealzContext) error {
	return render(w, "templates/dealz.html.tpl", c)
}

func RenderHome(w io.Writer, c BaseContext) error {
	return render(w, "templates/index.html.tpl", c)
}

func render(w io.Writer, page string, data any) error {
	t, err := template.ParseFS(templatesFs, page)
	if err != nil {
		return err
	}
	t, err = t.ParseFS(templatesFs, "templates/common/*")
	if err != nil {
		return err
	}
	return t.Execute(w, data)
}
