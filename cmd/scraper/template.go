package main

import (
	"sort"
	"text/template"
	"time"

	"github.com/geniass/shelf-dealz/pkg/config"
	"github.com/geniass/shelf-dealz/pkg/product"
	"github.com/geniass/shelf-dealz/pkg/scraper"
)

const topDeals = 10

type summary struct {
	Site        string
	RunID       string
	Target      int
	Records     int
	Discards    int
	Duplicates  int
	Collections int
	Interrupted bool
	Duration    time.Duration
	Reasons     []reasonCount
	Deals       []product.Record
}

type reasonCount struct {
	Reason string
	Count  int
}

func newSummary(cfg *config.Config, res *scraper.Result) summary {
	s := summary{
		Site:        cfg.Site.Name,
		RunID:       res.RunID,
		Target:      cfg.Target,
		Records:     len(res.Records),
		Discards:    len(res.Discards),
		Duplicates:  res.Duplicates,
		Collections: len(res.CollectionURLs),
		Interrupted: res.Interrupted,
		Duration:    res.FinishedAt.Sub(res.StartedAt).Round(time.Second),
	}

	counts := map[string]int{}
	for _, d := range res.Discards {
		counts[d.Reason]++
	}
	for reason, n := range counts {
		s.Reasons = append(s.Reasons, reasonCount{reason, n})
	}
	sort.Slice(s.Reasons, func(i, j int) bool { return s.Reasons[i].Reason < s.Reasons[j].Reason })

	for _, r := range res.Records {
		if r.DiscountPct.IsPositive() {
			s.Deals = append(s.Deals, r)
		}
	}
	sort.SliceStable(s.Deals, func(i, j int) bool { return s.Deals[i].DiscountPct.GreaterThan(s.Deals[j].DiscountPct) })
	if len(s.Deals) > topDeals {
		s.Deals = s.Deals[:topDeals]
	}
	return s
}

var markdownTemplate = template.Must(template.New("markdownTemplate").Parse(
	`
# {{ .Site }} Dealz
Run ` + "`{{ .RunID }}`" + ` took {{ .Duration }}{{ if .Interrupted }} and was **interrupted**{{ end }}.

Records: {{ .Records }} of {{ .Target }}

Duplicates skipped: {{ .Duplicates }}

Collections seen: {{ .Collections }}

Discarded: {{ .Discards }}
{{ range .Reasons }}
- {{ .Reason }}: {{ .Count }}
{{- end }}
{{ if .Deals }}
## Top deals
{{ range .Deals }}
- [{{ .Name }}]({{ .URL }}) S/ {{ .OnlinePrice.StringFixed 2 }}, was S/ {{ .RegularPrice.StringFixed 2 }} ({{ .DiscountPct.StringFixed 2 }}% off)
{{- end }}
{{- end }}
`,
))
