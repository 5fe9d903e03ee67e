package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/toolbox"
	"github.com/TSE-Systems/tse-analytics-sub003/internal/utils"
	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"
)

const reportCSS = `body{font-family:sans-serif;margin:2em;color:#222}
table.data-table{border-collapse:collapse;margin:.5em 0}
table.data-table th,table.data-table td{border:1px solid #ccc;padding:.25em .6em;text-align:right}
table.data-table th{background:#e6f3ff}
.inactive{color:#a33}
.note{color:#666;font-size:.9em}
.figure img{max-width:100%}`

// ReportPage wraps processor results into a standalone HTML document.
// Inactive results are listed with their reason.
func ReportPage(title string, results []toolbox.Result) Node {
	body := make([]Node, 0, len(results))
	for _, r := range results {
		if r.IsActive() {
			body = append(body, Raw(r.Report))
			continue
		}
		body = append(body, Div(Class("inactive"),
			H2(Text(r.Title)),
			P(Textf("Not available: %s", r.Reason)),
		))
	}
	return Doctype(HTML(Lang("en"),
		Head(
			Meta(Charset("utf-8")),
			TitleEl(Text(title)),
			StyleEl(Raw(reportCSS)),
		),
		Body(
			H1(Text(title)),
			P(Class("note"), Textf("Generated %s", time.Now().Format(TimestampLayout))),
			Group(body),
		),
	))
}

// ReportFile renders results to an HTML file at path.
func ReportFile(path, title string, results []toolbox.Result) error {
	var b strings.Builder
	if err := ReportPage(title, results).Render(&b); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return utils.SafeWriteFile(path, []byte(b.String()))
}
