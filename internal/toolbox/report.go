package toolbox

import (
	"fmt"
	"math"
	"strings"

	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"
)

func reportSection(title string, children ...Node) Node {
	return Section(Class("report-section"), H3(Text(title)), Group(children))
}

func dataTable(headers []string, rows [][]string) Node {
	head := make([]Node, len(headers))
	for i, h := range headers {
		head[i] = Th(Text(h))
	}
	body := make([]Node, len(rows))
	for i, r := range rows {
		cells := make([]Node, len(r))
		for j, c := range r {
			cells[j] = Td(Text(c))
		}
		body[i] = Tr(Group(cells))
	}
	return Table(Class("data-table"), THead(Tr(Group(head))), TBody(Group(body)))
}

func figure(b64, alt string) Node {
	return Div(Class("figure"), Img(Src("data:image/png;base64,"+b64), Alt(alt)))
}

func note(format string, args ...any) Node {
	return P(Class("note"), Textf(format, args...))
}

func render(title string, nodes ...Node) (string, error) {
	var b strings.Builder
	doc := Div(Class("report"), H2(Text(title)), Group(nodes))
	if err := doc.Render(&b); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return b.String(), nil
}

func num(x float64) string {
	switch {
	case math.IsNaN(x):
		return "NA"
	case math.IsInf(x, 1):
		return "inf"
	case math.IsInf(x, -1):
		return "-inf"
	}
	return fmt.Sprintf("%.4g", x)
}

func pval(p float64) string {
	switch {
	case math.IsNaN(p):
		return "NA"
	case p < 0.0001:
		return "<0.0001"
	}
	return fmt.Sprintf("%.4f", p)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
