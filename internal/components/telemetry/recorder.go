package telemetry

import "strings"

type Kind int

const (
	KindBroken Kind = iota
	KindWarning
	KindDebug
	KindCount
)

type Report struct {
	Kind   Kind
	Id     string
	Params []any
	Count  int64
}

// TestAPI records every report it receives so tests can assert on them.
// It also forwards to SlogAPI so `go test -v` output stays readable.
type TestAPI struct {
	Reports []Report
}

func (t *TestAPI) ReportBroken(id string, params ...any) {
	t.Reports = append(t.Reports, Report{Kind: KindBroken, Id: id, Params: params})
	SlogAPI{}.ReportBroken(id, params...)
}

func (t *TestAPI) ReportWarning(id string, params ...any) {
	t.Reports = append(t.Reports, Report{Kind: KindWarning, Id: id, Params: params})
	SlogAPI{}.ReportWarning(id, params...)
}

func (t *TestAPI) ReportDebug(msg string, params ...any) {
	t.Reports = append(t.Reports, Report{Kind: KindDebug, Id: msg, Params: params})
}

func (t *TestAPI) ReportCount(id string, count int64) {
	t.Reports = append(t.Reports, Report{Kind: KindCount, Id: id, Count: count})
}

// Find returns the reports of the given kind whose id ends with suffix.
func (t *TestAPI) Find(kind Kind, suffix string) []Report {
	var out []Report
	for _, r := range t.Reports {
		if r.Kind == kind && strings.HasSuffix(r.Id, suffix) {
			out = append(out, r)
		}
	}
	return out
}
