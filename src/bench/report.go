package bench

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"
)

// Report collects the measurements of one benchmark run.
type Report struct {
	Variant      string
	Records      int
	Measurements []Measurement
}

func NewReport(variant string, records int) *Report {
	return &Report{Variant: variant, Records: records}
}

func (r *Report) Add(m Measurement) {
	r.Measurements = append(r.Measurements, m)
}

// WriteMeasurement prints a single measurement as soon as it is taken: its
// timing line followed by its preview rows.
func WriteMeasurement(w io.Writer, m Measurement) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s time: %s", m.Operation, formatElapsed(m.Elapsed))
	switch {
	case m.Update != nil:
		fmt.Fprintf(&b, " (%s)", m.Update)
	case m.Summary != "":
		fmt.Fprintf(&b, " (%s)", m.Summary)
	case m.Rows >= 0:
		fmt.Fprintf(&b, " (%d rows)", m.Rows)
	}
	b.WriteString("\n")
	for _, line := range m.Preview {
		b.WriteString("\t" + line + "\n")
	}
	if m.Rows > len(m.Preview) {
		fmt.Fprintf(&b, "\t... %d more\n", m.Rows-len(m.Preview))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Render writes the results banner and a summary table of every measurement.
func (r *Report) Render(w io.Writer) error {
	title := strings.ToUpper(r.Variant) + " RESULTS"
	banner := strings.Repeat("==", 10)
	if _, err := fmt.Fprintf(w, "\n%s %s %s\n\n", banner, title, banner); err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.Style().Format.Header = text.FormatDefault

	t.AppendHeader(table.Row{"Operation", "Time", "Rows", "Matched", "Modified"})
	for _, m := range r.Measurements {
		rows, matched, modified := "-", "-", "-"
		if m.Rows >= 0 {
			rows = strconv.Itoa(m.Rows)
		}
		if m.Update != nil {
			matched = strconv.FormatInt(m.Update.Matched, 10)
			modified = strconv.FormatInt(m.Update.Modified, 10)
		}
		t.AppendRow(table.Row{m.Operation, formatElapsed(m.Elapsed), rows, matched, modified})
	}
	t.Render()

	_, err := fmt.Fprintf(w, "\n%s END OF %s %s\n\n", strings.Repeat("==", 8), title, strings.Repeat("==", 8))
	return err
}

func formatElapsed(d time.Duration) string {
	return d.Round(time.Microsecond).String()
}
