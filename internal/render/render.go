// Package render formats snapshots for the terminal and for machine
// consumption.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/breeze-rmm/memview/internal/procsnap"
)

// Format is an output format for the list command.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a user-supplied output format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "", "text":
		return FormatTable, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use table, json, yaml)", s)
	}
}

// Listing is the document emitted by the structured formats. When rows were
// cut by a limit, Snapshot covers only the emitted rows and Collected holds
// the row count of the full snapshot.
type Listing struct {
	Host      procsnap.Host    `json:"host" yaml:"host"`
	Snapshot  *procsnap.Result `json:"snapshot" yaml:"snapshot"`
	Limit     int              `json:"limit,omitempty" yaml:"limit,omitempty"`
	Collected int              `json:"collected,omitempty" yaml:"collected,omitempty"`
}

// NewListing builds the structured document for res, keeping at most limit
// rows (0 means all).
func NewListing(host procsnap.Host, res *procsnap.Result, limit int) Listing {
	l := Listing{Host: host, Snapshot: res.Limit(limit)}
	if len(l.Snapshot.Rows) < len(res.Rows) {
		l.Limit = limit
		l.Collected = res.Completed
	}
	return l
}

const (
	bytesPerMB = 1024 * 1024
	bytesPerGB = 1024 * 1024 * 1024

	minNameWidth = 12
	// pid, memory and status columns plus tabwriter padding
	fixedColumnsWidth = 8 + 12 + 10 + 3*2
)

// FormatMB renders a byte count as megabytes with one decimal.
func FormatMB(b uint64) string {
	return strconv.FormatFloat(float64(b)/bytesPerMB, 'f', 1, 64)
}

// Header is the one-line system summary shown above the table.
func Header(h procsnap.Host) string {
	system := h.OS
	if h.Platform != "" {
		system = h.Platform
	}
	return fmt.Sprintf("System: %s | Total RAM: %.1f GB", system, float64(h.TotalMemoryBytes)/bytesPerGB)
}

// StatusBar summarises a result the way the bottom line of the table does.
// shown is the number of rows actually printed.
func StatusBar(res *procsnap.Result, shown int) string {
	count := fmt.Sprintf("%d processes", len(res.Rows))
	if shown < len(res.Rows) {
		count = fmt.Sprintf("%d of %d processes", shown, len(res.Rows))
	}
	return fmt.Sprintf("Showing %s | Total Memory: %s MB | Last updated: %s",
		count, FormatMB(res.TotalMemoryBytes), res.TakenAt.Local().Format(time.TimeOnly))
}

// PartialNotice explains a short result, or returns "" when every
// enumerated process produced a row.
func PartialNotice(res *procsnap.Result) string {
	if !res.Partial() {
		return ""
	}
	var reasons []string
	if res.DeadlineExceeded {
		reasons = append(reasons, "collection deadline reached")
	}
	if res.TimedOut > 0 {
		reasons = append(reasons, fmt.Sprintf("%d timed out", res.TimedOut))
	}
	if res.Skipped > 0 {
		reasons = append(reasons, fmt.Sprintf("%d exited or inaccessible", res.Skipped))
	}
	msg := fmt.Sprintf("Partial results: %d of %d processes collected", res.Completed, res.Requested)
	if len(reasons) > 0 {
		msg += " (" + strings.Join(reasons, ", ") + ")"
	}
	return msg
}

// Table writes rows as an aligned table. When width is positive, names are
// truncated so a row fits on one terminal line.
func Table(w io.Writer, rows []procsnap.Row, width int) error {
	nameWidth := 0
	if width > 0 {
		nameWidth = max(width-fixedColumnsWidth, minNameWidth)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tNAME\tMEMORY (MB)\tSTATUS")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.PID, truncate(r.Name, nameWidth), FormatMB(r.MemoryBytes), r.Status)
	}
	return tw.Flush()
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// YAML writes v as a YAML document.
func YAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// TerminalWidth returns the column count of f, preferring $COLUMNS, or 0 when
// f is not a terminal.
func TerminalWidth(f *os.File) int {
	if cols, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && cols > 0 {
		return cols
	}
	if !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
		return w
	}
	return 0
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
