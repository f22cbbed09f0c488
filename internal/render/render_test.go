package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/breeze-rmm/memview/internal/procsnap"
)

func sampleResult() *procsnap.Result {
	rows := []procsnap.Row{
		{PID: 10, Name: "postgres", MemoryBytes: 300 * bytesPerMB, Status: procsnap.StatusSleeping},
		{PID: 2, Name: "a-process-with-a-remarkably-long-name-for-testing", MemoryBytes: 50 * bytesPerMB, Status: procsnap.StatusRunning},
	}
	return &procsnap.Result{
		Rows:             rows,
		Requested:        2,
		Completed:        2,
		TotalMemoryBytes: 350 * bytesPerMB,
		TakenAt:          time.Date(2026, 3, 1, 14, 5, 9, 0, time.Local),
		Sort:             procsnap.DefaultSortKey(),
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"table", FormatTable, false},
		{"", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatMB(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0.0"},
		{bytesPerMB, "1.0"},
		{bytesPerMB + bytesPerMB/2, "1.5"},
		{1536 * bytesPerMB, "1536.0"},
	}
	for _, tt := range tests {
		if got := FormatMB(tt.in); got != tt.want {
			t.Fatalf("FormatMB(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHeader(t *testing.T) {
	got := Header(procsnap.Host{OS: "linux", TotalMemoryBytes: 16 * bytesPerGB})
	want := "System: linux | Total RAM: 16.0 GB"
	if got != want {
		t.Fatalf("Header = %q, want %q", got, want)
	}
	if got := Header(procsnap.Host{OS: "linux", Platform: "ubuntu"}); !strings.HasPrefix(got, "System: ubuntu |") {
		t.Fatalf("Header with platform = %q", got)
	}
}

func TestStatusBar(t *testing.T) {
	res := sampleResult()
	want := "Showing 2 processes | Total Memory: 350.0 MB | Last updated: 14:05:09"
	if got := StatusBar(res, 2); got != want {
		t.Fatalf("StatusBar = %q, want %q", got, want)
	}
	if got := StatusBar(res, 1); !strings.HasPrefix(got, "Showing 1 of 2 processes |") {
		t.Fatalf("limited StatusBar = %q", got)
	}
}

func TestPartialNotice(t *testing.T) {
	res := sampleResult()
	if got := PartialNotice(res); got != "" {
		t.Fatalf("complete result notice = %q, want empty", got)
	}

	res.Requested = 6
	res.TimedOut = 3
	res.Skipped = 1
	res.DeadlineExceeded = true
	got := PartialNotice(res)
	for _, want := range []string{"2 of 6", "deadline", "3 timed out", "1 exited"} {
		if !strings.Contains(got, want) {
			t.Fatalf("notice %q missing %q", got, want)
		}
	}
}

func TestTableTruncatesToWidth(t *testing.T) {
	var buf bytes.Buffer
	if err := Table(&buf, sampleResult().Rows, 60); err != nil {
		t.Fatalf("Table: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "PID") {
		t.Fatalf("header line = %q", lines[0])
	}
	if !strings.Contains(lines[2], "...") {
		t.Fatalf("long name not truncated: %q", lines[2])
	}
	if !strings.Contains(lines[1], "300.0") || !strings.Contains(lines[1], "sleeping") {
		t.Fatalf("row line = %q", lines[1])
	}
}

func TestTableWithoutWidthKeepsNames(t *testing.T) {
	var buf bytes.Buffer
	if err := Table(&buf, sampleResult().Rows, 0); err != nil {
		t.Fatalf("Table: %v", err)
	}
	if !strings.Contains(buf.String(), "a-process-with-a-remarkably-long-name-for-testing") {
		t.Fatalf("name truncated without a width:\n%s", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10c", 10, "exactly10c"},
		{"longer-than-ten", 10, "longer-..."},
		{"abcdef", 2, "ab"},
		{"héllo wörld", 8, "héllo..."},
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestJSONListing(t *testing.T) {
	var buf bytes.Buffer
	l := Listing{Host: procsnap.Host{OS: "linux"}, Snapshot: sampleResult()}
	if err := JSON(&buf, l); err != nil {
		t.Fatalf("JSON: %v", err)
	}

	var back struct {
		Host     procsnap.Host `json:"host"`
		Snapshot struct {
			Rows []procsnap.Row `json:"rows"`
		} `json:"snapshot"`
	}
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Host.OS != "linux" || len(back.Snapshot.Rows) != 2 || back.Snapshot.Rows[0].PID != 10 {
		t.Fatalf("decoded listing = %+v", back)
	}
}

func TestYAMLListing(t *testing.T) {
	var buf bytes.Buffer
	l := Listing{Host: procsnap.Host{OS: "darwin"}, Snapshot: sampleResult()}
	if err := YAML(&buf, l); err != nil {
		t.Fatalf("YAML: %v", err)
	}

	var back map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	snap, ok := back["snapshot"].(map[string]any)
	if !ok {
		t.Fatalf("snapshot key missing:\n%s", buf.String())
	}
	rows, ok := snap["rows"].([]any)
	if !ok || len(rows) != 2 {
		t.Fatalf("rows = %v", snap["rows"])
	}
}

func TestLimitedListingTotalsMatchRows(t *testing.T) {
	res := sampleResult()
	l := NewListing(procsnap.Host{OS: "linux"}, res, 1)

	var buf bytes.Buffer
	if err := JSON(&buf, l); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var back struct {
		Snapshot struct {
			Rows             []procsnap.Row `json:"rows"`
			Completed        int            `json:"completed"`
			TotalMemoryBytes uint64         `json:"totalMemoryBytes"`
		} `json:"snapshot"`
		Limit     int `json:"limit"`
		Collected int `json:"collected"`
	}
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	var sum uint64
	for _, r := range back.Snapshot.Rows {
		sum += r.MemoryBytes
	}
	if len(back.Snapshot.Rows) != 1 || back.Snapshot.Completed != 1 {
		t.Fatalf("rows=%d completed=%d, want 1/1", len(back.Snapshot.Rows), back.Snapshot.Completed)
	}
	if back.Snapshot.TotalMemoryBytes != sum {
		t.Fatalf("totalMemoryBytes = %d, sum of rows = %d", back.Snapshot.TotalMemoryBytes, sum)
	}
	if back.Limit != 1 || back.Collected != 2 {
		t.Fatalf("limit=%d collected=%d, want 1/2", back.Limit, back.Collected)
	}

	full := NewListing(procsnap.Host{}, res, 0)
	if full.Limit != 0 || full.Collected != 0 || full.Snapshot.TotalMemoryBytes != res.TotalMemoryBytes {
		t.Fatalf("unlimited listing = %+v", full)
	}
}
