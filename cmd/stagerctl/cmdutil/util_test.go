package cmdutil

import (
	"bytes"
	"testing"
	"time"

	"github.com/marmos91/stager/internal/cli/credentials"
	"github.com/marmos91/stager/internal/cli/output"
)

func TestParseCommaSeparatedList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: nil},
		{name: "single item", input: "Failed", expected: []string{"Failed"}},
		{name: "multiple items", input: "New,Waiting,Staged", expected: []string{"New", "Waiting", "Staged"}},
		{name: "items with spaces", input: "New, Waiting , Staged", expected: []string{"New", "Waiting", "Staged"}},
		{name: "empty items filtered out", input: "New,,Staged,", expected: []string{"New", "Staged"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseCommaSeparatedList(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("ParseCommaSeparatedList(%q) = %v, want %v", tt.input, result, tt.expected)
			}
			for i, v := range result {
				if v != tt.expected[i] {
					t.Errorf("ParseCommaSeparatedList(%q)[%d] = %q, want %q", tt.input, i, v, tt.expected[i])
				}
			}
		})
	}
}

func TestParseTimeBound(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "empty", input: "", want: time.Time{}},
		{name: "rfc3339", input: "2026-02-28T10:00:00Z", want: time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC)},
		{name: "duration", input: "2h", want: now.Add(-2 * time.Hour)},
		{name: "negative duration", input: "-2h", wantErr: true},
		{name: "garbage", input: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimeBound(tt.input, now)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseTimeBound(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimeBound(%q) error = %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTimeBound(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestWindowFlags(t *testing.T) {
	f := WindowFlags{Limit: 10, Desc: true, Newer: "2026-01-01T00:00:00Z"}
	w, err := f.Window()
	if err != nil {
		t.Fatalf("Window() error = %v", err)
	}
	if w.Limit != 10 || !w.Descending || w.Newer.IsZero() || !w.Older.IsZero() {
		t.Errorf("unexpected window %+v", w)
	}

	f = WindowFlags{Limit: -1}
	if _, err := f.Window(); err == nil {
		t.Error("expected error for negative limit")
	}
}

func TestUpdateResultSkipped(t *testing.T) {
	r := UpdateResult{Requested: []string{"a", "b", "c"}, Updated: []string{"b"}}
	skipped := r.Skipped()
	if len(skipped) != 2 || skipped[0] != "a" || skipped[1] != "c" {
		t.Errorf("Skipped() = %v, want [a c]", skipped)
	}
}

type testTableRenderer struct {
	headers []string
	rows    [][]string
}

func (t testTableRenderer) Headers() []string { return t.headers }
func (t testTableRenderer) Rows() [][]string  { return t.rows }

func TestPrintOutput(t *testing.T) {
	renderer := testTableRenderer{headers: []string{"ID"}, rows: [][]string{{"t1"}, {"t2"}}}
	data := []string{"t1", "t2"}

	t.Run("yaml", func(t *testing.T) {
		Flags.Output = "yaml"
		var buf bytes.Buffer
		if err := PrintOutput(&buf, data, false, "No tasks", renderer); err != nil {
			t.Fatalf("PrintOutput() error = %v", err)
		}
		if buf.String() != "- t1\n- t2\n" {
			t.Errorf("PrintOutput() = %q", buf.String())
		}
	})

	t.Run("json", func(t *testing.T) {
		Flags.Output = "json"
		var buf bytes.Buffer
		if err := PrintOutput(&buf, data, false, "No tasks", renderer); err != nil {
			t.Fatalf("PrintOutput() error = %v", err)
		}
		if !bytes.Contains(buf.Bytes(), []byte(`"t1"`)) {
			t.Errorf("PrintOutput() = %q, missing data", buf.String())
		}
	})

	t.Run("empty table", func(t *testing.T) {
		Flags.Output = "table"
		var buf bytes.Buffer
		if err := PrintOutput(&buf, []string{}, true, "No tasks found.", renderer); err != nil {
			t.Fatalf("PrintOutput() error = %v", err)
		}
		if buf.String() != "No tasks found.\n" {
			t.Errorf("PrintOutput() = %q", buf.String())
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		Flags.Output = "xml"
		if err := PrintOutput(&bytes.Buffer{}, data, false, "", renderer); err == nil {
			t.Error("expected error for invalid format")
		}
	})
	Flags.Output = string(output.FormatTable)
}

func TestResolveTarget(t *testing.T) {
	reset := func(t *testing.T) {
		t.Helper()
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv(EnvServer, "")
		t.Setenv(EnvToken, "")
		*Flags = GlobalFlags{}
		t.Cleanup(func() { *Flags = GlobalFlags{} })
	}

	t.Run("flags", func(t *testing.T) {
		reset(t)
		Flags.ServerURL = "http://flag:8080"
		Flags.Token = "flag-token"

		url, tok, err := ResolveTarget()
		if err != nil {
			t.Fatalf("ResolveTarget() error = %v", err)
		}
		if url != "http://flag:8080" || tok != "flag-token" {
			t.Errorf("got %s %s", url, tok)
		}
	})

	t.Run("environment without context", func(t *testing.T) {
		reset(t)
		t.Setenv(EnvServer, "http://env:8080")

		url, tok, err := ResolveTarget()
		if err != nil {
			t.Fatalf("ResolveTarget() error = %v", err)
		}
		if url != "http://env:8080" || tok != "" {
			t.Errorf("got %s %q", url, tok)
		}
	})

	t.Run("nothing configured", func(t *testing.T) {
		reset(t)
		if _, _, err := ResolveTarget(); err == nil {
			t.Error("expected error without server")
		}
	})

	t.Run("current context", func(t *testing.T) {
		reset(t)
		store, err := credentials.NewStore()
		if err != nil {
			t.Fatalf("NewStore() error = %v", err)
		}
		if err := store.SetContext("prod", &credentials.Context{ServerURL: "http://ctx:8080", Token: "opaque"}); err != nil {
			t.Fatalf("SetContext() error = %v", err)
		}
		Flags.ServerURL = "http://override:8080"

		url, tok, err := ResolveTarget()
		if err != nil {
			t.Fatalf("ResolveTarget() error = %v", err)
		}
		if url != "http://override:8080" || tok != "opaque" {
			t.Errorf("got %s %s", url, tok)
		}
	})
}
