package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/timvw/pane-gateway/internal/model"
	"github.com/timvw/pane-gateway/internal/mux"
)

type fakeMux struct {
	sessions []model.SessionInfo
	panes    map[string]string
	captured []string
}

func (f *fakeMux) Name() string { return "fake" }

func (f *fakeMux) ListSessions(context.Context) ([]model.SessionInfo, error) {
	return f.sessions, nil
}

func (f *fakeMux) WindowLayouts(context.Context, string) ([]mux.WindowLayout, error) {
	return nil, nil
}

func (f *fakeMux) CapturePane(_ context.Context, target string) (string, error) {
	f.captured = append(f.captured, target)
	content, ok := f.panes[target]
	if !ok {
		return "", errors.New("can't find pane")
	}
	return content, nil
}

func sampleMux() *fakeMux {
	return &fakeMux{
		sessions: []model.SessionInfo{
			{ID: "$0", Name: "main", Windows: 2, Attached: 1},
			{ID: "$1", Name: "work", Windows: 1},
		},
		panes: map[string]string{
			"main": "one\ntwo\nthree\n\n\n",
			"work": "$ \n",
		},
	}
}

func TestListSessions(t *testing.T) {
	m := sampleMux()
	var buf bytes.Buffer
	if err := listSessions(context.Background(), &buf, m, 0, false); err != nil {
		t.Fatal(err)
	}
	want := "main\t$0\t2 windows (attached)\nwork\t$1\t1 windows\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
	if len(m.captured) != 0 {
		t.Errorf("captured without preview: %v", m.captured)
	}
}

func TestListSessionsPreview(t *testing.T) {
	m := sampleMux()
	var buf bytes.Buffer
	if err := listSessions(context.Background(), &buf, m, 2, false); err != nil {
		t.Fatal(err)
	}
	want := "main\t$0\t2 windows (attached)\n    two\n    three\nwork\t$1\t1 windows\n    $ \n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
	if !reflect.DeepEqual(m.captured, []string{"main", "work"}) {
		t.Errorf("capture targets: got %v, want [main work]", m.captured)
	}
}

func TestListSessionsJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := listSessions(context.Background(), &buf, sampleMux(), 1, true); err != nil {
		t.Fatal(err)
	}
	var got []sessionListing
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].Name != "main" || !reflect.DeepEqual(got[0].Preview, []string{"three"}) {
		t.Errorf("got %+v", got)
	}
}

func TestListSessionsCaptureError(t *testing.T) {
	m := sampleMux()
	delete(m.panes, "work")
	var buf bytes.Buffer
	if err := listSessions(context.Background(), &buf, m, 1, false); err == nil {
		t.Error("expected capture error")
	}
}

func TestLastLines(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want []string
	}{
		{"a\nb\nc\n", 2, []string{"b", "c"}},
		{"a\n\n  \n", 5, []string{"a"}},
		{"", 3, []string{}},
	}
	for _, tt := range tests {
		got := lastLines(tt.in, tt.n)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("lastLines(%q, %d): got %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
