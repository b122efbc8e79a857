package ui

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"e6pools/pkg/config"
	"e6pools/pkg/pipeline"
)

type recordingSender struct {
	titles   []string
	messages []string
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return nil
}

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetQuiet(false)
	})
	return &buf
}

func TestQuietSuppressesAllButErrors(t *testing.T) {
	buf := captureOutput(t)
	SetQuiet(true)

	PrintInfo("Pool", "1234")
	PrintSuccess("done")
	PrintError("boom", errors.New("cause"))

	out := buf.String()
	if strings.Contains(out, "1234") || strings.Contains(out, "done") {
		t.Errorf("quiet mode printed info: %q", out)
	}
	if !strings.Contains(out, "boom: cause") {
		t.Errorf("expected error line, got %q", out)
	}
}

func TestProgressLine(t *testing.T) {
	buf := captureOutput(t)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	p := NewProgress()
	p.now = func() time.Time { return now }

	p.Phase("download", 4)
	now = start.Add(10 * time.Second)
	p.Update(2, 4)
	if !strings.Contains(buf.String(), "2/4") {
		t.Errorf("expected 2/4 in %q", buf.String())
	}
	if !strings.Contains(buf.String(), "eta 10s") {
		t.Errorf("expected eta in %q", buf.String())
	}

	p.Update(0, 4)
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Error("completed phase should end its line")
	}

	buf.Reset()
	p.Phase("package", 0)
	if !strings.Contains(buf.String(), "nothing to do") {
		t.Errorf("unexpected empty phase output %q", buf.String())
	}
	p.Update(0, 0)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Second, "5s"},
		{90 * time.Second, "1m30s"},
		{59*time.Minute + 59*time.Second, "59m59s"},
		{2*time.Hour + 5*time.Minute, "2h5m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %s, want %s", tt.d, got, tt.want)
		}
	}
}

func TestRenderSummary(t *testing.T) {
	r := &pipeline.Report{
		Requested: []int{1, 2, 3},
		Galleries: []pipeline.GalleryReport{
			{ID: 1, Name: "First Pool", Posts: 3, Archive: "First Pool.zip"},
			{ID: 2, Name: "Second", Posts: 2, Archive: "Second.zip", Missing: []int{7}},
		},
		Skipped:     []pipeline.SkippedGallery{{ID: 3, Err: errors.New("not found")}},
		Items:       5,
		Downloaded:  4,
		FailedItems: []pipeline.ItemFailure{{PostID: 7, Err: errors.New("404")}},
	}

	out := RenderSummary(r)
	for _, want := range []string{"First Pool.zip", "1 missing", "pool 3 skipped", "post 7", "3 requested, 2 archived"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestNotifierHonoursConfig(t *testing.T) {
	ok := &pipeline.Report{Requested: []int{1}, Galleries: []pipeline.GalleryReport{{ID: 1}}}
	bad := &pipeline.Report{Requested: []int{1}, Skipped: []pipeline.SkippedGallery{{ID: 1, Err: errors.New("x")}}}

	sender := &recordingSender{}
	n := NewNotifierWithSender(config.NotificationConfig{Enabled: true, OnComplete: true, OnError: false}, sender)
	n.NotifyReport(ok)
	n.NotifyReport(bad)
	n.NotifyError(errors.New("fatal"))
	if len(sender.titles) != 1 || sender.titles[0] != "e6pools finished" {
		t.Fatalf("unexpected notifications %v", sender.titles)
	}
	if sender.messages[0] != "1 of 1 pools archived" {
		t.Errorf("unexpected message %q", sender.messages[0])
	}

	sender = &recordingSender{}
	n = NewNotifierWithSender(config.NotificationConfig{Enabled: false, OnComplete: true, OnError: true}, sender)
	n.NotifyReport(ok)
	n.NotifyError(errors.New("fatal"))
	if len(sender.titles) != 0 {
		t.Errorf("disabled notifier sent %v", sender.titles)
	}

	NewNotifierWithSender(config.NotificationConfig{Enabled: true, OnError: true}, nil).NotifyError(errors.New("no sender"))
}
