package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"e6pools/pkg/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferLogger(buf *bytes.Buffer) *zerologLogger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zlog := zerolog.New(buf).Level(zerolog.DebugLevel)
	return &zerologLogger{logger: &zlog, fields: map[string]interface{}{}}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"invalid level", &config.LoggingConfig{Level: "chatty"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
			if tt.cfg.File != "" {
				_, err := os.Stat(tt.cfg.File)
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level   string
		want    zerolog.Level
		wantErr bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"", zerolog.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := parseLogLevel(tt.level)
		assert.Equal(t, tt.wantErr, err != nil, tt.level)
		assert.Equal(t, tt.want, got, tt.level)
	}
}

func TestFieldsAreCopiedOnWith(t *testing.T) {
	var buf bytes.Buffer
	base := bufferLogger(&buf)

	child := base.WithField("gallery_id", 42)
	child.WithFields(map[string]interface{}{"page": 2, "ok": true}).Info("listing fetched")
	base.Info("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"gallery_id":42`)
	assert.Contains(t, lines[0], `"page":2`)
	assert.Contains(t, lines[0], `"ok":true`)
	assert.NotContains(t, lines[1], "gallery_id")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	base := bufferLogger(&buf)

	assert.Same(t, base, base.WithError(nil))

	base.WithError(errors.New("curl exited 22")).Error("download failed")
	assert.Contains(t, buf.String(), "curl exited 22")
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	base := bufferLogger(&buf)

	base.InfoWithFields("types", map[string]interface{}{
		"dur":   1500 * time.Millisecond,
		"ids":   []int{3, 1},
		"names": []string{"a"},
		"cause": errors.New("boom"),
		"when":  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	out := buf.String()
	assert.Contains(t, out, `"ids":[3,1]`)
	assert.Contains(t, out, `"cause":"boom"`)
	assert.Contains(t, out, `"names":["a"]`)
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogFetch(tl, "https://e621.net/pools/1.json", 2, time.Second, errors.New("timeout"))
	LogMediaItem(tl, 99, "png", false, nil)
	LogMediaItem(tl, 100, "gif", false, errors.New("cwebp failed"))
	LogGallery(tl, 7, "Some Pool", "Gallery packaged")

	assert.True(t, tl.HasMessage("Fetch failed"))
	assert.True(t, tl.HasMessage("Media cached"))
	assert.True(t, tl.HasError())

	errs := tl.GetMessagesByLevel("ERROR")
	require.Len(t, errs, 1)
	assert.Equal(t, 100, errs[0].Fields["post_id"])
	assert.EqualError(t, errs[0].Error, "cwebp failed")
}

func TestTestLoggerSharesCapture(t *testing.T) {
	tl := NewTestLogger()
	tl.WithField("a", 1).WithField("b", 2).Warn("nested")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, map[string]interface{}{"a": 1, "b": 2}, msgs[0].Fields)

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestGlobalLogger(t *testing.T) {
	require.NoError(t, Initialize(&config.LoggingConfig{Level: "error"}))
	assert.NotNil(t, GetLogger())

	// smoke: package-level helpers must not panic
	Debug("debug")
	Info("info")
	WithField("k", "v").Warn("warn")
	WithError(errors.New("x")).Error("error")
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("a", 1).WithError(errors.New("x")).Error("ignored")
	assert.NotNil(t, l.GetZerolog())
}
