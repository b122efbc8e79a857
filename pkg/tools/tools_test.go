package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	errs "e6pools/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgumentVectors(t *testing.T) {
	assert.Equal(t,
		[]string{"-L", "-s", "-S", "--fail", "-A", "agent/1", "-o", "/c/raws/1.png", "https://x/1.png"},
		FetchArgs("agent/1", "/c/raws/1.png", "https://x/1.png"))
	assert.Equal(t,
		[]string{"-q", "75", "-m", "6", "-mt", "-o", "/c/1.webp", "/c/raws/1.png"},
		EncodeArgs(75, "/c/raws/1.png", "/c/1.webp"))
	assert.Equal(t,
		[]string{"a", "-tzip", "-sdel", "-mx=9", "/d/Name.zip", "/d/Name"},
		ArchiveArgs("/d/Name"))
}

func TestFetcher(t *testing.T) {
	rec := &Recorder{}
	f := Fetcher{Runner: rec, UserAgent: "ua"}

	require.NoError(t, f.Fetch(context.Background(), "https://x/a.gif", "/tmp/a.gif"))

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "curl -L -s -S --fail -A ua -o /tmp/a.gif https://x/a.gif", calls[0].String())
}

func TestFetcherRemovesPartialDownload(t *testing.T) {
	out := filepath.Join(t.TempDir(), "1.png")
	rec := &Recorder{Handler: func(string, []string) error {
		_ = os.WriteFile(out, []byte("partial"), 0644)
		return errors.New("exit status 22")
	}}

	err := Fetcher{Runner: rec}.Fetch(context.Background(), "https://x/1.png", out)
	require.Error(t, err)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestTranscoderFallsBackToGIF2WebP(t *testing.T) {
	out := filepath.Join(t.TempDir(), "3.webp")
	rec := &Recorder{Handler: func(name string, _ []string) error {
		if name == "cwebp" {
			return errors.New("unsupported input")
		}
		return os.WriteFile(out, []byte("webp"), 0644)
	}}

	tr := Transcoder{Runner: rec, Quality: 80}
	require.NoError(t, tr.Transcode(context.Background(), "/raws/3.gif", out))

	calls := rec.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "cwebp", calls[0].Name)
	assert.Equal(t, "gif2webp", calls[1].Name)
	assert.Equal(t, calls[0].Args, calls[1].Args)
	assert.Equal(t, "80", calls[1].Args[1])
	assert.FileExists(t, out)
}

func TestTranscoderBothFail(t *testing.T) {
	out := filepath.Join(t.TempDir(), "4.webp")
	rec := &Recorder{Handler: func(string, []string) error {
		_ = os.WriteFile(out, []byte("junk"), 0644)
		return errs.New(errs.ErrorTypeProcess, "encode", "bad input")
	}}

	err := Transcoder{Runner: rec}.Transcode(context.Background(), "/raws/4.bmp", out)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeProcess))
	assert.NoFileExists(t, out)
	assert.Equal(t, "75", rec.Calls()[0].Args[1])
}

func TestTranscoderStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &Recorder{}
	err := Transcoder{Runner: rec}.Transcode(ctx, "/in.png", filepath.Join(t.TempDir(), "o.webp"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, rec.Calls(), 1)
}

func TestArchiver(t *testing.T) {
	rec := &Recorder{}
	a := Archiver{Runner: rec, Program: "7za"}

	require.NoError(t, a.Archive(context.Background(), "/dest/My Pool"))

	calls := rec.CallsTo("7za")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"a", "-tzip", "-sdel", "-mx=9", "/dest/My Pool.zip", "/dest/My Pool"}, calls[0].Args)
}

func TestExecRunnerReportsFailure(t *testing.T) {
	err := ExecRunner{}.Run(context.Background(), "e6pools-no-such-program-xyz")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeProcess))
}
