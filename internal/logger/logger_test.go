package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withCapturedOutput redirects the package-level logger to buf for the
// duration of fn, then restores the prior level/format/output.
func withCapturedOutput(t *testing.T, format string, fn func(buf *bytes.Buffer)) {
	t.Helper()
	prevLevel := currentLevel.Load()
	prevFormat, _ := currentFormat.Load().(string)
	mu.Lock()
	prevOutput := output
	prevColor := color
	mu.Unlock()

	t.Cleanup(func() {
		currentLevel.Store(prevLevel)
		currentFormat.Store(prevFormat)
		mu.Lock()
		output = prevOutput
		color = prevColor
		mu.Unlock()
		reconfigure()
	})

	var buf bytes.Buffer
	mu.Lock()
	output = &buf
	color = false
	mu.Unlock()
	currentFormat.Store(format)
	reconfigure()

	fn(&buf)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}

func TestSetLevelRecognizesAllNames(t *testing.T) {
	defer func() { SetLevel("INFO") }()
	SetLevel("debug")
	assert.Equal(t, LevelDebug, Level(currentLevel.Load()))
	SetLevel("WARN")
	assert.Equal(t, LevelWarn, Level(currentLevel.Load()))
	SetLevel("error")
	assert.Equal(t, LevelError, Level(currentLevel.Load()))
}

func TestSetLevelIgnoresUnknown(t *testing.T) {
	SetLevel("INFO")
	SetLevel("bogus")
	assert.Equal(t, LevelInfo, Level(currentLevel.Load()))
}

func TestSetFormatIgnoresUnknown(t *testing.T) {
	SetFormat("text")
	SetFormat("xml")
	got, _ := currentFormat.Load().(string)
	assert.Equal(t, "text", got)
}

func TestInfoWritesTextLine(t *testing.T) {
	withCapturedOutput(t, "text", func(buf *bytes.Buffer) {
		Info("hello", "key", "value")
		line := buf.String()
		assert.Contains(t, line, "INFO ")
		assert.Contains(t, line, "hello")
		assert.Contains(t, line, "key=value")
	})
}

func TestDebugSuppressedBelowInfoLevel(t *testing.T) {
	withCapturedOutput(t, "text", func(buf *bytes.Buffer) {
		SetLevel("INFO")
		Debug("should not appear")
		assert.Empty(t, buf.String())
	})
}

func TestInfoWritesJSONLine(t *testing.T) {
	withCapturedOutput(t, "json", func(buf *bytes.Buffer) {
		Info("hello", "count", 3)
		line := buf.String()
		assert.True(t, strings.HasPrefix(strings.TrimSpace(line), "{"))
		assert.Contains(t, line, `"msg":"hello"`)
		assert.Contains(t, line, `"count":3`)
	})
}

func TestInitAppliesLevelAndFormat(t *testing.T) {
	withCapturedOutput(t, "text", func(buf *bytes.Buffer) {
		require.NoError(t, Init(Config{Level: "WARN", Format: "json"}))
		Info("suppressed")
		assert.Empty(t, buf.String())
		Warn("shown")
		assert.Contains(t, buf.String(), `"msg":"shown"`)
	})
}

func TestErrFormatsNilAndNonNil(t *testing.T) {
	a := Err(nil)
	assert.Equal(t, KeyError, a.Key)

	a = Err(assertError{"boom"})
	assert.Equal(t, "boom", a.Value.String())
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }

func TestContextRoundTrip(t *testing.T) {
	lc := LogContext{ClientAddr: "1.2.3.4:111", XID: 7}.WithProcedure("NFSPROC3_GETATTR")
	ctx := WithContext(context.Background(), lc)

	got := FromContext(ctx)
	require.NotNil(t, got)
	assert.Equal(t, "NFSPROC3_GETATTR", got.Procedure)
	assert.Equal(t, "1.2.3.4:111", got.ClientAddr)
	assert.Equal(t, uint32(7), got.XID)
}

func TestFromContextNilWhenUnset(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
}

func TestInfoCtxPrependsFields(t *testing.T) {
	withCapturedOutput(t, "text", func(buf *bytes.Buffer) {
		lc := LogContext{ClientAddr: "9.9.9.9:2049", XID: 99}.WithProcedure("NFSPROC3_READ")
		ctx := WithContext(context.Background(), lc)
		InfoCtx(ctx, "handled")
		line := buf.String()
		assert.Contains(t, line, "procedure=NFSPROC3_READ")
		assert.Contains(t, line, "client_addr=9.9.9.9:2049")
		assert.Contains(t, line, "xid=99")
	})
}
