package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T, level string, format OutputFormat, fn func()) string {
	t.Helper()
	buf := &bytes.Buffer{}
	SetTestOutput(buf)
	defer UnsetTestOutput()

	logger = nil
	InitLogger(level, format)
	fn()
	return buf.String()
}

func TestLogger_Text(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFn    func()
		contains []string
		excludes []string
	}{
		{
			name:     "info log",
			level:    "info",
			logFn:    func() { Info("crawl finished") },
			contains: []string{"crawl finished", "level=INFO"},
		},
		{
			name:     "debug hidden at info level",
			level:    "info",
			logFn:    func() { Debug("listing day") },
			excludes: []string{"listing day"},
		},
		{
			name:     "debug shown at debug level",
			level:    "debug",
			logFn:    func() { DebugfWithFields(Fields{"doy": "065"}, "listing day %d", 2001) },
			contains: []string{"listing day 2001", "doy=065", "level=DEBUG"},
		},
		{
			name:     "warn with fields",
			level:    "warn",
			logFn:    func() { Warn("link not created, file missing", Fields{"file": "a.hdf", "band": 1}) },
			contains: []string{"link not created, file missing", "file=a.hdf", "band=1", "level=WARN"},
		},
		{
			name:     "warning alias",
			level:    "warning",
			logFn:    func() { Info("dropped"); Warnf("retry %d", 2) },
			contains: []string{"retry 2"},
			excludes: []string{"dropped"},
		},
		{
			name:     "error log",
			level:    "error",
			logFn:    func() { Errorf("transfer of %s failed", "a.hdf") },
			contains: []string{"transfer of a.hdf failed", "level=ERROR"},
		},
		{
			name:     "success log",
			level:    "info",
			logFn:    func() { Success("mirror synchronized") },
			contains: []string{"mirror synchronized", "status=success"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := captureOutput(t, tt.level, FormatText, tt.logFn)
			for _, want := range tt.contains {
				assert.Contains(t, output, want)
			}
			for _, notWant := range tt.excludes {
				assert.NotContains(t, output, notWant)
			}
		})
	}
}

func TestLogger_JSON(t *testing.T) {
	output := captureOutput(t, "info", FormatJSON, func() {
		Info("snapshot stored", Fields{"product": "MCD43D01", "files": 42, "compressed": true})
	})

	assert.Contains(t, output, `"msg":"snapshot stored"`)
	assert.Contains(t, output, `"level":"INFO"`)
	assert.Contains(t, output, `"product":"MCD43D01"`)
	assert.Contains(t, output, `"files":42`)
	assert.Contains(t, output, `"compressed":true`)
}

func TestAutoFormatUsesJSONOffTerminal(t *testing.T) {
	output := captureOutput(t, "info", FormatAuto, func() { Info("not a tty") })
	assert.Contains(t, output, `"msg":"not a tty"`)
}

func TestSetOutputFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	SetTestOutput(buf)
	defer UnsetTestOutput()

	logger = nil
	InitLogger("debug", FormatText)
	Debug("first")
	assert.Contains(t, buf.String(), "msg=first")

	buf.Reset()
	SetOutputFormat(FormatJSON)
	Debug("second")
	assert.Contains(t, buf.String(), `"msg":"second"`)
	assert.Contains(t, buf.String(), `"level":"DEBUG"`)
}

func TestNamed(t *testing.T) {
	output := captureOutput(t, "info", FormatText, func() {
		Named("crawler").Info("year skipped", "year", 1999)
	})
	assert.Contains(t, output, "component=crawler")
	assert.Contains(t, output, "year=1999")
}

func TestGetLogger_InitializesIfNil(t *testing.T) {
	logger = nil
	assert.NotPanics(t, func() {
		lg := GetLogger()
		assert.NotNil(t, lg)
	})
}

func TestMergeFields(t *testing.T) {
	tests := []struct {
		name   string
		fields []Fields
		expect map[string]interface{}
	}{
		{"single map", []Fields{{"product": "MCD43D01"}}, map[string]interface{}{"product": "MCD43D01"}},
		{"multiple maps", []Fields{{"year": 2001}, {"doy": "065", "ok": true}}, map[string]interface{}{"year": 2001, "doy": "065", "ok": true}},
		{"later map wins", []Fields{{"attempt": 1}, {"attempt": 2}}, map[string]interface{}{"attempt": 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := mergeFields(tt.fields...)
			result := make(map[string]interface{})
			for i := 0; i < len(attrs); i += 2 {
				result[attrs[i].(string)] = attrs[i+1]
			}
			assert.Equal(t, tt.expect, result)
			assert.Len(t, attrs, len(tt.expect)*2)
		})
	}
}
