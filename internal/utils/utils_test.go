// internal/utils/utils_test.go
package utils

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Rishi Tea":      "rishi_tea",
		"The Only Bean":  "the_only_bean",
		"  Alice & Co. ": "alice_co",
		"---":            "brand",
		"Yolele":         "yolele",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestIsValidURL(t *testing.T) {
	assert.True(t, IsValidURL("https://example.com/stores"))
	assert.True(t, IsValidURL("http://localhost:8080"))
	assert.False(t, IsValidURL("example.com"))
	assert.False(t, IsValidURL("ftp://example.com"))
	assert.False(t, IsValidURL("::"))
}

func TestHostPath(t *testing.T) {
	hp, err := HostPath("https://shop.example/retailers/?page=2#map")
	assert.NoError(t, err)
	assert.Equal(t, "shop.example/retailers", hp)

	hp, err = HostPath("https://shop.example")
	assert.NoError(t, err)
	assert.Equal(t, "shop.example", hp)

	_, err = HostPath("::")
	assert.Error(t, err)
}

func TestIsJSONContent(t *testing.T) {
	assert.True(t, IsJSONContent("application/json; charset=utf-8"))
	assert.True(t, IsJSONContent("application/vnd.api+json"))
	assert.True(t, IsJSONContent("text/javascript"))
	assert.False(t, IsJSONContent("text/html"))
	assert.False(t, IsJSONContent("image/png"))
	assert.False(t, IsJSONContent(""))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.5s", FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "2.0m", FormatDuration(2*time.Minute))
	assert.Equal(t, "1.0h", FormatDuration(time.Hour))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLogLevel("DEBUG"))
	assert.Equal(t, WarnLevel, ParseLogLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLogLevel("error"))
	assert.Equal(t, InfoLevel, ParseLogLevel("verbose"))
}

func TestSlogLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(LoggerOptions{Level: WarnLevel, Output: &buf, NoColor: true})

	logger.Info("hidden")
	logger.WithField("brand", "Yolele").Warnf("zero stores from %s", "stockist")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "zero stores from stockist")
	assert.Contains(t, out, "brand=Yolele")
}

func TestSlogLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(LoggerOptions{Level: DebugLevel, Output: &buf, JSON: true})

	logger.WithFields(map[string]interface{}{"platform": "storerocket"}).Debug("fetch")

	assert.Contains(t, buf.String(), `"platform":"storerocket"`)
	assert.Contains(t, buf.String(), `"msg":"fetch"`)
}
