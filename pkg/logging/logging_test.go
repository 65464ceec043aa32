package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAppliesPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := New("[graph] ")
	l.SetOutput(&buf)
	l.Print("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "[graph] "))
	assert.Contains(t, buf.String(), "hello")
}

func TestSilentDiscardsOutput(t *testing.T) {
	l := Silent()
	l.Print("should not appear anywhere")
}

func TestOrDefaultPrefersProvidedLogger(t *testing.T) {
	var buf bytes.Buffer
	custom := log.New(&buf, "[custom] ", 0)
	got := OrDefault(custom, "[graph] ")
	got.Print("x")
	assert.Contains(t, buf.String(), "[custom] x")
}

func TestOrDefaultFallsBackWhenNil(t *testing.T) {
	got := OrDefault(nil, "[graph] ")
	assert.NotNil(t, got)
}
