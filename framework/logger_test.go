package framework

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapturingLoggerSendsOutputToChildren(t *testing.T) {
	var parent, child CapturingLogger
	parent.Printf("before %d", 1)

	parent.AddChildLogger(&child)
	parent.Println("during")
	parent.RemoveChildLogger(&child)
	parent.Println("after")

	childOutput := child.Output()
	if assert.Len(t, childOutput, 2) {
		assert.Equal(t, "before 1", childOutput[0].Message)
		assert.Equal(t, "during", childOutput[1].Message)
	}
	parentOutput := parent.Output()
	if assert.Len(t, parentOutput, 2) {
		assert.Equal(t, "before 1", parentOutput[0].Message)
		assert.Equal(t, "after", parentOutput[1].Message)
	}
}

func TestCapturedOutputToString(t *testing.T) {
	var l CapturingLogger
	l.Println("a")
	l.Println("b")
	s := l.Output().ToString("> ")
	assert.Regexp(t, `^> \[[0-9: .-]+\] a\n> \[[0-9: .-]+\] b$`, s)
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	l := SlogLogger(base, slog.LevelDebug)
	l.Printf("hello %s", "there")
	l.Println("second", "line")
	assert.Contains(t, buf.String(), `msg="hello there"`)
	assert.Contains(t, buf.String(), `msg="second line"`)
	assert.Contains(t, buf.String(), "level=DEBUG")
}

func TestLoggerWithPrefix(t *testing.T) {
	var l CapturingLogger
	LoggerWithPrefix(&l, "[x] ").Printf("y%d", 1)
	assert.Equal(t, "[x] y1", l.Output()[0].Message)
}

func TestCapabilities(t *testing.T) {
	cs := Capabilities{"form-manager", "form-receiver"}
	assert.True(t, cs.Has("form-manager"))
	assert.False(t, cs.Has("form-archiver"))
	assert.True(t, cs.HasAny("form-archiver", "form-receiver"))
	assert.False(t, cs.HasAny("form-archiver"))
}
