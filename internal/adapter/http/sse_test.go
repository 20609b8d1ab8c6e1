package http

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mydia/mydia/internal/service"
)

func TestSSEWrite_MultiLineData(t *testing.T) {
	rec := httptest.NewRecorder()
	sseWrite(rec, "status", "line one\nline two")

	body := rec.Body.String()
	assert.Equal(t, 1, strings.Count(body, "event: status"))
	assert.Contains(t, body, "data: line one\n")
	assert.Contains(t, body, "data: line two\n")
	assert.True(t, strings.HasSuffix(body, "\n\n"), "event must end with a blank line")
}

func TestSendEvent_EncodesJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	sendEvent(rec, service.Event{Type: "progress", Status: "transcoding", Progress: 0.5, Speed: 3.2})

	body := rec.Body.String()
	assert.Contains(t, body, "event: progress")
	assert.Contains(t, body, `"progress":0.5`)
	assert.Contains(t, body, `"speed":3.2`)
}

func TestSendKeepAlive(t *testing.T) {
	rec := httptest.NewRecorder()
	sendKeepAlive(rec)
	assert.Equal(t, ": keep-alive\n\n", rec.Body.String())
}

func TestTerminal(t *testing.T) {
	assert.True(t, terminal("ready"))
	assert.True(t, terminal("failed"))
	assert.False(t, terminal("pending"))
	assert.False(t, terminal("transcoding"))
	assert.False(t, terminal("queued"))
}
