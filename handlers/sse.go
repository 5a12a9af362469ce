package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// doneMarker terminates every relayed stream
const doneMarker = "[DONE]"

// eventWriter writes server-sent events, flushing after each one
type eventWriter struct {
	w gin.ResponseWriter
}

// open sends the event-stream headers. After this no status code can be set.
func (e *eventWriter) open() {
	header := e.w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	e.w.WriteHeader(http.StatusOK)
	e.w.Flush()
}

func (e *eventWriter) data(payload string) error {
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	e.w.Flush()
	return nil
}

func (e *eventWriter) fail(message string) error {
	return e.data("Error: " + message)
}

func (e *eventWriter) done() error {
	return e.data(doneMarker)
}
