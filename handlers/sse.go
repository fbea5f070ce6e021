package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"

	"taskforge/events"
)

// eventsHandler streams domain events to the client as SSE. An optional
// task_id query parameter narrows the stream to one task's events.
func (h *Handlers) eventsHandler(c rweb.Context) error {
	// Set SSE headers
	c.Response().SetHeader("Content-Type", "text/event-stream")
	c.Response().SetHeader("Cache-Control", "no-cache")
	c.Response().SetHeader("Connection", "keep-alive")
	c.Response().SetHeader("Access-Control-Allow-Origin", "*")

	taskID := c.Request().QueryParam("task_id")

	var ch <-chan events.Event
	var cancel func()
	if taskID != "" {
		ch, cancel = h.bus.Subscribe(taskID, 10)
	} else {
		ch, cancel = h.bus.SubscribeAll(10)
	}
	defer cancel()

	// Send initial connection event
	fmt.Fprintf(c.Response(), "event: connected\ndata: {}\n\n")
	if flusher, ok := c.Response().(http.Flusher); ok {
		flusher.Flush()
	}

	for event := range ch {
		data, err := json.Marshal(event)
		if err != nil {
			logger.LogErr(err, "failed to marshal SSE event")
			continue
		}

		fmt.Fprintf(c.Response(), "data: %s\n\n", string(data))
		if flusher, ok := c.Response().(http.Flusher); ok {
			flusher.Flush()
		}
	}
	return nil
}
