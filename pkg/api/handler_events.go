package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maestro-ai/maestro/pkg/events"
)

// heartbeatInterval keeps intermediaries from closing idle SSE streams.
const heartbeatInterval = 30 * time.Second

// handleEvents streams live state over SSE. On connect the client gets the
// current tasks and stats snapshots, then every hub event as it happens.
// Event names match the hub channels: tasks, agents, stats.
func (s *Server) handleEvents(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	id, ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)
	s.logger.Info("SSE client connected", "subscriber_id", id)

	// Initial snapshots so the client renders without waiting for a change.
	s.writeEvent(c, flusher, events.NewTasksEvent(s.supervisor.List()))
	stats := s.supervisor.Stats()
	if stats.Collections != nil {
		s.writeEvent(c, flusher, events.NewStatsEvent(stats.Collections))
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("SSE client disconnected", "subscriber_id", id)
			return
		case event, open := <-ch:
			if !open {
				return
			}
			s.writeEvent(c, flusher, event)
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func (s *Server) writeEvent(c *gin.Context, flusher http.Flusher, event events.Event) {
	data, err := json.Marshal(event.Payload)
	if err != nil {
		s.logger.Warn("Failed to serialize event payload", "channel", event.Channel, "error", err)
		return
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event.Channel, data)
	flusher.Flush()
}
