package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/framenotify/internal/api/models"
	"github.com/smazurov/framenotify/internal/events"
)

// registerSSERoutes registers the event stream. Each connection first
// receives a status snapshot, then every bus event as it is published.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time sequence lifecycle, overflow, worker state and buffer events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"status":               models.AcquisitionStatus{},
		"sequence-started":     events.SequenceStartedEvent{},
		"sequence-stopped":     events.SequenceStoppedEvent{},
		"frames-dropped":       events.FramesDroppedEvent{},
		"worker-state-changed": events.WorkerStateChangedEvent{},
		"buffer-resized":       events.BufferResizedEvent{},
		"forward-error":        events.ForwardErrorEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)
		if s.bus != nil {
			unsubscribe := events.SubscribeAll(s.bus, eventCh)
			defer unsubscribe()
		}

		if s.acq != nil {
			if err := send.Data(statusToModel(s.acq.Status())); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
