package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/framenotify/internal/acquisition"
	"github.com/smazurov/framenotify/internal/api/models"
)

func (s *Server) registerAcquisitionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-acquisition",
		Method:      http.MethodGet,
		Path:        "/api/acquisition",
		Summary:     "Acquisition status",
		Description: "Current sequence, queue and worker counters",
		Tags:        []string{"acquisition"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.AcquisitionStatusResponse, error) {
		return &models.AcquisitionStatusResponse{Body: statusToModel(s.acq.Status())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "start-sequence",
		Method:        http.MethodPost,
		Path:          "/api/acquisition/start",
		Summary:       "Start sequence",
		Description:   "Start an acquisition sequence. Pending buffer resizes are applied first.",
		Tags:          []string{"acquisition"},
		Security:      withAuth(),
		DefaultStatus: http.StatusCreated,
		Errors:        []int{401, 409},
	}, func(_ context.Context, _ *struct{}) (*models.SequenceStartResponse, error) {
		info, err := s.acq.StartSequence()
		if err != nil {
			return nil, s.toHTTPError(err)
		}
		return &models.SequenceStartResponse{
			Body: models.SequenceData{
				SequenceID:  info.ID,
				CameraID:    info.CameraID,
				Capacity:    info.Capacity,
				BufferSlots: info.BufferSlots,
				StartedAt:   info.StartedAt.Format(time.RFC3339),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-sequence",
		Method:      http.MethodPost,
		Path:        "/api/acquisition/stop",
		Summary:     "Stop sequence",
		Description: "Stop the running sequence and return its counters",
		Tags:        []string{"acquisition"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(_ context.Context, _ *struct{}) (*models.SequenceStopResponse, error) {
		summary, err := s.acq.StopSequence()
		if err != nil {
			return nil, s.toHTTPError(err)
		}
		return &models.SequenceStopResponse{
			Body: models.SequenceSummaryData{
				SequenceID: summary.ID,
				Received:   summary.Received,
				Forwarded:  summary.Forwarded,
				Failures:   summary.Failures,
				Dropped:    summary.Dropped,
				Pending:    summary.Pending,
				Overflow:   summary.Overflow,
				DurationMs: float64(summary.Duration) / float64(time.Millisecond),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-buffer-slots",
		Method:      http.MethodPut,
		Path:        "/api/acquisition/buffer",
		Summary:     "Resize ring buffer",
		Description: "Change the ring buffer slot count. While a sequence runs the change is deferred to the next start.",
		Tags:        []string{"acquisition"},
		Security:    withAuth(),
		Errors:      []int{401, 422},
	}, func(_ context.Context, input *models.BufferSlotsRequest) (*models.BufferSlotsResponse, error) {
		if err := s.acq.SetBufferSlots(input.Body.Slots); err != nil {
			return nil, s.toHTTPError(err)
		}
		st := s.acq.Status()
		return &models.BufferSlotsResponse{
			Body: models.BufferSlotsData{
				Slots:        input.Body.Slots,
				BufferSlots:  st.BufferSlots,
				PendingSlots: st.PendingSlots,
				Applied:      st.BufferSlots == input.Body.Slots,
			},
		}, nil
	})
}

// toHTTPError maps controller errors onto HTTP status codes.
func (s *Server) toHTTPError(err error) error {
	switch {
	case errors.Is(err, acquisition.ErrSequenceActive), errors.Is(err, acquisition.ErrNoSequence):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, acquisition.ErrBufferTooSmall):
		return huma.Error422UnprocessableEntity(err.Error())
	default:
		s.logger.Error("Acquisition request failed", "error", err)
		return huma.Error500InternalServerError("acquisition request failed", err)
	}
}

func statusToModel(st acquisition.Status) models.AcquisitionStatus {
	m := models.AcquisitionStatus{
		CameraID:     st.CameraID,
		State:        string(st.State),
		Active:       st.Active,
		SequenceID:   st.SequenceID,
		Capacity:     st.Capacity,
		BufferSlots:  st.BufferSlots,
		PendingSlots: st.PendingSlots,
		Overflow:     st.Overflow,
		Pending:      st.Pending,
		Received:     st.Received,
		Forwarded:    st.Forwarded,
		Failures:     st.Failures,
		Dropped:      st.Dropped,
	}
	if !st.StartedAt.IsZero() {
		m.StartedAt = st.StartedAt.Format(time.RFC3339)
	}
	return m
}
