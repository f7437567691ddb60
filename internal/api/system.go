package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/framenotify/internal/api/models"
	"github.com/smazurov/framenotify/internal/logging"
	"github.com/smazurov/framenotify/internal/pipeline"
)

func (s *Server) registerSystemRoutes() {
	if s.frames != nil {
		huma.Register(s.api, huma.Operation{
			OperationID: "list-frames",
			Method:      http.MethodGet,
			Path:        "/api/frames",
			Summary:     "Recent frames",
			Description: "Metadata of the frames most recently copied by the host pipeline",
			Tags:        []string{"acquisition"},
			Security:    withAuth(),
			Errors:      []int{401},
		}, func(_ context.Context, input *models.FramesRequest) (*models.FramesResponse, error) {
			images := s.frames.Snapshot()
			if input.Limit > 0 && len(images) > input.Limit {
				images = images[len(images)-input.Limit:]
			}

			frames := make([]models.FrameData, 0, len(images))
			for _, img := range images {
				frames = append(frames, frameToModel(img))
			}
			return &models.FramesResponse{
				Body: models.FramesData{
					Frames:   frames,
					Inserted: s.frames.Inserted(),
					Rejected: s.frames.Rejected(),
				},
			}, nil
		})

		huma.Register(s.api, huma.Operation{
			OperationID:   "clear-frames",
			Method:        http.MethodDelete,
			Path:          "/api/frames",
			Summary:       "Clear frames",
			Description:   "Drop retained frames and reset the copy counters",
			Tags:          []string{"acquisition"},
			Security:      withAuth(),
			DefaultStatus: http.StatusNoContent,
			Errors:        []int{401},
		}, func(_ context.Context, _ *struct{}) (*struct{}, error) {
			s.frames.Reset()
			s.logger.Info("Frame history cleared")
			return nil, nil
		})
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "set-log-level",
		Method:      http.MethodPut,
		Path:        "/api/logging",
		Summary:     "Set log level",
		Description: "Change the log level of one module at runtime",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401, 422},
	}, func(_ context.Context, input *models.LogLevelRequest) (*models.LogLevelResponse, error) {
		if !logging.SetLevel(input.Body.Module, input.Body.Level) {
			return nil, huma.Error422UnprocessableEntity("unknown log level: " + input.Body.Level)
		}
		level := strings.ToLower(logging.Level(input.Body.Module).String())
		s.logger.Info("Log level changed", "target_module", input.Body.Module, "level", level)
		return &models.LogLevelResponse{
			Body: models.LogLevelData{Module: input.Body.Module, Level: level},
		}, nil
	})
}

func frameToModel(img pipeline.Image) models.FrameData {
	m := img.Metadata
	return models.FrameData{
		FrameNr:    m.FrameNr,
		Timestamp:  m.Timestamp.UTC().Format(time.RFC3339Nano),
		ROI:        [4]int{int(m.ROI.X), int(m.ROI.Y), int(m.ROI.Width), int(m.ROI.Height)},
		ExposureUs: m.Exposure.Microseconds(),
		ReadoutUs:  m.Readout.Microseconds(),
		Flags:      uint32(m.Flags),
		Bytes:      len(img.Pixels),
	}
}
