package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// CameraSettings is the live-reloadable part of the [camera] table.
type CameraSettings struct {
	ID          string `toml:"id"`
	BufferSlots int    `toml:"buffer_slots"`
	ExposureMs  int    `toml:"exposure_ms"`
}

// LoadCameraSettings reads the [camera] table from a TOML file. It is the
// loader used with NewConfigWatcher for buffer resizing at runtime.
func LoadCameraSettings(path string) (CameraSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CameraSettings{}, err
	}

	var raw struct {
		Camera CameraSettings `toml:"camera"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return CameraSettings{}, fmt.Errorf("parse camera settings: %w", err)
	}
	return raw.Camera, nil
}
