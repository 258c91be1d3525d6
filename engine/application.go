package engine

import (
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/vortex/engine/core"
)

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX uint32 `toml:"start_pos_x"`
	// Window starting position y axis, if applicable.
	StartPosY uint32 `toml:"start_pos_y"`
	// Window starting width, if applicable.
	StartWidth uint32 `toml:"start_width"`
	// Window starting height, if applicable.
	StartHeight uint32 `toml:"start_height"`
	// The application name used in windowing, if applicable.
	Name     string `toml:"name"`
	LogLevel string `toml:"log_level"`

	// AssetRoot is the directory the database pager watches for paged
	// resources. Empty disables file watching.
	AssetRoot string `toml:"asset_root"`
	// PagerWorkers is the number of goroutines loading paged resources.
	PagerWorkers int `toml:"pager_workers"`
}

func DefaultApplicationConfig() *ApplicationConfig {
	return &ApplicationConfig{
		StartPosX:    100,
		StartPosY:    100,
		StartWidth:   1280,
		StartHeight:  720,
		Name:         "Vortex Application",
		LogLevel:     "info",
		PagerWorkers: 2,
	}
}

// LoadApplicationConfig reads a TOML configuration file, filling any field
// the file omits with the default value.
func LoadApplicationConfig(path string) (*ApplicationConfig, error) {
	config := DefaultApplicationConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(data, config); err != nil {
		core.LogError("failed to parse configuration %s: %s", path, err.Error())
		return nil, err
	}
	return config, nil
}
