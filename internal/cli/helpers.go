package cli

import (
	"fmt"

	"github.com/glorpus-work/ecget/pkg/archive"
	"github.com/glorpus-work/ecget/pkg/catalog"
	"github.com/glorpus-work/ecget/pkg/config"
	"github.com/glorpus-work/ecget/pkg/download"
)

// These variables will be set by the main package
var (
	ConfigPath *string
	Verbose    *bool
)

// loadConfig loads the configuration, honoring the --config flag and the
// --verbose override.
func loadConfig() (*config.Config, error) {
	configPath := ""
	if ConfigPath != nil {
		configPath = *ConfigPath
	}

	if configPath == "" {
		defaultPath, err := config.GetDefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get default config path: %w", err)
		}
		configPath = defaultPath
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if Verbose != nil && *Verbose {
		cfg.Settings.LogLevel = "debug"
	}
	return cfg, nil
}

func loadCatalogClient(cfg *config.Config) *catalog.Client {
	return catalog.New(catalog.Options{
		CatalogURL: cfg.Settings.CatalogURL,
		Collection: cfg.Collection,
		Timeout:    cfg.Settings.HTTPTimeout,
		MaxRetries: cfg.Settings.MaxRetries,
	})
}

func loadDownloadEngine(cfg *config.Config) *download.Engine {
	// a zero timeout means no overall bound; product files can take a long time
	return download.New(download.Config{
		Timeout:    cfg.Settings.DownloadTimeout,
		MaxRetries: cfg.Settings.MaxRetries,
	})
}

func loadExtractor() *archive.Manager {
	return archive.NewManager()
}
