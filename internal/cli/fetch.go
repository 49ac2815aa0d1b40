package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/glorpus-work/ecget/internal/logger"
	"github.com/glorpus-work/ecget/pkg/auth"
	"github.com/glorpus-work/ecget/pkg/catalog"
	"github.com/glorpus-work/ecget/pkg/config"
	"github.com/glorpus-work/ecget/pkg/model"
	"github.com/glorpus-work/ecget/pkg/orchestrator"
	"github.com/spf13/cobra"
)

// Environment variables carrying the archive credentials. The password is
// never accepted as a flag so it cannot end up in shell history.
const (
	EnvUsername = "ECGET_USERNAME"
	EnvPassword = "ECGET_PASSWORD"
)

type fetchFlags struct {
	products    []string
	dir         string
	collection  string
	baseline    string
	override    bool
	extract     bool
	orbitColumn string
	radius      string
	bbox        string
	summary     string
	username    string
}

// NewFetchCmd creates the fetch command.
func NewFetchCmd() *cobra.Command {
	flags := &fetchFlags{}

	cmd := &cobra.Command{
		Use:   "fetch <csv-file>",
		Short: "Download the products matching a CSV of observation timestamps",
		Long: `Download archive products for every timestamp in a CSV file.

The delimiter and the date/time columns of the CSV are detected
automatically. Credentials are read from ` + EnvUsername + ` and ` + EnvPassword + `.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringSliceVarP(&flags.products, "products", "p", nil, "product names to download (e.g. ATL_NOM_1B or anom; default from config)")
	cmd.Flags().StringVarP(&flags.dir, "dir", "d", "", "download directory (default from config)")
	cmd.Flags().StringVar(&flags.collection, "collection", "", "archive collection to search (default from config)")
	cmd.Flags().StringVarP(&flags.baseline, "baseline", "b", "", "two-letter processing baseline, or 'auto' for the latest")
	cmd.Flags().BoolVar(&flags.override, "override", false, "re-download files that already exist")
	cmd.Flags().BoolVar(&flags.extract, "extract", false, "unpack downloaded bundles next to the archive")
	cmd.Flags().StringVar(&flags.orbitColumn, "orbit-column", "", "CSV column carrying orbit numbers")
	cmd.Flags().StringVar(&flags.radius, "radius", "", "spatial constraint lat,lon,meters")
	cmd.Flags().StringVar(&flags.bbox, "bbox", "", "spatial constraint south,west,north,east")
	cmd.Flags().StringVar(&flags.summary, "summary", "", "write a JSON run summary to this path")
	cmd.Flags().StringVarP(&flags.username, "username", "u", "", "archive username (default from "+EnvUsername+")")

	return cmd
}

func runFetch(cmd *cobra.Command, csvPath string, flags *fetchFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFetchFlags(cfg, flags)
	logger.InitLogger(cfg.Settings.LogLevel)

	if err := cfg.Validate(); err != nil {
		return err
	}

	codes, err := resolveProducts(cfg, flags)
	if err != nil {
		return err
	}

	creds, err := loadCredentials(flags.username)
	if err != nil {
		return err
	}

	spatial, err := parseSpatial(cfg, flags)
	if err != nil {
		return err
	}

	dir, err := filepath.Abs(cfg.DownloadDir)
	if err != nil {
		return fmt.Errorf("invalid download directory %q: %w", cfg.DownloadDir, err)
	}

	orch := &orchestrator.Orchestrator{
		Catalog: loadCatalogClient(cfg),
		Engine:  loadDownloadEngine(cfg),
		Extract: loadExtractor(),
		Hooks:   consoleHooks(),
	}

	summary, runErr := orch.Run(cmd.Context(), orchestrator.RunRequest{
		CSVPath: csvPath,
		Selection: model.ProductSelection{
			Collection: cfg.Collection,
			Products:   codes,
			Baseline:   cfg.Baseline,
		},
		Spatial:     spatial,
		OrbitColumn: cfg.OrbitColumn,
		Dir:         dir,
		Override:    cfg.Override,
		Extract:     cfg.Extract,
		Tolerance:   cfg.Settings.TimeTolerance,
		Credentials: creds,
		SummaryPath: cfg.SummaryFile,
	})

	printSummary(cmd, summary)
	return runErr
}

func applyFetchFlags(cfg *config.Config, flags *fetchFlags) {
	if flags.dir != "" {
		cfg.DownloadDir = flags.dir
	}
	if flags.collection != "" {
		cfg.Collection = flags.collection
	}
	if flags.baseline != "" {
		cfg.Baseline = strings.ToUpper(flags.baseline)
		if strings.EqualFold(flags.baseline, model.BaselineAuto) {
			cfg.Baseline = model.BaselineAuto
		}
	}
	if flags.override {
		cfg.Override = true
	}
	if flags.extract {
		cfg.Extract = true
	}
	if flags.orbitColumn != "" {
		cfg.OrbitColumn = flags.orbitColumn
	}
	if flags.summary != "" {
		cfg.SummaryFile = flags.summary
	}
}

// resolveProducts merges the --products flag with the configured product list
// and normalizes every entry. Flags win; an empty result is an error.
func resolveProducts(cfg *config.Config, flags *fetchFlags) ([]string, error) {
	products := flags.products
	if len(products) == 0 {
		products = cfg.Products
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("no products selected: pass --products or set 'products' in the config file")
	}

	codes := make([]string, 0, len(products))
	for _, p := range products {
		code, err := catalog.NormalizeProduct(p)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func loadCredentials(usernameFlag string) (auth.Credentials, error) {
	username := usernameFlag
	if username == "" {
		username = os.Getenv(EnvUsername)
	}
	password := os.Getenv(EnvPassword)
	if username == "" || password == "" {
		return auth.Credentials{}, fmt.Errorf("archive credentials required: set %s and %s", EnvUsername, EnvPassword)
	}
	return auth.NewCredentials(username, password), nil
}

func parseSpatial(cfg *config.Config, flags *fetchFlags) (model.SpatialFilter, error) {
	if flags.radius == "" && flags.bbox == "" {
		return cfg.Spatial(), nil
	}
	if flags.radius != "" && flags.bbox != "" {
		return model.SpatialFilter{}, fmt.Errorf("--radius and --bbox are mutually exclusive")
	}

	if flags.radius != "" {
		parts, err := parseFloats(flags.radius, 3)
		if err != nil {
			return model.SpatialFilter{}, fmt.Errorf("invalid --radius %q: %w", flags.radius, err)
		}
		return model.SpatialFilter{Radius: &model.RadiusSearch{
			Latitude:  parts[0],
			Longitude: parts[1],
			Meters:    int(parts[2]),
		}}, nil
	}

	parts, err := parseFloats(flags.bbox, 4)
	if err != nil {
		return model.SpatialFilter{}, fmt.Errorf("invalid --bbox %q: %w", flags.bbox, err)
	}
	return model.SpatialFilter{Box: &model.BoundingBox{
		South: parts[0],
		West:  parts[1],
		North: parts[2],
		East:  parts[3],
	}}, nil
}

func parseFloats(s string, want int) ([]float64, error) {
	fields := strings.Split(s, ",")
	if len(fields) != want {
		return nil, fmt.Errorf("expected %d comma-separated values", want)
	}
	out := make([]float64, want)
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func consoleHooks() orchestrator.Hooks {
	return orchestrator.Hooks{
		OnEvent: func(e orchestrator.Event) {
			switch e.Phase {
			case "searching":
				logger.Debug("searching catalogue", logger.Fields{"point": e.ID})
			case "downloading":
				logger.Info("downloading", logger.Fields{"file": e.ID})
			case "extracting":
				logger.Info("extracting", logger.Fields{"file": e.ID})
			}
		},
	}
}

func printSummary(cmd *cobra.Command, s model.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nRun summary\n")
	fmt.Fprintf(out, "  requested: %d\n", s.TotalRequested)
	fmt.Fprintf(out, "  downloaded: %d\n", s.Succeeded)
	fmt.Fprintf(out, "  skipped:    %d (already present)\n", s.Skipped)
	fmt.Fprintf(out, "  failed:     %d\n", s.Failed)
	fmt.Fprintf(out, "  bytes:      %d\n", s.TotalBytes)
	fmt.Fprintf(out, "  elapsed:    %s\n", s.Elapsed.Round(time.Millisecond))
	if len(s.Errors) > 0 {
		fmt.Fprintf(out, "  errors:     %d (see summary file or logs)\n", len(s.Errors))
	}
}
