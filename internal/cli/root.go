package cli

import (
	"fmt"
	"os"

	"ctpdaily/internal/config"
	"ctpdaily/internal/flags"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var (
	cfg        = config.New()
	configPath string
	logger     = zap.NewNop()
)

// defaultConfigPath is read when --config is not given; it may be absent.
const defaultConfigPath = "ctpdaily.yaml"

var rootCmd = &cobra.Command{
	Use:   "ctpdaily",
	Short: "Run the HIRS daily Cloud Top Pressure computation locally",
	Long: `ctpdaily builds daily HIRS Cloud Top Pressure products from the stored
orbital CTP products of one satellite.

Each context is one UTC day of one satellite for a fixed delivery lineage.
For every context ctpdaily locates the orbital inputs of the day (plus one
orbit either side of midnight), runs the delivered daily binary over them
and stores the compressed result in the catalog.

Examples:
	# List the contexts of a week
	ctpdaily contexts --satellite noaa-18 --start 2017-01-01 --end 2017-01-07

	# Show the inputs each day would use
	ctpdaily prepare --config ctpdaily.yaml --satellite noaa-18 --start 2017-001

	# Run the first day only
	ctpdaily execute --config ctpdaily.yaml --satellite noaa-18 --start 2017-01-01 --single

	# Print build info
	ctpdaily version

Output:
	By default, commands write human-readable output to stdout and logs to stderr.
	Run commands support structured output via --emit, --out and --report.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(cfg.Runtime.Verbose)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// newLogger builds the production JSON logger on stderr. Verbose lowers the
// level to debug.
func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zc.Build()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&cfg.Runtime.Verbose, flags.FlagVerbose, false, "Enable verbose logging (debug logs and full error details)")
	rootCmd.PersistentFlags().StringVar(&configPath, flags.FlagConfig, "", "YAML configuration file (default: ./"+defaultConfigPath+" if present)")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
