package cli

import (
	"context"
	"fmt"
	"os"

	"ctpdaily/internal/config"
	"ctpdaily/internal/engine"
	"ctpdaily/internal/flags"

	"github.com/spf13/cobra"
)

const runHelpTemplate = `{{with (or .Long .Short)}}{{. | trimTrailingWhitespaces}}

{{end}}Usage:
  {{.UseLine}}

{{if .HasAvailableLocalFlags}}Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}Environment:
	` + config.EnvWorkDir + `       root of the per-context working directories
	` + config.EnvCatalogRoot + `   root of the stored product catalog
	` + config.EnvSoftwareRoot + `  root of the delivered software

	Flags take precedence over the environment, which takes precedence over
	the configuration file.
`

const outputHelp = `
Output:
	Console output is controlled by --console-format (default: text).
	Structured outputs can be written via:
	- --out / --out-format: write an aggregate JSON array or NDJSON stream to a file
	- --emit: write an additional structured stream to stdout (json or ndjson)
	- --report: write a Markdown summary of the run
	- --no-console: suppress the console sink (use with --emit/--out for machine output)

	NDJSON mode emits one JSON object per line. Objects are lifecycle Events with a
	"type" field (run.started, context.started, task.result, context.finished,
	run.finished). Context results are Events with type "task.result".

Exit codes:
	0 = every context succeeded
	1 = some contexts were not ready (upstream orbital products missing)
	2 = some contexts failed
	3 = fatal error (nothing ran)
`

var contextsCmd = &cobra.Command{
	Use:   "contexts",
	Short: "List the daily contexts of an interval",
	Long: `List the daily contexts (one per UTC day) between --start and --end.

By default only days the interval covers completely are listed; --partial-days
also lists days it only overlaps.
` + outputHelp + `
Examples:
	ctpdaily contexts --satellite noaa-18 --start 2017-01-01 --end 2017-01-31
	ctpdaily contexts --satellite metop-a --start D17001 --no-console --emit ndjson
`,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runMode(cmd, engine.ModeContexts))
	},
}

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Locate the orbital inputs of each daily context",
	Long: `Locate and print the stored orbital inputs each daily context would run on.
Nothing is executed.
` + outputHelp,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runMode(cmd, engine.ModePrepare))
	},
}

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Build daily CTP products",
	Long: `Locate the inputs of each daily context, run the delivered
create_daily_daynight_ctps.exe over them, compress the output and store it
in the catalog.

Working directories are <work-dir>/<satellite>/D<yy><jjj>; the binary's
combined output is kept next to the product as <output>.log.
` + outputHelp + `
Examples:
	ctpdaily execute --config ctpdaily.yaml --satellite noaa-18 --start 2017-01-01 --end 2017-01-07
	ctpdaily execute --config ctpdaily.yaml --satellite noaa-18 --start 2017-001 --single --verbose
`,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runMode(cmd, engine.ModeExecute))
	},
}

// loadConfig merges the configuration file into the flag values and runs the
// validation mode needs.
func loadConfig(cmd *cobra.Command, mode engine.Mode) error {
	path, optional := configPath, false
	if !cmd.Flags().Changed(flags.FlagConfig) {
		path, optional = defaultConfigPath, true
	}
	if err := cfg.MergeFile(path, optional); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	switch mode {
	case engine.ModePrepare:
		return cfg.ValidatePrepare()
	case engine.ModeExecute:
		return cfg.ValidateExecute()
	}
	return nil
}

func runMode(cmd *cobra.Command, mode engine.Mode) int {
	if cmd.Flags().NFlag() == 0 {
		_ = cmd.Help()
		return 0
	}

	if err := loadConfig(cmd, mode); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}

	ctx := context.Background()
	eng, closeEngine, err := engine.Build(ctx, cfg, mode, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}
	code := eng.Run(ctx, cfg, mode)
	if err := closeEngine(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	_ = logger.Sync()
	return code
}

func addProcessingFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&cfg.Processing.Satellite, flags.FlagSatellite, "", "Satellite to process, e.g. noaa-18, metop-a")
	cmd.Flags().StringVar(&cfg.Processing.Start, flags.FlagStart, "", "First day: YYYY-MM-DD, YYYY-JJJ or DYYJJJ")
	cmd.Flags().StringVar(&cfg.Processing.End, flags.FlagEnd, "", "Last day, inclusive (default: --start)")
	cmd.Flags().BoolVar(&cfg.Processing.PartialDays, flags.FlagPartialDays, false, "Also include days the interval only partly covers")

	d := &cfg.Processing.Deliveries
	cmd.Flags().StringVar(&d.HIRS2NC, flags.FlagHIRS2NCDelivery, "", "hirs2nc delivery id")
	cmd.Flags().StringVar(&d.HIRSAVHRR, flags.FlagHIRSAVHRRDelivery, "", "hirs_avhrr delivery id")
	cmd.Flags().StringVar(&d.HIRSCSRBDaily, flags.FlagHIRSCSRBDailyDelivery, "", "hirs_csrb_daily delivery id")
	cmd.Flags().StringVar(&d.HIRSCSRBMonthly, flags.FlagHIRSCSRBMonthlyDelivery, "", "hirs_csrb_monthly delivery id")
	cmd.Flags().StringVar(&d.HIRSCTPOrbital, flags.FlagHIRSCTPOrbitalDelivery, "", "hirs_ctp_orbital delivery id")
	cmd.Flags().StringVar(&d.HIRSCTPDaily, flags.FlagHIRSCTPDailyDelivery, "", "hirs_ctp_daily delivery id (required to execute)")
}

func addLocationFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&cfg.Catalog.Root, flags.FlagCatalogRoot, "", "Root of the stored product catalog (env "+config.EnvCatalogRoot+")")
	cmd.Flags().StringVar(&cfg.Software.Root, flags.FlagSoftwareRoot, "", "Root of the delivered software (env "+config.EnvSoftwareRoot+")")
	cmd.Flags().StringVar(&cfg.Runtime.WorkDir, flags.FlagWorkDir, "", "Root of the per-context working directories (env "+config.EnvWorkDir+", default: work)")
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&cfg.Output.ConsoleFormat, flags.FlagConsoleFormat, "text", "Console output format: text|json|ndjson (default: text)")
	cmd.Flags().StringSliceVar(&cfg.Output.ConsoleFilterStatus, flags.FlagConsoleFilter, nil, "Filter console output by status (LISTED, PREPARED, SUCCESS, NOT_READY, ERROR). Comma-separated.")
	cmd.Flags().StringVar(&cfg.Output.Report, flags.FlagReport, "", "Write a Markdown report to this path")
	cmd.Flags().StringVar(&cfg.Output.Out, flags.FlagOut, "", "Write structured output to this path")
	cmd.Flags().StringVar(&cfg.Output.OutFormat, flags.FlagOutFormat, "", "Structured output format for --out: json|ndjson (default: inferred from file extension)")
	cmd.Flags().StringSliceVar(&cfg.Output.Emit, flags.FlagEmit, nil, "Emit additional structured stream to stdout: json|ndjson (repeatable; comma-separated accepted)")
	cmd.Flags().BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console output (use with --emit/--out/--report)")
}

func addRuntimeFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&cfg.Runtime.Concurrency, flags.FlagConcurrency, 0, "Contexts processed at once (default: 1)")
	cmd.Flags().DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, 0, "Timeout for the whole run, e.g. 2h (default: none)")
}

func init() {
	for _, cmd := range []*cobra.Command{contextsCmd, prepareCmd, executeCmd} {
		rootCmd.AddCommand(cmd)
		cmd.SetHelpTemplate(runHelpTemplate)
		addProcessingFlags(cmd)
		addOutputFlags(cmd)
		if cmd != contextsCmd {
			addLocationFlags(cmd)
			addRuntimeFlags(cmd)
		}
	}
	executeCmd.Flags().BoolVar(&cfg.Processing.Single, flags.FlagSingle, false, "Process only the first context of the interval")
}
