package flags

// Package flags defines canonical CLI flag names shared across the CLI and engine.
// Keeping these as constants avoids drift between Cobra flag wiring and code
// that needs to reference flags (e.g. checking whether --config was set explicitly).
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().StringVar(&cfg.Processing.Satellite, flags.FlagSatellite, "", "...")
//	arg := "--" + flags.FlagSatellite
const (
	// Processing
	FlagSatellite   = "satellite"
	FlagStart       = "start"
	FlagEnd         = "end"
	FlagPartialDays = "partial-days"
	FlagSingle      = "single"

	// Delivery lineage
	FlagHIRS2NCDelivery         = "hirs2nc-delivery-id"
	FlagHIRSAVHRRDelivery       = "hirs-avhrr-delivery-id"
	FlagHIRSCSRBDailyDelivery   = "hirs-csrb-daily-delivery-id"
	FlagHIRSCSRBMonthlyDelivery = "hirs-csrb-monthly-delivery-id"
	FlagHIRSCTPOrbitalDelivery  = "hirs-ctp-orbital-delivery-id"
	FlagHIRSCTPDailyDelivery    = "hirs-ctp-daily-delivery-id"

	// Locations
	FlagConfig       = "config"
	FlagCatalogRoot  = "catalog-root"
	FlagSoftwareRoot = "software-root"
	FlagWorkDir      = "work-dir"

	// Output
	FlagConsoleFormat = "console-format"
	FlagOut           = "out"
	FlagOutFormat     = "out-format"
	FlagEmit          = "emit"
	FlagNoConsole     = "no-console"
	FlagConsoleFilter = "console-filter-status"
	FlagReport        = "report"

	// Runtime
	FlagConcurrency = "concurrency"
	FlagTimeout     = "timeout"
	FlagVerbose     = "verbose"
)
