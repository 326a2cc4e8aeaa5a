package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"ctpdaily/internal/ncutil"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Summarise a NetCDF product",
	Long: `Print the global attributes and variables of a NetCDF file, such as a
daily or orbital CTP product.

Examples:
  ctpdaily inspect hirs_ctp_daily_noaa-18_D17001.nc
  ctpdaily inspect --json hirs_ctp_daily_noaa-18_D17001.nc

Output:
  ----------------------------------------
  FILE: {PATH}
  ----------------------------------------
  Attributes:
    {NAME} = {VALUE}
  Variables:
    {NAME} {TYPE}({DIMENSIONS})
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := ncutil.Inspect(args[0])
		if err != nil {
			return err
		}
		if inspectJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		}
		printSummary(cmd.OutOrStdout(), s)
		return nil
	},
}

func printSummary(w io.Writer, s ncutil.Summary) {
	bold := color.New(color.Bold)
	fmt.Fprintln(w, "----------------------------------------")
	bold.Fprintf(w, "FILE: %s\n", s.Path)
	fmt.Fprintln(w, "----------------------------------------")

	if len(s.Attributes) > 0 {
		fmt.Fprintln(w, "Attributes:")
		printAttributes(w, "  ", s.Attributes)
	}

	fmt.Fprintln(w, "Variables:")
	if len(s.Variables) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, v := range s.Variables {
		fmt.Fprintf(w, "  %s %s(%s)\n", bold.Sprint(v.Name), v.Type, strings.Join(v.Dimensions, ", "))
		printAttributes(w, "    ", v.Attributes)
	}
	fmt.Fprintln(w)
}

func printAttributes(w io.Writer, indent string, attrs map[string]string) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s%s = %s\n", indent, k, attrs[k])
	}
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Print the summary as JSON")
}
