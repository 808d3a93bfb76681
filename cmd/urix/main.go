package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/kcmvp/restx/cmd/urix/build"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "urix",
	Short: "urix composes request URIs from resource templates and parameters.",
	Long: `urix resolves a resource template such as "users/{id}" against an endpoint,
path segment and query parameters, the same way a restx client does before it
sends a request.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(build.BuildCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}
