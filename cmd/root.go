package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rawproc",
	Short: "Raw tenant upload processor",
	Long: `rawproc validates tenant JSON uploads, records an audit row per object and
writes an enriched copy to the processed bucket. Malformed objects are moved
to quarantine.

Run it as a Lambda S3 trigger, as a JetStream consumer of MinIO bucket
notifications, or once against a notification file.`,
	Version:      "0.1.0",
	SilenceUsage: true,
}

// Execute runs the root command. Inside the Lambda runtime a bare invocation
// runs the lambda command.
func Execute() error {
	rootCmd.SetArgs(defaultArgs(os.Args[1:], os.Getenv))
	return rootCmd.Execute()
}

func defaultArgs(args []string, getenv func(string) string) []string {
	if len(args) == 0 && getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		return []string{"lambda"}
	}
	return args
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $RAWPROC_CONFIG_DIR/config.yaml)")
}
