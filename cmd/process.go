package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/telhawk-systems/rawproc/internal/notification"
	"github.com/telhawk-systems/rawproc/internal/processor"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process one notification batch from a file",
	Long: `Reads an S3 or MinIO notification document from --event (use - for stdin),
runs it against the configured stores and prints the result.`,
	Example: `  rawproc process --event notification.json
  cat notification.json | rawproc process --event - --output yaml`,
	Args: cobra.NoArgs,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().String("event", "", "notification document path, or - for stdin")
	processCmd.Flags().StringP("output", "o", "text", "output format: text, json, yaml")
	_ = processCmd.MarkFlagRequired("event")
	rootCmd.AddCommand(processCmd)
}

// processSummary is what the process command prints.
type processSummary struct {
	OK    bool            `json:"ok" yaml:"ok"`
	Error string          `json:"error,omitempty" yaml:"error,omitempty"`
	Stats processor.Stats `json:"stats" yaml:"stats"`
}

func readEvent(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func runProcess(cmd *cobra.Command, args []string) error {
	eventPath, _ := cmd.Flags().GetString("event")
	outputFormat, _ := cmd.Flags().GetString("output")

	data, err := readEvent(eventPath, cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("read event: %w", err)
	}
	evt, err := notification.Decode(data)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), "rawproc-process")
	if err != nil {
		return err
	}
	defer a.Close()

	result, handleErr := a.processor.Handle(cmd.Context(), evt)
	summary := processSummary{OK: result.OK, Stats: a.processor.Health()}
	if handleErr != nil {
		summary.Error = handleErr.Error()
	}

	if err := renderSummary(cmd.OutOrStdout(), outputFormat, summary); err != nil {
		return err
	}
	return handleErr
}

func renderSummary(w io.Writer, format string, s processSummary) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		if s.OK {
			color.New(color.FgGreen, color.Bold).Fprintln(w, "✓ batch processed")
		} else {
			color.New(color.FgRed, color.Bold).Fprintf(w, "✗ batch failed: %s\n", s.Error)
		}
		fmt.Fprintf(w, "  processed:   %d\n", s.Stats.Processed)
		fmt.Fprintf(w, "  quarantined: %d\n", s.Stats.Quarantined)
		fmt.Fprintf(w, "  skipped:     %d\n", s.Stats.Skipped)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (supported: text, json, yaml)", format)
	}
}
