package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

var statusOutput string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  `Show the status and memory statistics of a running BrainMemory server.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "text", "output format (text, json, yaml)")
	rootCmd.AddCommand(statusCmd)
}

type statusReport struct {
	Status map[string]interface{} `json:"status" yaml:"status"`
	Memory map[string]interface{} `json:"memory" yaml:"memory"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	var report statusReport
	if err := client.do(ctx, "GET", "/status", nil, &report.Status); err != nil {
		if statusOutput == "text" {
			fmt.Fprintln(out, "Status: stopped")
			return nil
		}
		return err
	}
	if err := client.do(ctx, "GET", "/memory", nil, &report.Memory); err != nil {
		return err
	}

	if statusOutput == "text" {
		printStatusText(out, report)
		return nil
	}
	return printOutput(out, statusOutput, report)
}

func printStatusText(w io.Writer, r statusReport) {
	fmt.Fprintf(w, "Status: %v\n", r.Status["status"])
	fmt.Fprintf(w, "Version: %v\n", r.Status["version"])
	if uptime, ok := r.Status["uptime"].(float64); ok {
		fmt.Fprintf(w, "Uptime: %s\n", formatDuration(time.Duration(uptime)*time.Second))
	}

	working := section(r.Memory, "working_memory")
	longTerm := section(r.Memory, "long_term_memory")
	cache := section(r.Memory, "context_cache")
	assoc := section(r.Memory, "associations")

	fmt.Fprintf(w, "Working memory: %v entries\n", working["entries"])
	fmt.Fprintf(w, "Long-term memory: %v entries\n", longTerm["entries"])
	fmt.Fprintf(w, "Context cache: %v keys, hit rate %.2f\n", cache["size"], number(cache["hit_rate"]))
	fmt.Fprintf(w, "Associations: %v nodes, %v edges\n", assoc["nodes"], assoc["edges"])
}

func section(m map[string]interface{}, key string) map[string]interface{} {
	if s, ok := m[key].(map[string]interface{}); ok {
		return s
	}
	return map[string]interface{}{}
}

func number(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
