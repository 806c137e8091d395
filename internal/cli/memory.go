package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

var (
	storeType   string
	searchLimit int
)

var storeCmd = &cobra.Command{
	Use:   "store <key> <json-value>",
	Short: "Store a value under a key",
	Long: `Store a value under a key in the working tier. The value is parsed as
JSON; anything that is not valid JSON is stored as a plain string.`,
	Args: cobra.ExactArgs(2),
	RunE: runStore,
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <key>",
	Short: "Retrieve the value stored under a key",
	Args:  cobra.ExactArgs(1),
	RunE:  runRetrieve,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search working-tier keys for a substring",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	storeCmd.Flags().StringVar(&storeType, "type", "general", "memory type label")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of matches")

	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(searchCmd)
}

func runStore(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var value interface{}
	if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
		value = args[1]
	}

	var resp map[string]interface{}
	body := map[string]interface{}{
		"key":         args[0],
		"value":       value,
		"memory_type": storeType,
	}
	if err := client.do(cmd.Context(), http.MethodPost, "/store", body, &resp); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Stored %s (%v bytes)\n", args[0], resp["size"])
	return nil
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var resp struct {
		Found    bool        `json:"found"`
		Value    interface{} `json:"value"`
		CacheHit bool        `json:"cache_hit"`
	}
	if err := client.do(cmd.Context(), http.MethodGet, "/retrieve/"+url.PathEscape(args[0]), nil, &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !resp.Found {
		fmt.Fprintf(out, "Key %s not found\n", args[0])
		return nil
	}
	return printOutput(out, "json", resp.Value)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchLimit < 0 {
		return fmt.Errorf("limit must be >= 0, got %d", searchLimit)
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var resp struct {
		Matches []struct {
			Key   string  `json:"key"`
			Score float64 `json:"score"`
		} `json:"matches"`
		TotalMatches int `json:"total_matches"`
	}
	body := map[string]interface{}{
		"query": args[0],
		"limit": searchLimit,
	}
	if err := client.do(cmd.Context(), http.MethodPost, "/search", body, &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if resp.TotalMatches == 0 {
		fmt.Fprintln(out, "No matches")
		return nil
	}
	for _, m := range resp.Matches {
		fmt.Fprintf(out, "%.3f  %s\n", m.Score, m.Key)
	}
	return nil
}
