package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/kestreldb/kestrel/kql"
	"github.com/kestreldb/kestrel/sym"
)

var (
	queryFormat string
)

// QueryCmd executes one KQL query against the local database.
var QueryCmd = &cobra.Command{
	Use:   "query [KQL]",
	Short: sym.Find + " Execute a KQL query",
	Long: sym.Find + ` query — Execute a KQL query

Runs one query through the full pipeline and prints the result.

Examples:
  kestrel query "UPSERT Task {name: 'deploy', status: 'open'}"
  kestrel query "FIND Task WHERE status = 'open'"
  kestrel query "FIND Task GROUP BY status AGGREGATE COUNT(*)"
  kestrel query "DELETE Task WHERE status = 'done'"`,
	Args: cobra.ExactArgs(1),
	RunE: runQueryCommand,
}

func init() {
	QueryCmd.Flags().StringVarP(&queryFormat, "format", "f", "table", "Output format (table/json)")
}

func runQueryCommand(cmd *cobra.Command, args []string) error {
	database, cfg, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	engine, err := buildEngine(database, cfg)
	if err != nil {
		return err
	}

	resp := engine.ExecuteQuery(context.Background(), args[0])

	if queryFormat == "json" {
		return displayJSON(resp)
	}
	return displayResponse(resp)
}

func displayJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func displayResponse(resp *kql.Response) error {
	if !resp.OK {
		pterm.Error.Printf("%s: %s\n", resp.Error.Code, resp.Error.Message)
		if resp.Error.Detail != "" {
			fmt.Println(resp.Error.Detail)
		}
		return nil
	}

	switch data := resp.Data.(type) {
	case []map[string]interface{}:
		if err := displayRows(data); err != nil {
			return err
		}
	case map[string]interface{}:
		for _, key := range sortedKeys(data) {
			fmt.Printf("%s: %v\n", key, data[key])
		}
	default:
		return displayJSON(resp.Data)
	}

	if resp.Pagination != nil && resp.Pagination.HasMore {
		fmt.Printf("\n%s more results, resume with CURSOR '%s'\n", sym.Cursor, resp.Pagination.Cursor)
	}
	if resp.Metadata != nil {
		fmt.Printf("\n%.2fms", resp.Metadata.ExecutionTimeMs)
		if c := resp.Metadata.Compliance; c != nil && c.Total > 0 {
			fmt.Printf(" · compliance %.0f%% (%d/%d checks)", c.Score*100, c.Passed, c.Total)
		}
		fmt.Println()
	}
	return nil
}

func displayRows(rows []map[string]interface{}) error {
	if len(rows) == 0 {
		fmt.Println("No results")
		return nil
	}

	// Union of keys across rows, stable order
	seen := map[string]bool{}
	var columns []string
	for _, row := range rows {
		for key := range row {
			if !seen[key] {
				seen[key] = true
				columns = append(columns, key)
			}
		}
	}
	sort.Strings(columns)

	table := pterm.TableData{columns}
	for _, row := range rows {
		line := make([]string, len(columns))
		for i, col := range columns {
			if value, ok := row[col]; ok {
				line[i] = fmt.Sprintf("%v", value)
			}
		}
		table = append(table, line)
	}
	return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
