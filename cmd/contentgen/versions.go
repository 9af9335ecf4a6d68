package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var versionsCmd = &cobra.Command{
	Use:   "versions <kind>",
	Short: "List cache versions, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKindArg(args[0])
		if err != nil {
			return err
		}
		list, err := application.Services.Cache.ListVersionsWithStats(cmd.Context(), kind)
		if err != nil {
			return fmt.Errorf("list versions: %w", err)
		}
		if outputFormat == "json" {
			return printJSON(list)
		}
		rows := make([][]string, 0, len(list))
		for _, v := range list {
			rows = append(rows, []string{
				v.Version,
				v.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				strings.Join(v.Languages, ","),
				strconv.Itoa(v.TotalItems),
				strconv.FormatInt(v.Stats.Total, 10),
				v.Description,
			})
		}
		printTable([]string{"Version", "Created", "Languages", "Items", "Entries", "Description"}, rows)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <kind> [version]",
	Short: "Show entry counts for one version, or across all versions",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKindArg(args[0])
		if err != nil {
			return err
		}
		version := ""
		if len(args) == 2 {
			version = args[1]
		}
		stats, err := application.Services.Cache.Stats(cmd.Context(), kind, version)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		if outputFormat == "json" {
			return printJSON(stats)
		}
		langs := make([]string, 0, len(stats.PerLanguage))
		for l := range stats.PerLanguage {
			langs = append(langs, l)
		}
		sort.Strings(langs)
		rows := [][]string{{"total", strconv.FormatInt(stats.Total, 10)}, {"unique items", strconv.FormatInt(stats.UniqueItems, 10)}}
		for _, l := range langs {
			rows = append(rows, []string{l, strconv.FormatInt(stats.PerLanguage[l], 10)})
		}
		printTable([]string{"Metric", "Count"}, rows)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <kind> <version>",
	Short: "Delete a cache version with its entries and export artifact",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKindArg(args[0])
		if err != nil {
			return err
		}
		if err := application.Services.Cache.DeleteVersion(cmd.Context(), kind, args[1]); err != nil {
			return fmt.Errorf("delete %s: %w", args[1], err)
		}
		fmt.Printf("deleted %s\n", args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionsCmd, statsCmd, deleteCmd)
}
