package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/yungbote/checklist-advisor/internal/app"
	types "github.com/yungbote/checklist-advisor/internal/domain"
)

var (
	application  *app.App
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:           "contentgen",
	Short:         "Generate and manage cached checklist content",
	Long:          `Runs generation batches against the configured LLM provider and manages cache versions in the shared database.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if outputFormat != "table" && outputFormat != "json" {
			return fmt.Errorf("unsupported output %q (want table or json)", outputFormat)
		}
		a, err := app.New(cmd.Context())
		if err != nil {
			return err
		}
		application = a
		return application.Start()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table or json")
}

func closeApp() {
	if application != nil {
		application.Close()
	}
}

func parseKindArg(s string) (types.Kind, error) {
	kind, ok := types.ParseKind(s)
	if !ok {
		return "", fmt.Errorf("unknown kind %q", s)
	}
	return kind, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers(headers...).
		Rows(rows...)
	fmt.Println(t)
}
