package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	types "github.com/yungbote/checklist-advisor/internal/domain"
)

var exportFile string

var exportCmd = &cobra.Command{
	Use:   "export <kind> <version>",
	Short: "Write a version's export document to a file or stdout",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKindArg(args[0])
		if err != nil {
			return err
		}
		payload, err := application.Services.Cache.ExportVersion(cmd.Context(), kind, args[1])
		if err != nil {
			return fmt.Errorf("export %s: %w", args[1], err)
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		if exportFile == "" || exportFile == "-" {
			_, err = os.Stdout.Write(append(data, '\n'))
			return err
		}
		if err := os.WriteFile(exportFile, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %d entries to %s\n", payload.EntryCount(), exportFile)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <kind> <file>",
	Short: "Load an export document into the cache",
	Long:  `Imports an export document under its own version id. Importing the same document twice leaves the cache unchanged. Use "-" to read stdin.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKindArg(args[0])
		if err != nil {
			return err
		}
		var raw []byte
		if args[1] == "-" {
			raw, err = io.ReadAll(os.Stdin)
		} else {
			raw, err = os.ReadFile(args[1])
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", args[1], err)
		}
		var payload types.ExportPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("decode %s: %w", args[1], err)
		}
		res, err := application.Services.Cache.ImportVersion(cmd.Context(), kind, &payload)
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}
		if outputFormat == "json" {
			return printJSON(res)
		}
		fmt.Printf("imported %d entries into %s (%d items)\n", res.Entries, res.Version, res.TotalItems)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFile, "file", "f", "", "output path (default stdout)")
	rootCmd.AddCommand(exportCmd, importCmd)
}
