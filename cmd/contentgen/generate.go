package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	types "github.com/yungbote/checklist-advisor/internal/domain"
	"github.com/yungbote/checklist-advisor/internal/services"
)

var (
	genForce       bool
	genLanguages   []string
	genIncludeJA   bool
	genIncludeEN   bool
	genContext     bool
	genDescription string
	genQuiet       bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <kind>",
	Short: "Run a generation batch for one kind",
	Long:  `Generates content for every catalog item in each selected language into a new cache version. Interrupting the command cancels the run; entries already written are kept.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKindArg(args[0])
		if err != nil {
			return err
		}

		req := services.GenerationRequest{
			ForceRegenerate: genForce,
			Languages:       genLanguages,
			IncludeContext:  genContext,
			Description:     genDescription,
		}
		if cmd.Flags().Changed("ja") {
			req.IncludeJA = &genIncludeJA
		}
		if cmd.Flags().Changed("en") {
			req.IncludeEN = &genIncludeEN
		}

		if !genQuiet {
			unsub := application.Services.Progress.Subscribe(kind, func(st types.ProgressState) {
				if st.Status != types.StatusRunning {
					return
				}
				fmt.Fprintf(os.Stderr, "\r[%s] %d/%d %s %s          ",
					st.CurrentLanguage, st.CompletedItems, st.TotalItems, st.CurrentItem, st.CurrentItemTitle)
			})
			defer unsub()
		}

		summary, err := application.Services.Generation.Run(cmd.Context(), kind, req)
		if !genQuiet {
			fmt.Fprintln(os.Stderr)
		}
		if err != nil {
			return err
		}

		if outputFormat == "json" {
			if err := printJSON(summary); err != nil {
				return err
			}
		} else {
			printSummary(summary)
		}
		if summary.Status != types.StatusCompleted {
			return fmt.Errorf("generation %s: %s", summary.Version, summary.Status)
		}
		return nil
	},
}

func printSummary(s *services.RunSummary) {
	rows := make([][]string, 0, len(s.Languages))
	for _, lang := range s.Languages {
		r := s.Results[lang]
		rows = append(rows, []string{
			lang,
			strconv.Itoa(r.Generated),
			strconv.Itoa(r.FromCache),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Skipped),
		})
	}
	fmt.Printf("version %s (%s), %d items, status %s\n", s.Version, s.Kind, s.TotalItems, s.Status)
	printTable([]string{"Language", "Generated", "From cache", "Failed", "Skipped"}, rows)
	for _, e := range s.Errors {
		fmt.Printf("  %s %s: %s\n", e.Language, e.ItemID, strings.TrimSpace(e.Message))
	}
}

func init() {
	f := generateCmd.Flags()
	f.BoolVar(&genForce, "force", false, "ignore cached entries and call the provider for every item")
	f.StringSliceVar(&genLanguages, "lang", nil, "languages to generate (overrides --ja/--en)")
	f.BoolVar(&genIncludeJA, "ja", true, "include Japanese")
	f.BoolVar(&genIncludeEN, "en", true, "include English")
	f.BoolVar(&genContext, "context", false, "include prior advice when generating evidence")
	f.StringVar(&genDescription, "description", "", "description stored on the new version")
	f.BoolVarP(&genQuiet, "quiet", "q", false, "do not print progress")
	rootCmd.AddCommand(generateCmd)
}
