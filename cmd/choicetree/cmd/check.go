package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/choicetree/internal/rules"
	"github.com/solatis/choicetree/internal/snapshot"
)

var checkCmd = &cobra.Command{
	Use:   "check <snapshot.yaml>",
	Short: "Re-validate every rule of a tree snapshot",
	Long: `Re-validate every saved rule of a YAML tree snapshot as if it were saved
again. Circular references and duplicates are reported as warnings; blocked
rules fail the check.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().Bool("strict", false, "treat warnings as failures")
}

func runCheck(cmd *cobra.Command, args []string) error {
	strict, _ := cmd.Flags().GetBool("strict")

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	tree, saved, err := snapshot.Decode(f)
	if err != nil {
		return err
	}
	compiled, err := rules.Compile(tree, saved)
	if err != nil {
		return err
	}

	engine := rules.NewEngine(logger, nil)
	out := cmd.OutOrStdout()
	var blocked, warned int

	for _, r := range saved {
		result := engine.Validate(cmd.Context(), compiled, rules.Request{
			RuleType:     r.Type,
			RuleID:       r.RuleID,
			Edited:       rules.EditedItem{ID: r.OwnerID},
			Candidates:   r.Items,
			DependentIDs: rules.DependentIDs(compiled.RulesOfType(r.Type, r.RuleID), r.OwnerID),
		})

		switch {
		case result.Verdict == rules.VerdictBlocked:
			blocked++
			fmt.Fprintf(out, "%s\t%s\tblocked: %v\n", r.RuleID, r.Type, result.Reason)
		case result.NeedsConfirmation():
			warned++
			for _, w := range result.Warnings {
				fmt.Fprintf(out, "%s\t%s\t%s: %s\n", r.RuleID, r.Type, w.Kind, w.Message)
			}
		}
	}

	fmt.Fprintf(out, "%d rules, %d blocked, %d with warnings\n", len(saved), blocked, warned)
	if blocked > 0 || (strict && warned > 0) {
		return fmt.Errorf("check failed")
	}
	return nil
}
