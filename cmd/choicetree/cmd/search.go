package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solatis/choicetree/internal/rules"
	"github.com/solatis/choicetree/internal/snapshot"
	"github.com/solatis/choicetree/internal/types"
)

var searchCmd = &cobra.Command{
	Use:   "search <snapshot.yaml> <keyword>",
	Short: "Search a tree snapshot and print the expanded result",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		filterName, _ := cmd.Flags().GetString("filter")
		filter, err := rules.ParseFilter(filterName)
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		tree, _, err := snapshot.Decode(f)
		if err != nil {
			return err
		}

		result := rules.NewEngine(logger, nil).Search(cmd.Context(), tree, args[1], filter)

		out := cmd.OutOrStdout()
		tree.Walk(func(n types.Node) {
			st := result.State(n.Ref())
			if !st.Matched {
				return
			}
			marker := " "
			if st.Open {
				marker = "+"
			}
			fmt.Fprintf(out, "%s%s %s %d %s\n", strings.Repeat("  ", depth(n.Kind)), marker, n.Kind, n.ID, n.Label)
		})
		fmt.Fprintf(out, "%d matches\n", result.MatchCount)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().String("filter", string(rules.FilterAll), `tree level to match ("All", "Group", "SubGroup", "Decision Point", "Choice")`)
}

func depth(k types.NodeKind) int {
	return int(k - types.KindGroup)
}
