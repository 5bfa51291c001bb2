package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/geekxflood/ndpsdecode/internal/agentx"
	"github.com/geekxflood/ndpsdecode/internal/ndps"
	"github.com/geekxflood/ndpsdecode/internal/processor"
	"github.com/geekxflood/ndpsdecode/internal/render"
)

var (
	listGrammars bool
	listVarbinds bool
)

// syntaxesCmd represents the syntaxes command
var syntaxesCmd = &cobra.Command{
	Use:   "syntaxes",
	Short: "List the attribute syntax tags the decoder understands",
	Long: `List every registered attribute syntax tag with its name and decode shape.
With --grammars, list the grammar elements accepted by decode --grammar
instead; with --varbinds, the AgentX varbind types.`,
	Example: `# Print the syntax table
	ndpsdecode syntaxes

	# Print the grammar names as JSON
	ndpsdecode syntaxes --grammars --format json`,
	Args: cobra.NoArgs,
	RunE: runSyntaxes,
}

func init() {
	rootCmd.AddCommand(syntaxesCmd)

	syntaxesCmd.Flags().BoolVar(&listGrammars, "grammars", false, "List grammar elements instead of syntax tags")
	syntaxesCmd.Flags().BoolVar(&listVarbinds, "varbinds", false, "List AgentX varbind types instead of syntax tags")
	syntaxesCmd.Flags().StringVarP(&decodeFormat, "format", "f", render.FormatText, "Output format: text or json")
}

type varbindType struct {
	Type int    `json:"type"`
	Name string `json:"name"`
}

func runSyntaxes(cmd *cobra.Command, args []string) error {
	var rows any
	switch {
	case listGrammars:
		names := make([]string, 0, len(ndps.Grammars())+1)
		for _, g := range ndps.Grammars() {
			names = append(names, string(g))
		}
		rows = append(names, processor.GrammarAgentX)
	case listVarbinds:
		var types []varbindType
		for _, t := range agentx.VarbindTypes() {
			types = append(types, varbindType{Type: t, Name: agentx.GetTypeName(t)})
		}
		rows = types
	default:
		rows = ndps.Syntaxes()
	}

	out := cmd.OutOrStdout()
	if decodeFormat == render.FormatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	switch rows := rows.(type) {
	case []string:
		for _, name := range rows {
			fmt.Fprintln(tw, name)
		}
	case []varbindType:
		fmt.Fprintln(tw, "TYPE\tNAME")
		for _, t := range rows {
			fmt.Fprintf(tw, "%d\t%s\n", t.Type, t.Name)
		}
	case []ndps.Syntax:
		fmt.Fprintln(tw, "TAG\tNAME\tSHAPE")
		for _, s := range rows {
			fmt.Fprintf(tw, "0x%02x\t%s\t%s\n", s.Tag, s.Name, s.Shape)
		}
	}
	return tw.Flush()
}
