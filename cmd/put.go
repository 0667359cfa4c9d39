package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentic-research/fedgraph/internal/graph"
	"github.com/agentic-research/fedgraph/internal/request"
)

var putCreate bool

var putCmd = &cobra.Command{
	Use:   "put <path> [name=value...]",
	Short: "Set properties on a node, creating it with --create",
	Long: `Set properties on a node. A bare name without "=" removes the property.
With --create the node is created (or replaced) with the given properties.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			loc, err := s.graph.Location(args[0])
			if err != nil {
				return err
			}
			props, err := parseAssignments(s.graph.Context(), args[1:])
			if err != nil {
				return err
			}

			b := s.graph.Batch()
			if putCreate {
				b.Create(loc.Path()).With(props...).OnConflict(request.ReplaceExisting).And()
			} else {
				for _, p := range props {
					b.Set(p.Name, p.Values...).On(loc)
				}
			}
			results, err := b.Execute()
			if err != nil {
				return err
			}
			for _, p := range results.Written() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		})
	},
}

func init() {
	putCmd.Flags().BoolVar(&putCreate, "create", false, "Create the node, replacing any existing one")
	rootCmd.AddCommand(putCmd)
}

// parseAssignments turns name=value arguments into properties. Repeating a
// name adds values to it.
func parseAssignments(ctx *graph.ExecutionContext, args []string) ([]graph.Property, error) {
	bag := graph.NewProperties()
	for _, arg := range args {
		name, value, hasValue := strings.Cut(arg, "=")
		if name == "" {
			return nil, fmt.Errorf("invalid assignment %q", arg)
		}
		if !hasValue {
			p, err := ctx.CreateProperty(name)
			if err != nil {
				return nil, err
			}
			bag.Set(p)
			continue
		}
		values := []any{value}
		if prev, ok := bag.Get(name); ok {
			values = append(prev.Values, value)
		}
		p, err := ctx.CreateProperty(name, values...)
		if err != nil {
			return nil, err
		}
		bag.Set(p)
	}
	return bag.List(), nil
}
