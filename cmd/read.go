package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentic-research/fedgraph/internal/client"
	"github.com/agentic-research/fedgraph/internal/graph"
)

var treeDepth int

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List the children of a node",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			loc, err := s.graph.Location(pathArg(args))
			if err != nil {
				return err
			}
			children, err := s.graph.Children(loc)
			if err != nil {
				return err
			}
			for _, c := range children {
				last, _ := c.Path().Last()
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), last)
			}
			return nil
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get [path]",
	Short: "Print the properties of a node",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			loc, err := s.graph.Location(pathArg(args))
			if err != nil {
				return err
			}
			n, err := s.graph.Node(loc)
			if err != nil {
				return err
			}
			printNode(cmd.OutOrStdout(), n, "")
			return nil
		})
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree [path]",
	Short: "Print a branch of the federated graph",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			loc, err := s.graph.Location(pathArg(args))
			if err != nil {
				return err
			}
			sub, err := s.graph.Subgraph(loc, treeDepth)
			if err != nil {
				return err
			}
			root := sub.Root().Path()
			sub.Each(func(n *client.Node) bool {
				indent := strings.Repeat("  ", n.Path().Len()-root.Len())
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", indent, nodeName(n.Path()))
				return true
			})
			return nil
		})
	},
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the projections of the federation in precedence order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			for _, p := range s.repo.Config().Projections() {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", p.SourceName())
				for _, text := range p.RuleTexts() {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", text)
				}
			}
			return nil
		})
	},
}

func init() {
	treeCmd.Flags().IntVarP(&treeDepth, "depth", "d", 2, "Levels below the starting node")
	rootCmd.AddCommand(lsCmd, getCmd, treeCmd, rulesCmd)
}

func pathArg(args []string) string {
	if len(args) == 0 {
		return "/"
	}
	return args[0]
}

func nodeName(p graph.Path) string {
	if last, ok := p.Last(); ok {
		return last.String()
	}
	return "/"
}

func printNode(w io.Writer, n *client.Node, indent string) {
	_, _ = fmt.Fprintf(w, "%s%s\n", indent, n.Location())
	for _, p := range n.Properties() {
		_, _ = fmt.Fprintf(w, "%s  %s\n", indent, p)
	}
	for _, c := range n.Children() {
		_, _ = fmt.Fprintf(w, "%s  + %s\n", indent, nodeName(c.Path()))
	}
}
