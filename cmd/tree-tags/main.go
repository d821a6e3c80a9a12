// Command tree-tags indexes source trees with tree-sitter grammars and
// answers go-to-definition and find-usages queries against the index.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/maxbrunsfeld/tree-tags/internal/config"
	"github.com/maxbrunsfeld/tree-tags/internal/indexer"
	"github.com/maxbrunsfeld/tree-tags/internal/registry"
	"github.com/maxbrunsfeld/tree-tags/internal/store"
)

var (
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	cyan  = color.New(color.FgCyan).SprintFunc()
)

func main() {
	cfg := config.Load()

	root := &cobra.Command{
		Use:   "tree-tags",
		Short: "Polyglot code indexer: go-to-definition and find-usages over tree-sitter grammars",
	}

	root.AddCommand(
		indexCmd(cfg),
		clearIndexCmd(cfg),
		findDefinitionCmd(cfg),
		findUsagesCmd(cfg),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red(err))
		os.Exit(1)
	}
}

func openRegistry(cfg *config.Config) (*registry.Registry, error) {
	return registry.New(cfg.ConfigDir, cfg.ParserDirs, cfg.CXX)
}

func indexCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "index <path>",
		Short: "Index every recognized source file under path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(cfg)
			if err != nil {
				return err
			}

			ix := indexer.New(reg, func() (*store.Store, error) {
				s, err := store.Open(cfg.DatabaseDSN, cfg.Debug)
				if err != nil {
					return nil, err
				}
				return s, s.Initialize()
			}, cfg.Workers, cfg.Include, cfg.Exclude)

			fmt.Printf("%s indexing %s\n", cyan("→"), args[0])
			if err := ix.IndexPath(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println(green("done"))
			return nil
		},
	}
}

func clearIndexCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-index <path>",
		Short: "Remove every indexed file whose path starts with the given prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Open(cfg.DatabaseDSN, cfg.Debug)
			if err != nil {
				return err
			}
			if err := s.Initialize(); err != nil {
				return err
			}
			if err := s.DeleteFiles([]byte(args[0])); err != nil {
				return err
			}
			fmt.Println(green("cleared"))
			return nil
		},
	}
}

func findDefinitionCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "find-definition <path> <row> <col>",
		Short: "Print the definition(s) of the symbol at a position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Open(cfg.DatabaseDSN, cfg.Debug)
			if err != nil {
				return err
			}
			row, col, err := parsePosition(args[1], args[2])
			if err != nil {
				return err
			}
			matches, err := s.FindDefinition([]byte(args[0]), row, col)
			if err != nil {
				return err
			}
			printMatches(matches)
			return nil
		},
	}
}

func findUsagesCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "find-usages <path> <row> <col>",
		Short: "Print every reference to the symbol defined at a position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Open(cfg.DatabaseDSN, cfg.Debug)
			if err != nil {
				return err
			}
			row, col, err := parsePosition(args[1], args[2])
			if err != nil {
				return err
			}
			matches, err := s.FindUsages([]byte(args[0]), row, col)
			if err != nil {
				return err
			}
			printMatches(matches)
			return nil
		},
	}
}

func parsePosition(rowStr, colStr string) (int, int, error) {
	row, err := strconv.Atoi(rowStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid row %q: %w", rowStr, err)
	}
	col, err := strconv.Atoi(colStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid column %q: %w", colStr, err)
	}
	return row, col, nil
}

func printMatches(matches []store.Match) {
	for _, m := range matches {
		fmt.Printf("%s %d %d %d\n", m.Path, m.Position.Row, m.Position.Column, m.Length)
	}
}
