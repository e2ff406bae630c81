package main

import (
	"fmt"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/errors"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/repolist"
	"github.com/spf13/cobra"
)

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Build and split the repository list",
}

var reposOut string

var reposUniqueCmd = &cobra.Command{
	Use:   "unique <sonar_measures.zip|csv>",
	Short: "Build the repository list from a sonar measures export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := registry.For("Repos")
		repos, err := repolist.FromSonarMeasures(args[0])
		if err != nil {
			return err
		}
		out := reposOut
		if out == "" {
			out = cfg.Paths.RepoList
		}
		if err := repolist.Save(out, repos); err != nil {
			return err
		}
		logger.WithField("repositories", len(repos)).WithField("output", out).Info("Repository list written")
		fmt.Printf("%d repositories -> %s\n", len(repos), out)
		return nil
	},
}

var reposDivideCmd = &cobra.Command{
	Use:   "divide <members>",
	Short: "Split the repository list into one file per team member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var members int
		if _, err := fmt.Sscanf(args[0], "%d", &members); err != nil {
			return errors.ValidationErrorf("invalid number of members %q", args[0])
		}
		input := reposOut
		if input == "" {
			input = cfg.Paths.RepoList
		}
		paths, err := repolist.WriteShards(input, members)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		return nil
	},
}

func init() {
	reposUniqueCmd.Flags().StringVar(&reposOut, "out", "", "repository list to write (default from config)")
	reposDivideCmd.Flags().StringVar(&reposOut, "list", "", "repository list to split (default from config)")
	reposCmd.AddCommand(reposUniqueCmd)
	reposCmd.AddCommand(reposDivideCmd)
}
