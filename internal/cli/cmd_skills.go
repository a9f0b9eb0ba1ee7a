// Package cli implements the golem command-line interface.
package cli

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hallgrim/golem/internal/config"
	"github.com/hallgrim/golem/internal/skills"
)

// newSkillsCmd creates the skills command group
func newSkillsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skills",
		Short: "Inspect and manage the learned skill library",
	}
	cmd.AddCommand(newSkillsListCmd())
	cmd.AddCommand(newSkillsUnlockCmd())
	return cmd
}

func openSkillRepo() (*skills.Repository, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return skills.Open(filepath.Join(cfg.DataDir, "skills.db"))
}

// newSkillsListCmd creates the skills list command
func newSkillsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List learned skills",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openSkillRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			list, err := repo.List()
			if err != nil {
				return fmt.Errorf("list skills: %w", err)
			}
			if len(list) == 0 {
				fmt.Println("No skills learned yet.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCATEGORY\tUNLOCKED\tUSES")
			for _, s := range list {
				fmt.Fprintf(w, "%s\t%s\t%t\t%d\n", s.Name, s.Category, s.Unlocked, s.Uses)
			}
			return w.Flush()
		},
	}
}

// newSkillsUnlockCmd creates the skills unlock command
func newSkillsUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <name>",
		Short: "Mark a skill as usable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openSkillRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.Unlock(args[0]); err != nil {
				return fmt.Errorf("unlock skill: %w", err)
			}
			fmt.Printf("Skill %q unlocked.\n", args[0])
			return nil
		},
	}
}
