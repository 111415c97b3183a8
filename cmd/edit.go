package cmd

import (
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"redep/internal/config"
	"redep/internal/deploy/types"
	"redep/internal/util"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a default redep.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.PathForNew(configFile)
			if err != nil {
				return err
			}
			if err := config.Init(p, nil); err != nil {
				return err
			}
			util.Default.Printf("✅ Initialized new redep configuration at: %s\n", p)
			return nil
		},
	}
}

func newRemoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Manage push destinations and the pull source",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <[user@]host:/path | /local/path>",
		Short: "Add a remote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.PathForNew(configFile)
			if err != nil {
				return err
			}
			ep, err := config.AddRemote(p, args[0])
			if err != nil {
				return err
			}
			util.Default.Printf("✅ Added remote %s to %s\n", describe(ep), p)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rm [[user@]host:/path | /local/path]",
		Short: "Remove a remote, prompting for it when no argument is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.PathForNew(configFile)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				ep, err := config.RemoveRemote(p, args[0])
				if err != nil {
					return err
				}
				util.Default.Printf("✅ Removed remote %s from %s\n", describe(ep), p)
				return nil
			}
			return promptRemoveRemote(p)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured remotes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.FindExisting(configFile)
			if err != nil {
				return err
			}
			cfg, err := config.LoadRaw(p)
			if err != nil {
				return err
			}
			if len(cfg.Remotes) == 0 {
				util.Default.Println("No remotes configured")
			}
			for i, r := range cfg.Remotes {
				util.Default.Printf("%d. %s\n", i+1, r)
			}
			return nil
		},
	})
	return cmd
}

// promptRemoveRemote lets the user pick the remote to delete.
func promptRemoveRemote(p string) error {
	cfg, err := config.LoadRaw(p)
	if err != nil {
		return err
	}
	var eps []types.Endpoint
	var items []string
	for _, r := range cfg.Remotes {
		if r.Host == nil || r.Path == nil {
			continue
		}
		ep := types.Endpoint{Host: *r.Host, Path: *r.Path}
		eps = append(eps, ep)
		items = append(items, describe(ep))
	}
	if len(eps) == 0 {
		util.Default.Println("No remotes configured")
		return nil
	}

	prompt := promptui.Select{
		Label: "Select the remote to remove",
		Items: items,
		Size:  10,
	}
	idx, _, err := prompt.Run()
	if err != nil {
		return fmt.Errorf("selection cancelled: %v", err)
	}
	if err := config.RemoveEndpoint(p, eps[idx]); err != nil {
		return err
	}
	util.Default.Printf("✅ Removed remote %s from %s\n", items[idx], p)
	return nil
}

func newIgnoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ignore",
		Short: "Manage ignore patterns",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <pattern>",
		Short: "Add an ignore pattern (quote it so the shell does not expand it)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.PathForNew(configFile)
			if err != nil {
				return err
			}
			if err := config.AddIgnore(p, args[0]); err != nil {
				return err
			}
			util.Default.Printf("✅ Added ignore pattern '%s' to %s\n", args[0], p)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rm <pattern>",
		Short: "Remove an ignore pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.PathForNew(configFile)
			if err != nil {
				return err
			}
			if err := config.RemoveIgnore(p, args[0]); err != nil {
				return err
			}
			util.Default.Printf("✅ Removed ignore pattern '%s' from %s\n", args[0], p)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List ignore patterns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.FindExisting(configFile)
			if err != nil {
				return err
			}
			cfg, err := config.LoadRaw(p)
			if err != nil {
				return err
			}
			for _, pattern := range cfg.Ignore {
				util.Default.Println(pattern)
			}
			return nil
		},
	})
	return cmd
}
