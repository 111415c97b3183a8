package cmd

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"redep/internal/config"
	"redep/internal/util"
)

const (
	menuPush         = "🚀 Push"
	menuPull         = "📥 Pull"
	menuStatus       = "📊 Status"
	menuAddRemote    = "➕ Add remote"
	menuRemoveRemote = "➖ Remove remote"
	menuAddIgnore    = "🚫 Add ignore pattern"
	menuInit         = "📝 Init configuration"
	menuExit         = "🚪 Exit"
)

func newMenuCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Interactive menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu()
		},
	}
}

func runMenu() error {
	for {
		items := []string{menuPush, menuPull, menuStatus, menuAddRemote, menuRemoveRemote, menuAddIgnore}
		if _, err := config.FindExisting(configFile); err != nil {
			items = []string{menuInit}
		}
		items = append(items, menuExit)

		prompt := promptui.Select{
			Label: "redep",
			Items: items,
			Size:  10,
		}
		_, result, err := prompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return nil
			}
			return fmt.Errorf("menu cancelled: %v", err)
		}

		switch result {
		case menuExit:
			return nil
		case menuPush:
			err = runPush(0)
		case menuPull:
			err = runPull()
		case menuStatus:
			err = runStatus(false)
		case menuInit:
			err = menuInitConfig()
		case menuAddRemote:
			err = menuAddRemoteEntry()
		case menuRemoveRemote:
			err = withConfigPath(promptRemoveRemote)
		case menuAddIgnore:
			err = menuAddIgnoreEntry()
		}
		if err != nil {
			util.Default.Printf("❌ %v\n", err)
		}
	}
}

func withConfigPath(fn func(p string) error) error {
	p, err := config.PathForNew(configFile)
	if err != nil {
		return err
	}
	return fn(p)
}

func menuInitConfig() error {
	return withConfigPath(func(p string) error {
		if err := config.Init(p, nil); err != nil {
			return err
		}
		util.Default.Printf("✅ Initialized new redep configuration at: %s\n", p)
		return nil
	})
}

func menuAddRemoteEntry() error {
	prompt := promptui.Prompt{
		Label: "Remote ([user@]host:/path or /local/path)",
		Validate: func(s string) error {
			_, err := config.ParseHostPath(s)
			return err
		},
	}
	value, err := prompt.Run()
	if err != nil {
		return nil
	}
	return withConfigPath(func(p string) error {
		ep, err := config.AddRemote(p, value)
		if err != nil {
			return err
		}
		util.Default.Printf("✅ Added remote %s to %s\n", describe(ep), p)
		return nil
	})
}

func menuAddIgnoreEntry() error {
	prompt := promptui.Prompt{Label: "Ignore pattern"}
	value, err := prompt.Run()
	if err != nil || value == "" {
		return nil
	}
	return withConfigPath(func(p string) error {
		if err := config.AddIgnore(p, value); err != nil {
			return err
		}
		util.Default.Printf("✅ Added ignore pattern '%s' to %s\n", value, p)
		return nil
	})
}
