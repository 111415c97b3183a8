package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"redep/internal/deploy/selector"
	"redep/internal/deploy/types"
	"redep/internal/logging"
	"redep/internal/util"
)

var errUnitsFailed = errors.New("one or more transfers failed")

func newPushCmd() *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Send the selected files to every configured remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(concurrency)
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Maximum destinations pushed at once (0 = all)")
	return cmd
}

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Fetch the selected files from the first configured remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPull()
		},
	}
}

func newStatusCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what a push would send",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(list)
		},
	}
	cmd.Flags().BoolVarP(&list, "list", "l", false, "List every selected file and directory")
	return cmd
}

func runPush(concurrency int) error {
	cfg, eps, err := loadConfig()
	if err != nil {
		return err
	}
	if len(eps) == 0 {
		logging.Warn("no remotes configured, nothing to push", nil)
		return nil
	}

	e := newExecutor(cfg)
	e.Concurrency = concurrency
	statuses, err := e.Push(cfg.Root, cfg.Match, cfg.Ignore, eps)
	if errors.Is(err, types.ErrSelectionEmpty) {
		util.Default.Printf("⚠️  Nothing selected under %s\n", cfg.Root)
		return nil
	}
	if err != nil {
		return err
	}
	return report(statuses...)
}

func runPull() error {
	cfg, eps, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := newExecutor(cfg).Pull(cfg.Root, cfg.Match, cfg.Ignore, eps)
	if err != nil {
		return err
	}
	return report(st)
}

// report prints one line per unit and fails when any unit failed.
func report(statuses ...types.Status) error {
	failed := false
	for _, st := range statuses {
		switch {
		case st.State == types.StateDone:
			util.Default.Printf("✅ %s: %d files, %d directories\n", st.Endpoint, st.Files, st.Dirs)
		case st.OK():
			util.Default.Printf("⚠️  %s: %s (%v)\n", st.Endpoint, st.State, st.Err)
		default:
			failed = true
			util.Default.Printf("❌ %s: %s: %v\n", st.Endpoint, st.State, st.Err)
		}
	}
	if failed {
		return errUnitsFailed
	}
	return nil
}

func runStatus(list bool) error {
	cfg, eps, err := loadConfig()
	if err != nil {
		return err
	}
	sel, err := selector.Select(cfg.Root, cfg.Match, cfg.Ignore, selector.LocalEnumerator{})
	if err != nil {
		return err
	}
	printStatus(eps, sel, list)
	return nil
}

func printStatus(eps []types.Endpoint, sel types.SelectionResult, list bool) {
	util.Default.Printf("📁 Root:        %s\n", sel.Root)
	util.Default.Printf("📄 Files:       %d selected, %d ignored\n", sel.Files.Len(), sel.IgnoredFiles.Len())
	util.Default.Printf("📂 Directories: %d selected, %d ignored\n", sel.Dirs.Len(), sel.IgnoredDirs.Len())
	util.Default.Printf("🔑 Fingerprint: %016x\n", selector.Fingerprint(sel))
	util.Default.Printf("🌐 Remotes:     %d\n", len(eps))
	for _, ep := range eps {
		util.Default.Printf("   - %s\n", ep)
	}
	if !list {
		return
	}
	for _, d := range sel.Dirs.Sorted() {
		util.Default.Println("  d " + relOrSelf(sel, d))
	}
	for _, f := range sel.Files.Sorted() {
		util.Default.Println("  f " + relOrSelf(sel, f))
	}
}

func relOrSelf(sel types.SelectionResult, p string) string {
	rel, err := sel.Style.Rel(sel.Root, p)
	if err != nil {
		return p
	}
	return rel
}

func describe(ep types.Endpoint) string {
	if ep.IsLocal() {
		return fmt.Sprintf("%s (local)", ep.Path)
	}
	return ep.String()
}
