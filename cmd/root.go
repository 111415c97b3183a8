package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"redep/internal/config"
	"redep/internal/deploy/executor"
	"redep/internal/deploy/types"
	"redep/internal/logging"
	"redep/internal/sshclient"
	"redep/internal/util"
)

var (
	configFile string
	logLevel   string
	logFormat  string

	// dialer is replaced in tests.
	dialer = func(cfg *config.Config) types.Dialer {
		return sshclient.Dial(sshOptions(cfg))
	}

	rootCmd = &cobra.Command{
		Use:   "redep",
		Short: "Push and pull a directory tree over SSH",
		Long: `redep mirrors the files selected by match and ignore patterns to one or
more destinations, locally or over SSH, and pulls them back.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(logging.Options{
				Writer: os.Stderr,
				Level:  logging.ParseLevel(logLevel),
				Format: logFormat,
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return cmd.Help()
			}
			return runMenu()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file or directory containing redep.toml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format (console, json)")

	rootCmd.AddCommand(newPushCmd())
	rootCmd.AddCommand(newPullCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newRemoteCmd())
	rootCmd.AddCommand(newIgnoreCmd())
	rootCmd.AddCommand(newMenuCmd())
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig finds, loads and validates the configuration named by --config.
// Malformed remotes are dropped with a warning.
func loadConfig() (*config.Config, []types.Endpoint, error) {
	p, err := config.FindExisting(configFile)
	if err != nil {
		if config.IsNotExist(err) {
			util.Default.Printf("💡 Run 'redep init' to create a configuration\n")
		}
		return nil, nil, err
	}
	cfg, err := config.Load(p)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logging.Info("running with configuration file", map[string]interface{}{"file": cfg.Path(), "root": cfg.Root})

	eps, errs := cfg.Endpoints()
	for _, e := range errs {
		logging.Warn("skipping remote", map[string]interface{}{"error": e.Error()})
	}
	return cfg, eps, nil
}

func sshOptions(cfg *config.Config) sshclient.Options {
	opts := sshclient.Options{Log: logging.Default()}
	if cfg.SSH != nil {
		opts.IdentityFile = cfg.SSH.IdentityFile
		opts.KnownHosts = cfg.SSH.KnownHosts
		opts.InsecureIgnoreHostKey = cfg.SSH.InsecureIgnoreHostKey
		opts.Timeout = time.Duration(cfg.SSH.ConnectTimeout) * time.Second
	}
	return opts
}

func newExecutor(cfg *config.Config) *executor.Executor {
	return executor.NewExecutor(logging.Default(), dialer(cfg))
}
