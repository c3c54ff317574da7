package cmd

import (
	"github.com/pwhiting/Translate/global/config"
	"github.com/pwhiting/Translate/tools"

	"github.com/spf13/cobra"
)

type options struct {
	configPath string
}

func NewRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "translate",
		Short:         "Live meeting translation delivery",
		Long:          "Transcribes a speaker's audio, translates it into every listener language and delivers it in order.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c",
		tools.GetEnv("TRANSLATE_CONFIG", ""), "config file (.yaml or .toml)")

	rootCmd.AddCommand(newServeCmd(opts, config.NodeTypeAPI, "Serve /join, /process-audio and /translations"))
	rootCmd.AddCommand(newServeCmd(opts, config.NodeTypeWorker, "Consume fragments, reorder, translate and record"))
	rootCmd.AddCommand(newServeCmd(opts, config.NodeTypeAll, "Run api and worker in one process"))
	rootCmd.AddCommand(newListenCmd())
	return rootCmd
}

// loadConfig reads the file and forces the node role of the sub-command.
func loadConfig(path, nodeType string) (*config.AppConfig, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.Node.Type = nodeType
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
