package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "XSORT"

func newRootCmd() *cobra.Command {
	v := viper.New()
	rootCmd := &cobra.Command{
		Use:   "xsort",
		Short: "Sort files larger than memory",
		Long: `xsort sorts the records of a file using bounded memory. Records are
split into chunks that fit the memory budget, sorted in parallel, spilled
to temporary files and merged into the output, dropping duplicates.

Every flag can also be set through an XSORT_ environment variable
(XSORT_BUDGET, XSORT_MAX_RECORD_SIZE, ...) or a config file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd, v)
		},
	}
	rootCmd.PersistentFlags().String("config", "", "config file (yaml, toml or json)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")

	rootCmd.AddCommand(newSortCmd(v))
	return rootCmd
}

// loadConfig binds the command's flags to v, with flags taking precedence over
// the environment and the environment over the config file.
func loadConfig(cmd *cobra.Command, v *viper.Viper) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}
	return nil
}
