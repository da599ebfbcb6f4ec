// Package cli wires the engine's components behind a cobra root command,
// following the teacher's PersistentFlags/viper.BindPFlag/OnInitialize
// pattern (planner/root.go) rather than hand-rolled flag parsing.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "repairbench",
	Short: "Runs one code-repair agent attempt inside a hermetic sandbox",
	Long: `repairbench loads a task specification, baseline-validates its
failing test suite, and drives either a scripted self-test or an
LLM-backed agent against it, emitting an append-only event log and a
single attempt record.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().Int("max-steps", 0, "override the configured max agent steps (0 = use config default)")
	rootCmd.PersistentFlags().Int("max-time-sec", 0, "override the configured max wall-clock seconds (0 = use config default)")
	rootCmd.PersistentFlags().String("out-dir", "", "artifact output directory")
	rootCmd.PersistentFlags().String("log-level", "", "logrus level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "text or json")

	for _, name := range []string{"max-steps", "max-time-sec", "out-dir", "log-level", "log-format"} {
		_ = v.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(baselineCmd)
}

func initConfig() {
	v.SetEnvPrefix("REPAIRBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// Execute runs the root command and returns a process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
