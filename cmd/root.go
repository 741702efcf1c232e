/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string
var optVerbosity int
var optLogFormat string
var optWeights map[string]string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tcxslim",
	Short: "Slim down TCX activity exports for re-upload",
	Long: `tcxslim converts a TCX activity export (e.g. from Strava) into a
schema-valid TCX document for another platform (e.g. TrainingPeaks),
dropping low-information trackpoints along the way.

Each lap is thinned independently. A row is removed when its distance to
the previous row, over position and every sensor the activity recorded,
falls below the p-th percentile of that lap's distances. The first and
last trackpoint of every lap always survive.

Configuration is read from flags, TCXSLIM_* environment variables, and
~/.tcxslim.yaml, in that order of precedence.
`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pflags := rootCmd.PersistentFlags()
	pflags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tcxslim.yaml)")
	pflags.IntVar(&optVerbosity, "verbosity", int(slog.LevelInfo), "Log level (-4 debug, 0 info, 4 warn, 8 error)")
	pflags.StringVar(&optLogFormat, "log-format", "text", "Log format: text or json")

	pflags.Float64("percentile", 0, "Fixed retention percentile in [0, 100]; overrides the range")
	pflags.Float64("percentile-lower", 20, "Lower bound of the random retention percentile")
	pflags.Float64("percentile-upper", 40, "Upper bound of the random retention percentile")
	pflags.Uint64("seed", 0x7c5, "Seed for the retention percentile draw")
	pflags.Bool("size-tiers", false, "Thin long activities harder: 1000+ trackpoints draw from [30, 50], 3000+ from [40, 60]")
	pflags.Int("min-retained", 0, "Keep at least this many trackpoints per activity, re-admitting the most distinct (0 disables)")
	pflags.Float64("sparse-ratio", 0, "Ignore columns missing from at least this fraction of trackpoints when scoring, e.g. 0.5 (0 ignores only empty columns)")
	pflags.StringToStringVar(&optWeights, "weight", nil, "Column weight overrides, e.g. heart_rate=2,power=0 (position sets latitude and longitude)")
	pflags.Int("workers", 0, "Concurrent scorers (trim: per lap; batch: per document). 0 uses all CPUs")
	pflags.String("ledger", "", "Path of the ledger database recording processed activities (empty disables)")
	pflags.String("influx.url", "", "InfluxDB URL for lap reduction metrics (empty disables)")
	pflags.String("influx.token", "", "InfluxDB token")
	pflags.String("influx.org", "", "InfluxDB organization")
	pflags.String("influx.bucket", "", "InfluxDB bucket")

	bindFlags(pflags)
}

func bindFlags(pflags *pflag.FlagSet) {
	for _, name := range []string{
		"percentile", "percentile-lower", "percentile-upper", "seed", "workers", "ledger",
		"size-tiers", "min-retained", "sparse-ratio",
		"influx.url", "influx.token", "influx.org", "influx.bucket",
	} {
		if err := viper.BindPFlag(name, pflags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".tcxslim" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tcxslim")
	}

	viper.SetEnvPrefix("TCXSLIM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		slog.Debug("Using config file", "path", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		cobra.CheckErr(fmt.Errorf("read config %s: %w", cfgFile, err))
	}
}

// setDefaultSlog installs the process-wide logger.
// Logs go to stderr so that stdout can carry documents and reports.
func setDefaultSlog(cmd *cobra.Command, args []string) {
	opts := &slog.HandlerOptions{Level: slog.Level(optVerbosity)}
	var handler slog.Handler
	switch strings.ToLower(optLogFormat) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler).With("cmd", cmd.Name()))
	slog.Debug("Running", "args", args)
}

// expandPath resolves ~ and makes p absolute. "-" and "" are returned as is.
func expandPath(p string) (string, error) {
	if p == "" || p == "-" {
		return p, nil
	}
	p, err := homedir.Expand(p)
	if err != nil {
		return "", err
	}
	return filepath.Abs(p)
}
