/*
Copyright © 2024 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apex/log"
	clihander "github.com/apex/log/handlers/cli"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blacktop/bartleby/pkg/bartleby"
)

var (
	cfgFile string
	// Verbose boolean flag for verbose logging
	Verbose bool
	// AppVersion stores the plugin's version
	AppVersion string
	// AppBuildTime stores the plugin's build time
	AppBuildTime string
)

// apexSink forwards the core's diagnostics to apex/log.
type apexSink struct{}

func (apexSink) Debugf(format string, args ...any) {
	log.Debugf(format, args...)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "bartleby",
	Short:         "Merge objects and static archives into one prefixed static library",
	Version:       fmt.Sprintf("%s, BuildTime: %s", AppVersion, AppBuildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetBool("verbose") {
			log.SetLevel(log.DebugLevel)
		}
		color.NoColor = !viper.GetBool("color")

		// flags
		inputs := viper.GetStringSlice("if")
		output := viper.GetString("of")
		prefix := viper.GetString("prefix")
		display := viper.GetBool("display-symbols")

		if len(inputs) == 0 {
			return fmt.Errorf("at least one --if input is required")
		}
		if output == "" {
			return fmt.Errorf("--of is required")
		}

		h := bartleby.New()
		h.SetLogger(apexSink{})

		for _, in := range inputs {
			in = filepath.Clean(in)
			data, err := os.ReadFile(in)
			if err != nil {
				return fmt.Errorf("failed to read %s: %v", in, err)
			}
			if err := h.Add(data); err != nil {
				return fmt.Errorf("failed to add %s: %v", in, err)
			}
		}

		if cmd.Flags().Changed("prefix") {
			n := h.PrefixGlobalAndDefinedSymbols(prefix)
			log.Debugf("prefixed %d symbol(s)", n)
		}

		if display {
			displaySymbols(h, prefix, cmd.Flags().Changed("prefix"))
		}

		data, err := bartleby.BuildBytes(h)
		if err != nil {
			return fmt.Errorf("failed to build %s: %v", output, err)
		}
		if err := os.WriteFile(output, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %v", output, err)
		}
		log.Infof("created %s (%s)", output, humanize.Bytes(uint64(len(data))))

		return nil
	},
}

func displaySymbols(h *bartleby.Handle, prefix string, prefixed bool) {
	symbols := h.Symbols()
	names := make([]string, 0, len(symbols))
	for name := range symbols {
		names = append(names, name)
	}
	sort.Strings(names)

	bold := color.New(color.Bold).SprintFunc()
	for _, name := range names {
		sym := symbols[name]
		definedness := "undefined"
		if sym.Defined() {
			definedness = "defined"
		}
		visibility := "local"
		if sym.Global() {
			visibility = "global"
		}
		verdict := "left unchanged"
		if prefixed && sym.Global() && sym.Defined() {
			verdict = fmt.Sprintf("to be prefixed by %s", prefix)
		}
		fmt.Printf("Symbol %s is %s and %s, %s\n", bold(name), definedness, visibility, verdict)
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "bartleby: error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	log.SetHandler(clihander.Default)

	cobra.OnInitialize(initConfig)

	// Flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/bartleby/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "V", false, "verbose output")
	rootCmd.PersistentFlags().Bool("color", false, "colorize output")
	rootCmd.Flags().StringSliceP("if", "i", nil, "input object or static archive (repeatable)")
	rootCmd.Flags().StringP("of", "o", "", "output archive path")
	rootCmd.Flags().StringP("prefix", "p", "", "prefix applied to global defined symbols")
	rootCmd.Flags().Bool("display-symbols", false, "print each symbol and its prefix verdict")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("color", rootCmd.PersistentFlags().Lookup("color"))
	viper.BindPFlag("if", rootCmd.Flags().Lookup("if"))
	viper.BindPFlag("of", rootCmd.Flags().Lookup("of"))
	viper.BindPFlag("prefix", rootCmd.Flags().Lookup("prefix"))
	viper.BindPFlag("display-symbols", rootCmd.Flags().Lookup("display-symbols"))
	viper.BindEnv("color", "CLICOLOR")
	// Settings
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name "config" (without extension).
		viper.AddConfigPath(filepath.Join(home, ".config", "bartleby"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("bartleby")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
