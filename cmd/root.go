package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"near-intents/config"
	"near-intents/pkg/app"
	"near-intents/pkg/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "near-intents",
	Short: "A CLI for swaps and withdrawals through the NEAR Intents solver relay",
	Long: `near-intents quotes, signs and publishes intents against the NEAR Intents
verifying contract. Amounts can be split across several source tokens; quotes
are refreshed in the background while you sign.

Examples:
  near-intents tokens --symbol USDC
  near-intents quote 100 USDC,USDT to NEAR --account 0xabc...
  near-intents swap 100 USDC@base to NEAR --chain eth
  near-intents withdraw-plan 50 USDC --to USDC@near --account 0xabc...
  near-intents status <intent-hash>
  near-intents serve`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $HOME/.near-intents.yaml)")
}

// setup loads configuration and a logger honouring --verbose
func setup(cmd *cobra.Command) (*config.Config, *logger.Logger) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	log := logger.New(cfg.Env)
	log.SetLevel(cfg.LogLevel)
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		log.SetLevel("debug")
	}
	return cfg, log
}

// connect builds the shared components behind a spinner
func connect(ctx context.Context, cmd *cobra.Command, cfg *config.Config, log *logger.Logger) *app.App {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Loading token catalog..."
		s.Start()
	}
	a, err := app.New(ctx, cfg, log)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	return a
}

// signalContext is cancelled on Ctrl+C
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "\n%s %v\n\n", color.RedString("Error:"), err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", color.GreenString(message))
}
