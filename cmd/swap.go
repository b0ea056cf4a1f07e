package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"near-intents/pkg/intent"
	"near-intents/pkg/parser"
	"near-intents/pkg/wallet"
)

var (
	walletChain string
	noConfirm   bool
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <token>[,<token>...] to <token>",
	Short: "Swap tokens held in the intents contract",
	Long: `Quote, sign and publish a swap intent, then wait for it to settle.

The amount is split across the listed source tokens according to your balances
in the intents contract. The quote keeps refreshing while you sign; if it
expires before publishing, a refreshed quote is used only when it returns at
least as much.

The signing key is taken from the config: evm.private_key (default) or
solana.private_key with --chain sol.

Examples:
  near-intents swap 100 USDC,USDT to NEAR
  near-intents swap 0.5 NEAR to USDC@base --chain sol --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().StringVar(&walletChain, "chain", "eth", "Wallet used to sign: eth or sol")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
}

func runSwap(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	swapReq, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	cfg, log := setup(cmd)
	w, err := wallet.FromConfig(cfg, walletChain)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	account, err := intent.SignerID(w.User())
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	a := connect(ctx, cmd, cfg, log)
	defer a.Close()

	req, err := a.QuoteRequest(ctx, account, *swapReq)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quotes..."
		s.Start()
	}
	q, err := a.Quotes.QueryQuote(ctx, req)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(describeQuoteError(err))
		os.Exit(1)
	}

	if !jsonOutput {
		displayQuote(req, q)
	}
	if !noConfirm && !jsonOutput {
		if !confirm("Proceed with swap?") {
			fmt.Println("\nSwap cancelled.")
			os.Exit(0)
		}
	}

	l := &lifecycle{app: a, wallet: w, jsonOutput: jsonOutput}
	params := intent.SwapParams{TokensIn: req.TokensIn, TokenOut: req.TokenOut, Quote: q}
	outcome, settlement, err := l.run(ctx, params, &req)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"intent_hash":  outcome.IntentHash,
			"quote_hashes": outcome.QuoteHashes,
			"description":  outcome.Description,
			"settlement":   settlement,
		})
		return
	}
	displayOutcome(outcome, settlement)
	if settlement.Status != intent.SettlementSettled {
		color.Yellow("You can keep monitoring the intent using:")
		color.Cyan("  near-intents status %s --watch\n", outcome.IntentHash)
	}
}
