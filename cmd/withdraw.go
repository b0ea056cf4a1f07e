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
	"near-intents/pkg/quote"
	"near-intents/pkg/types"
	"near-intents/pkg/wallet"
	"near-intents/pkg/withdraw"
)

var (
	withdrawTo        string
	withdrawAccount   string
	withdrawRecipient string
	withdrawMemo      string
)

var withdrawPlanCmd = &cobra.Command{
	Use:   "withdraw-plan <amount> <token>",
	Short: "Show how a withdrawal would be funded",
	Long: `Split a withdrawal into the part already held in the destination token and
the part that has to be swapped into it first.

Examples:
  near-intents withdraw-plan 50 USDC --to USDC@near --account 0xabc...
  near-intents withdraw-plan 1.5 NEAR --account alice.near`,
	Args: cobra.ExactArgs(2),
	Run:  runWithdrawPlan,
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <amount> <token>",
	Short: "Withdraw tokens from the intents contract",
	Long: `Withdraw tokens to an address on the destination token's chain. Any part not
already held in the destination token is swapped into it within the same
signed intent.

Examples:
  near-intents withdraw 50 USDC --to USDC@near --recipient alice.near
  near-intents withdraw 10 USDC --to USDC@base --recipient 0xabc... --chain eth`,
	Args: cobra.ExactArgs(2),
	Run:  runWithdraw,
}

func init() {
	rootCmd.AddCommand(withdrawPlanCmd)
	rootCmd.AddCommand(withdrawCmd)

	withdrawPlanCmd.Flags().StringVar(&withdrawTo, "to", "", "Destination token (defaults to the withdrawn token)")
	withdrawPlanCmd.Flags().StringVar(&withdrawAccount, "account", "", "Account holding the balances (REQUIRED)")
	_ = withdrawPlanCmd.MarkFlagRequired("account")

	withdrawCmd.Flags().StringVar(&withdrawTo, "to", "", "Destination token (defaults to the withdrawn token)")
	withdrawCmd.Flags().StringVar(&withdrawRecipient, "recipient", "", "Recipient address on the destination chain (REQUIRED)")
	withdrawCmd.Flags().StringVar(&withdrawMemo, "memo", "", "Memo passed to the token transfer")
	withdrawCmd.Flags().StringVar(&walletChain, "chain", "eth", "Wallet used to sign: eth or sol")
	withdrawCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	_ = withdrawCmd.MarkFlagRequired("recipient")
}

func withdrawRequest(args []string) types.WithdrawRequest {
	req := types.WithdrawRequest{
		Amount:    args[0],
		Token:     parser.ParseTokenRef(args[1]),
		Recipient: withdrawRecipient,
		Memo:      withdrawMemo,
	}
	if withdrawTo != "" {
		req.TokenOut = parser.ParseTokenRef(withdrawTo)
	}
	return req
}

func runWithdrawPlan(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg, log := setup(cmd)

	ctx, cancel := signalContext()
	defer cancel()

	a := connect(ctx, cmd, cfg, log)
	defer a.Close()

	spec, err := a.WithdrawPlan(ctx, withdrawAccount, withdrawRequest(args))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(spec)
		return
	}
	displayWithdrawPlan(spec)
}

func runWithdraw(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
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

	spec, err := a.WithdrawPlan(ctx, account, withdrawRequest(args))
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if !jsonOutput {
		displayWithdrawPlan(spec)
	}

	params := intent.WithdrawParams{
		TokenOut:               spec.TokenOut,
		DirectWithdrawalAmount: spec.DirectWithdrawalAmount,
		Recipient:              withdrawRecipient,
		Memo:                   withdrawMemo,
	}

	var requote *quote.Request
	if spec.SwapParams != nil {
		req := quote.Request{
			TokensIn: spec.SwapParams.TokensIn,
			TokenOut: spec.SwapParams.TokenOut,
			AmountIn: spec.SwapParams.AmountIn,
			Balances: spec.SwapParams.Balances,
		}
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		if !jsonOutput {
			s.Suffix = " Fetching quotes for the swap part..."
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
		params.Quote = &q
		requote = &req
	}

	if !noConfirm && !jsonOutput {
		if !confirm("Proceed with withdrawal?") {
			fmt.Println("\nWithdrawal cancelled.")
			os.Exit(0)
		}
	}

	l := &lifecycle{app: a, wallet: w, jsonOutput: jsonOutput}
	outcome, settlement, err := l.run(ctx, params, requote)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"intent_hash": outcome.IntentHash,
			"description": outcome.Description,
			"settlement":  settlement,
		})
		return
	}
	displayOutcome(outcome, settlement)
}

func displayWithdrawPlan(spec *withdraw.Spec) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                   WITHDRAWAL PLAN")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Destination:       %s (%s)\n", color.YellowString(spec.TokenOut.Symbol), spec.TokenOut.ChainName)
	fmt.Printf("  Direct:            %s\n", spec.DirectWithdrawalAmount.Format())
	if spec.SwapParams == nil {
		fmt.Printf("  Swap:              %s\n", color.HiBlackString("not needed"))
	} else {
		ids := make([]string, 0, len(spec.SwapParams.TokensIn))
		for _, t := range spec.SwapParams.TokensIn {
			ids = append(ids, t.Symbol+"@"+t.ChainName)
		}
		fmt.Printf("  Swap:              %s from %s\n", spec.SwapParams.AmountIn.Format(), strings.Join(ids, ", "))
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
