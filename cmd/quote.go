package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"near-intents/pkg/api"
	"near-intents/pkg/parser"
	"near-intents/pkg/poller"
	"near-intents/pkg/quote"
	"near-intents/pkg/tokenvalue"
)

var (
	quoteAccount string
	quoteWatch   bool
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <token>[,<token>...] to <token>",
	Short: "Get an aggregated quote, optionally split across several source tokens",
	Long: `Query the solver relay for the best price. When --account is given, the
amount is split across the listed source tokens according to the balances
held in the intents contract; otherwise the first token is quoted alone.

Examples:
  near-intents quote 100 USDC,USDT to NEAR --account 0xabc...
  near-intents quote 1 NEAR to USDC@base
  near-intents quote 1 NEAR to USDC@near --watch`,
	Args: cobra.MinimumNArgs(1),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVar(&quoteAccount, "account", "", "Account whose intents balances fund the trade")
	quoteCmd.Flags().BoolVarP(&quoteWatch, "watch", "w", false, "Keep re-quoting and print every update")
}

func runQuote(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	swapReq, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	cfg, log := setup(cmd)
	ctx, cancel := signalContext()
	defer cancel()

	a := connect(ctx, cmd, cfg, log)
	defer a.Close()

	req, err := a.QuoteRequest(ctx, quoteAccount, *swapReq)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if quoteWatch {
		watchQuotes(ctx, poller.New(a.Quotes, cfg.Poller, log), req, cfg.Poller.Delay, jsonOutput)
		return
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

	if jsonOutput {
		printJSON(api.DisplayQuote(req, q))
		return
	}
	displayQuote(req, q)
}

func watchQuotes(ctx context.Context, p *poller.Poller, req quote.Request, delay time.Duration, jsonOutput bool) {
	go func() { _ = p.Run(ctx) }()

	if err := p.Send(ctx, poller.NewQuoteInput{Request: req}); err != nil {
		return
	}
	if !jsonOutput {
		fmt.Printf("\nRe-quoting every %s. Press Ctrl+C to stop.\n", delay)
	}

	for u := range p.Updates() {
		update, ok := u.(poller.QuoteUpdate)
		if !ok {
			continue
		}
		switch {
		case update.Err != nil:
			color.Red("[%s] %v", update.RequestedAt.Format("15:04:05"), describeQuoteError(update.Err))
		case jsonOutput:
			printJSON(api.DisplayQuote(req, update.Quote))
		default:
			fmt.Printf("[%s] %s %s (expires %s)\n",
				update.RequestedAt.Format("15:04:05"),
				color.GreenString(tokenvalue.New(update.Quote.TotalAmountOut, req.TokenOut.Decimals).Format()),
				color.YellowString(req.TokenOut.Symbol),
				update.Quote.ExpirationTime.Local().Format("15:04:05"))
		}
	}
}

func describeQuoteError(err error) error {
	var qerr *quote.Error
	var mismatch *quote.AmountMismatchError
	switch {
	case errors.As(err, &qerr) && qerr.Kind == quote.KindInsufficientAmount:
		return fmt.Errorf("amount too small for any solver (minimum %s)", qerr.MinAmount)
	case errors.As(err, &qerr):
		return fmt.Errorf("no route found for this trade")
	case errors.As(err, &mismatch):
		return fmt.Errorf("%v, refresh balances and try again", mismatch)
	default:
		return err
	}
}

func displayQuote(req quote.Request, q quote.AggregatedQuote) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  From:              %s\n", req.AmountIn.Format())
	for _, t := range req.TokensIn {
		if v, ok := q.AmountsIn[t.DefuseAssetID]; ok {
			fmt.Printf("    %-16s %s %s\n", t.ChainName, tokenvalue.New(v, t.Decimals).Format(), color.YellowString(t.Symbol))
		}
	}
	fmt.Printf("  To:                ~%s %s\n",
		tokenvalue.New(q.TotalAmountOut, req.TokenOut.Decimals).Format(),
		color.YellowString(req.TokenOut.Symbol))
	fmt.Printf("  Expires:           %s\n", q.ExpirationTime.Local().Format("15:04:05"))
	fmt.Printf("  Quote Hashes:      %s\n", color.HiBlackString(strings.Join(q.QuoteHashes, ", ")))

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
