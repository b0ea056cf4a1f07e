package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"near-intents/pkg/balance"
	"near-intents/pkg/chain"
	"near-intents/pkg/parser"
	"near-intents/pkg/tokens"
	"near-intents/pkg/tokenvalue"
	"near-intents/pkg/types"
)

var (
	balancesAccount string
	balancesOnChain bool
	balancesWatch   bool
)

var balancesCmd = &cobra.Command{
	Use:   "balances <token>[,<token>...]",
	Short: "Show balances held in the intents contract or on chain",
	Long: `Fetch balances for an account. By default the balances deposited in the
intents contract are shown; --on-chain reads the wallet balances on each
token's native chain (EVM networks and Solana must be configured).

Examples:
  near-intents balances USDC,NEAR --account 0xabc...
  near-intents balances USDC@base --account 0xabc... --on-chain
  near-intents balances USDC --account alice.near --watch`,
	Args: cobra.ExactArgs(1),
	Run:  runBalances,
}

func init() {
	rootCmd.AddCommand(balancesCmd)

	balancesCmd.Flags().StringVar(&balancesAccount, "account", "", "Account id or address (REQUIRED)")
	balancesCmd.Flags().BoolVar(&balancesOnChain, "on-chain", false, "Read wallet balances on the tokens' native chains")
	balancesCmd.Flags().BoolVarP(&balancesWatch, "watch", "w", false, "Keep refreshing and print changes")
	_ = balancesCmd.MarkFlagRequired("account")
}

func runBalances(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg, log := setup(cmd)

	ctx, cancel := signalContext()
	defer cancel()

	a := connect(ctx, cmd, cfg, log)
	defer a.Close()

	var refs []types.TokenRef
	for _, part := range strings.Split(args[0], ",") {
		if part = strings.TrimSpace(part); part != "" {
			refs = append(refs, parser.ParseTokenRef(part))
		}
	}
	list, err := a.ResolveTokens(refs)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	agg, ok := a.Balances.(*balance.Aggregator)
	if balancesOnChain || !ok {
		router, err := chain.NewRouter(cfg)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		defer router.Close()
		agg = balance.NewAggregator(router, balance.Config{Concurrency: cfg.Balance.Concurrency, Spacing: cfg.Balance.Spacing}, log)
	}

	if balancesWatch {
		if jsonOutput {
			printError(fmt.Errorf("watch mode not supported with JSON output"))
			os.Exit(1)
		}
		fmt.Printf("\nWatching balances of %s. Press Ctrl+C to stop.\n", color.CyanString(balancesAccount))
		go func() {
			if err := agg.Run(ctx, balancesAccount, list, cfg.Balance.RefreshInterval); err != nil {
				log.Errorf("[Balances] %v", err)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case changed := <-agg.Changes():
				displayBalances(list, changed.Balances, changed.Keys)
			}
		}
	}

	changed, err := agg.Fetch(ctx, balancesAccount, list)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		out := make(map[string]string, len(changed.Balances))
		for id, v := range changed.Balances {
			out[id] = v.String()
		}
		printJSON(out)
		return
	}
	displayBalances(list, changed.Balances, nil)
}

func displayBalances(list []tokens.BaseToken, balances balance.Mapping, changed []string) {
	isChanged := make(map[string]bool, len(changed))
	for _, k := range changed {
		isChanged[k] = true
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                          BALANCES")
	fmt.Println(strings.Repeat("=", 70))

	for _, t := range list {
		amount := color.HiBlackString("unknown")
		if v, ok := balances.Get(t.DefuseAssetID); ok {
			amount = tokenvalue.New(v, t.Decimals).Format()
		}
		marker := " "
		if isChanged[t.DefuseAssetID] {
			marker = color.YellowString("*")
		}
		fmt.Printf(" %s %-10s %-10s %s\n", marker, color.YellowString(t.Symbol), t.ChainName, amount)
	}
	fmt.Println(strings.Repeat("=", 70))
}
