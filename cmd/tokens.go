package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"near-intents/pkg/client"
	"near-intents/pkg/tokens"
)

var (
	filterChain  string
	filterSymbol string
)

var tokensCmd = &cobra.Command{
	Use:     "tokens",
	Aliases: []string{"list-tokens", "ls"},
	Short:   "List all supported tokens",
	Long: `List all tokens tradable through the intents contract, as published by the
1Click token catalog.

You can filter tokens by blockchain or symbol.

Examples:
  near-intents tokens
  near-intents tokens --chain base
  near-intents tokens --symbol USDC`,
	Run: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterChain, "chain", "", "Filter by blockchain")
	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg, _ := setup(cmd)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching supported tokens..."
		s.Start()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	registry, err := client.NewOneClickClient(cfg.OneClick).LoadRegistry(ctx)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	filtered := filterTokens(registry.All(), filterChain, filterSymbol)

	if jsonOutput {
		printJSON(filtered)
	} else {
		displayTokens(filtered)
	}
}

func filterTokens(list []tokens.BaseToken, chain, symbol string) []tokens.BaseToken {
	var out []tokens.BaseToken
	for _, t := range list {
		if chain != "" && !strings.EqualFold(t.ChainName, chain) {
			continue
		}
		if symbol != "" && !strings.Contains(strings.ToUpper(t.Symbol), strings.ToUpper(symbol)) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func displayTokens(list []tokens.BaseToken) {
	if len(list) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            SUPPORTED TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	// Group tokens by blockchain
	byChain := make(map[string][]tokens.BaseToken)
	for _, t := range list {
		byChain[t.ChainName] = append(byChain[t.ChainName], t)
	}

	chains := make([]string, 0, len(byChain))
	for chain := range byChain {
		chains = append(chains, chain)
	}
	sort.Strings(chains)

	for _, chain := range chains {
		color.Cyan("\n%s", strings.ToUpper(chain))
		fmt.Println(strings.Repeat("-", 90))

		for _, t := range byChain[chain] {
			id := t.DefuseAssetID
			if len(id) > 60 {
				id = id[:57] + "..."
			}
			fmt.Printf("  %-10s  %2d decimals  %s\n",
				color.YellowString(t.Symbol),
				t.Decimals,
				color.HiBlackString(id))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d blockchains\n\n", len(list), len(chains))
}
