package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/google/uuid"

	"near-intents/pkg/app"
	"near-intents/pkg/intent"
	"near-intents/pkg/poller"
	"near-intents/pkg/quote"
	"near-intents/pkg/retry"
	"near-intents/pkg/wallet"
)

// lifecycle runs one signed intent from signing to settlement
type lifecycle struct {
	app        *app.App
	wallet     wallet.Wallet
	jsonOutput bool
}

// run signs and publishes params. When requote is set the poller keeps
// refreshing it so an expired quote can be replaced by an equal or better one.
func (l *lifecycle) run(ctx context.Context, params intent.OperationParams, requote *quote.Request) (intent.Outcome, intent.Settlement, error) {
	cfg := l.app.Config
	session := uuid.NewString()
	log := l.app.Log.WithField("session", session)

	ctrl := intent.NewController(
		params,
		l.wallet.User(),
		intent.MachineConfig{VerifyingContract: cfg.Near.VerifyingContract, SwapTTL: cfg.Swap.TTL},
		retry.FromConfig(cfg.Publish),
		intent.Deps{
			Signer:    l.wallet,
			Publisher: l.app.Relay,
			Keys:      l.app.Near,
			Log:       log,
		},
	)

	pollCtx, stopPolling := context.WithCancel(ctx)
	defer stopPolling()

	if requote != nil {
		p := poller.New(l.app.Quotes, cfg.Poller, log)
		go func() { _ = p.Run(pollCtx) }()
		if err := p.Send(pollCtx, poller.NewQuoteInput{Request: *requote}); err == nil {
			go func() {
				for u := range p.Updates() {
					if update, ok := u.(poller.QuoteUpdate); ok && update.Err == nil {
						ctrl.UpdateQuote(intent.NewQuoteEvent{Quote: update.Quote})
					}
				}
			}()
		}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !l.jsonOutput {
		s.Suffix = " Signing and publishing intent..."
		s.Start()
	}
	outcome, err := ctrl.Run(ctx)
	if !l.jsonOutput {
		s.Stop()
	}
	if err != nil {
		return outcome, intent.Settlement{}, err
	}
	if outcome.Err != nil {
		return outcome, intent.Settlement{}, outcome.Err
	}
	stopPolling()

	if !l.jsonOutput {
		color.Green("\nIntent published: %s", outcome.IntentHash)
		s.Suffix = " Waiting for settlement..."
		s.Start()
	}
	settlement := intent.WaitForSettlement(ctx, l.app.Relay, outcome.IntentHash, cfg.Settlement, log)
	if !l.jsonOutput {
		s.Stop()
	}
	return outcome, settlement, nil
}

func displayOutcome(outcome intent.Outcome, settlement intent.Settlement) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                          INTENT RESULT")
	fmt.Println(strings.Repeat("=", 70))

	d := outcome.Description
	fmt.Printf("\n  Intent Hash:     %s\n", color.CyanString(outcome.IntentHash))
	fmt.Printf("  Type:            %s\n", d.Type)
	switch d.Type {
	case "swap":
		fmt.Printf("  Sold:            %s of %s\n", d.TotalAmountIn, strings.Join(d.TokensIn, ", "))
		fmt.Printf("  Bought:          %s of %s\n", d.TotalAmountOut, d.TokenOut)
	case "withdraw":
		if d.Amount != nil {
			fmt.Printf("  Amount:          %s of %s\n", d.Amount.Format(), d.TokenOut)
		}
		fmt.Printf("  Recipient:       %s\n", d.Recipient)
	}
	fmt.Printf("  Settlement:      %s\n", getColoredStatus(string(settlement.Status)))
	if settlement.TxHash != "" {
		fmt.Printf("  Tx Hash:         %s\n", color.HiBlackString(settlement.TxHash))
	}
	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func confirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", prompt)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
