package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"near-intents/pkg/intent"
	"near-intents/pkg/relay"
	"near-intents/pkg/types"
)

var watchStatus bool

var statusCmd = &cobra.Command{
	Use:   "status <intent-hash>",
	Short: "Check the settlement status of a published intent",
	Long: `Check the settlement status of an intent by its hash.

With --watch the relay is polled until the intent settles, or until it has been
reported missing several times in a row.

Examples:
  near-intents status 5KqT...
  near-intents status 5KqT... --watch`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Poll until the intent settles")
}

func runStatus(cmd *cobra.Command, args []string) {
	intentHash := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg, log := setup(cmd)

	ctx, cancel := signalContext()
	defer cancel()

	rc, err := relay.Dial(ctx, cfg.Relay.URL, log)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer rc.Close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking intent status..."
		if watchStatus {
			s.Suffix = " Waiting for settlement..."
		}
		s.Start()
	}

	var status types.SwapStatus
	if watchStatus {
		res := intent.WaitForSettlement(ctx, rc, intentHash, cfg.Settlement, log)
		status = types.SwapStatus{IntentHash: intentHash, Status: string(res.Status), TxHash: res.TxHash}
	} else {
		status, err = checkStatus(ctx, rc, intentHash)
	}
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(status)
	} else {
		displayStatus(status)
	}
}

func checkStatus(ctx context.Context, getter intent.StatusGetter, intentHash string) (types.SwapStatus, error) {
	res, err := getter.GetStatus(ctx, intentHash)
	if err != nil {
		return types.SwapStatus{}, err
	}
	return types.SwapStatus{IntentHash: intentHash, Status: res.Status, TxHash: res.TxHash()}, nil
}

func displayStatus(status types.SwapStatus) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        INTENT STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Intent Hash:     %s\n", color.CyanString(status.IntentHash))
	fmt.Printf("  Status:          %s\n", getColoredStatus(status.Status))
	if status.TxHash != "" {
		fmt.Printf("  Tx Hash:         %s\n", color.HiBlackString(status.TxHash))
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(status string) string {
	status = strings.ToUpper(status)

	switch status {
	case relay.StatusSettled:
		return color.GreenString(status)
	case relay.StatusPending, relay.StatusTxBroadcasted:
		return color.YellowString(status)
	case relay.StatusNotFoundOrNotValid:
		return color.RedString(status)
	case string(intent.SettlementCancelled):
		return color.MagentaString(status)
	default:
		return status
	}
}
