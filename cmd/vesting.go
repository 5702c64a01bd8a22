package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var vestingCmd = &cobra.Command{
	Use:   "vesting",
	Short: "Inspect and settle vesting schedules",
}

var vestingUnlockedCmd = &cobra.Command{
	Use:   "unlocked <schedule-id>",
	Short: "Show the unlocked, unclaimed amount of a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseId(args[0], "schedule")
		if err != nil {
			return err
		}
		now, err := evaluationTime()
		if err != nil {
			return err
		}

		s, err := newServices()
		if err != nil {
			return err
		}
		defer s.close()

		unlocked, err := s.vesting.GetUnlockedAmount(cmd.Context(), id, now)
		if err != nil {
			return err
		}
		fmt.Printf("Schedule %d claimable at %s: %s\n", id, now.Format(time.RFC3339), unlocked)
		return nil
	},
}

var vestingClaimCmd = &cobra.Command{
	Use:   "claim <schedule-id>",
	Short: "Claim unlocked tokens from a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseId(args[0], "schedule")
		if err != nil {
			return err
		}
		rawAmount, _ := cmd.Flags().GetString(amountFlag)
		amount, err := parseAmount(rawAmount)
		if err != nil {
			return err
		}
		now, err := evaluationTime()
		if err != nil {
			return err
		}

		s, err := newServices()
		if err != nil {
			return err
		}
		defer s.close()

		res, err := s.vesting.ClaimVested(cmd.Context(), id, amount, now)
		if err != nil {
			return err
		}
		fmt.Printf("Claimed %s from schedule %d (reference %s), %s still claimable\n",
			amount, id, res.Transaction.Reference, res.RemainingUnlocked)
		return nil
	},
}

func init() {
	vestingClaimCmd.Flags().String(amountFlag, "", "Amount to claim (required)")
	_ = vestingClaimCmd.MarkFlagRequired(amountFlag)

	vestingCmd.AddCommand(vestingUnlockedCmd)
	vestingCmd.AddCommand(vestingClaimCmd)
}
