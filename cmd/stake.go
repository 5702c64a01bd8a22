package cmd

import (
	"fmt"
	"time"

	"github.com/presale-labs/presale-store/pkg/service/types"
	"github.com/spf13/cobra"
)

var stakeCmd = &cobra.Command{
	Use:   "stake",
	Short: "Inspect and settle stakes",
}

var stakeAccruedCmd = &cobra.Command{
	Use:   "accrued <stake-id>",
	Short: "Show the unclaimed reward of a stake",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseId(args[0], "stake")
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

		reward, err := s.staking.GetAccruedReward(cmd.Context(), id, now)
		if err != nil {
			return err
		}
		fmt.Printf("Stake %d accrued reward at %s: %s\n", id, now.Format(time.RFC3339), reward)
		return nil
	},
}

var stakeClaimCmd = &cobra.Command{
	Use:   "claim <stake-id>",
	Short: "Claim part of a stake's accrued reward",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseId(args[0], "stake")
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

		res, err := s.staking.ClaimRewards(cmd.Context(), id, amount, now)
		if err != nil {
			return err
		}
		fmt.Printf("Claimed %s from stake %d (reference %s), %s left\n",
			res.Claim.Amount, id, res.Transaction.Reference, res.RemainingReward)
		return nil
	},
}

var stakeWithdrawCmd = &cobra.Command{
	Use:   "withdraw <stake-id>",
	Short: "Withdraw an unlocked stake",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseId(args[0], "stake")
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

		stake, err := s.staking.WithdrawStake(cmd.Context(), id, now)
		if err != nil {
			return err
		}
		fmt.Printf("Withdrew %s from stake %d\n", stake.Amount, stake.Id)
		return nil
	},
}

var stakeListCmd = &cobra.Command{
	Use:   "list <user-id>",
	Short: "List a user's stakes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userId, err := parseId(args[0], "user")
		if err != nil {
			return err
		}

		s, err := newServices()
		if err != nil {
			return err
		}
		defer s.close()

		stakes, err := s.staking.ListStakesForUser(cmd.Context(), userId, nil, types.NewDefaultPagination())
		if err != nil {
			return err
		}
		for _, stake := range stakes {
			fmt.Printf("%d\tpool=%d\tamount=%s\tstatus=%s\tclaimed=%s\tunlock=%s\n",
				stake.Id, stake.PoolId, stake.Amount, stake.Status, stake.RewardsClaimed,
				stake.UnlockDate.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	stakeClaimCmd.Flags().String(amountFlag, "", "Reward amount to claim (required)")
	_ = stakeClaimCmd.MarkFlagRequired(amountFlag)

	stakeCmd.AddCommand(stakeAccruedCmd)
	stakeCmd.AddCommand(stakeClaimCmd)
	stakeCmd.AddCommand(stakeWithdrawCmd)
	stakeCmd.AddCommand(stakeListCmd)
}
