package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Platform and user totals",
}

var statsPlatformCmd = &cobra.Command{
	Use:   "platform",
	Short: "Show platform-wide totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newServices()
		if err != nil {
			return err
		}
		defer s.close()

		stats, err := s.stats.GetPlatformStats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Users: %d\nRaised: %s\nTokens sold: %s\nStaked: %s\nRewards claimed: %s\nVesting claimed: %s\n",
			stats.UserCount, stats.TotalRaised, stats.TokensSold, stats.TotalStaked, stats.RewardsClaimed, stats.VestingClaimed)
		return nil
	},
}

var statsUserCmd = &cobra.Command{
	Use:   "user <user-id>",
	Short: "Show a user's running totals",
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

		user, err := s.users.GetUserById(cmd.Context(), userId)
		if err != nil {
			return err
		}
		stats, err := s.stats.GetUserStats(cmd.Context(), userId)
		if err != nil {
			return err
		}
		fmt.Printf("Wallet: %s\nPurchased: %s\nTokens: %s\nStaked: %s\nRewards claimed: %s\nVesting claimed: %s\nReferrals: %d\n",
			user.WalletAddress, stats.TotalPurchased, stats.TotalTokens, stats.TotalStaked,
			stats.TotalRewardsClaimed, stats.TotalVestingClaimed, stats.ReferralCount)
		return nil
	},
}

func init() {
	statsCmd.AddCommand(statsPlatformCmd)
	statsCmd.AddCommand(statsUserCmd)
}
