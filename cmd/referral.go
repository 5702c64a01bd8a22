package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var referralCmd = &cobra.Command{
	Use:   "referral",
	Short: "Referral codes and earnings",
}

var referralCodeCmd = &cobra.Command{
	Use:   "code",
	Short: "Draw a referral code that is not yet taken",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newServices()
		if err != nil {
			return err
		}
		defer s.close()

		code, err := s.referrals.GenerateUniqueReferralCode(cmd.Context(), nil)
		if err != nil {
			return err
		}
		fmt.Println(code)
		return nil
	},
}

var referralStatsCmd = &cobra.Command{
	Use:   "stats <user-id>",
	Short: "Show how many users a user referred and what they earned",
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

		stats, err := s.referrals.GetReferralStats(cmd.Context(), userId)
		if err != nil {
			return err
		}
		fmt.Printf("Referrals: %d\nEarned: %s\n", stats.ReferralCount, stats.TotalEarned)
		return nil
	},
}

func init() {
	referralCmd.AddCommand(referralCodeCmd)
	referralCmd.AddCommand(referralStatsCmd)
}
