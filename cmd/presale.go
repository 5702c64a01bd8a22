package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var presaleCmd = &cobra.Command{
	Use:   "presale",
	Short: "Presale rounds",
}

var presaleActiveCmd = &cobra.Command{
	Use:   "active",
	Short: "Show the presale round open at the evaluation time",
	RunE: func(cmd *cobra.Command, args []string) error {
		now, err := evaluationTime()
		if err != nil {
			return err
		}

		s, err := newServices()
		if err != nil {
			return err
		}
		defer s.close()

		p, err := s.presales.GetActivePresale(cmd.Context(), now)
		if err != nil {
			return err
		}
		remaining := p.HardCap.Sub(p.TokensSold)
		fmt.Printf("%s (%s)\nPrice: %s\nSold: %s of %s (%s remaining)\nRaised: %s\nEnds: %s\n",
			p.Name, p.TokenSymbol, p.TokenPrice, p.TokensSold, p.HardCap, remaining,
			p.AmountRaised, p.EndDate.Format(time.RFC3339))
		return nil
	},
}

func init() {
	presaleCmd.AddCommand(presaleActiveCmd)
}
