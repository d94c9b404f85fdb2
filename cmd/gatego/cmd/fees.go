package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gatego-backend/internal/service"
)

var feesService string

var feesCmd = &cobra.Command{
	Use:   "fees",
	Short: "Тарифы портовых услуг Pelindo",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var filter service.ServiceKind
		if feesService != "" {
			kind, err := service.ParseService(feesService)
			if err != nil {
				return err
			}
			filter = kind
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SERVICE\tCONTAINER\tSIZE\tFEE\t")
		for _, e := range service.Schedule() {
			if filter != 0 && e.Service != filter.String() {
				continue
			}
			fee := service.FormatIDR(e.Fee)
			if e.PerDay {
				fee += " /hari"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", e.Service, e.Container, e.Size, fee)
		}
		return tw.Flush()
	},
}

func init() {
	feesCmd.Flags().StringVar(&feesService, "service", "", "только одна услуга (Storage, Lift, Haulage, Extra Movement)")
}
