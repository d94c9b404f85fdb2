// Package cmd - команды CLI gatego.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gatego-backend/internal/logging"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "gatego",
	Short: "Расчет ввозных пошлин и портовых сборов (Индонезия)",
	Long: `gatego считает ввозную пошлину (bea masuk), PPN, PPh 22 и landed cost
по заявленной стоимости груза и ставке HS Code, а также тарифы портовых услуг Pelindo.

Примеры:
  gatego calc --fob 24000000 --freight 3200000 --insurance 800000 --hs-code 8517.12.00 --npwp
  gatego calc --currency USD --rate 16000 --fob 5000 --freight 500 --insurance 50 --duty-rate 0.05
  gatego fees --service Storage`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := logging.DefaultConfig()
		cfg.Format = "console"
		cfg.Output = "stderr"
		cfg.Level = "warn"
		if verbose {
			cfg.Level = "debug"
		}
		if err := logging.Initialize(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Ошибка инициализации логирования: %v\n", err)
		}
	},
}

// Execute - запуск CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "подробный вывод")

	rootCmd.AddCommand(calcCmd)
	rootCmd.AddCommand(feesCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Версия",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "gatego version 0.1.0")
	},
}
