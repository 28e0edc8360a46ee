package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild the place set from every configured feed",
	Long:  "Fetches all configured feeds and atomically replaces the stored places. If every feed fails or yields nothing, the existing data is kept.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Refresher == nil {
			return eris.New("no sources configured")
		}

		n, err := env.Refresher.Refresh(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("refreshed %d places\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
