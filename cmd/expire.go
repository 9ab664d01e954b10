package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// expireCommands defines the one-shot "expire" command. It runs the batch
// once in the foreground and prints the result as JSON.
func expireCommands(app *lifecycleInstance) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "expire",
		Short: "run the announcement expiration batch once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), app.cnf.Expiration.RunTimeout())
			defer cancel()

			var output interface{}
			if dryRun {
				report, err := app.engine.SimulateExpiration(ctx)
				if err != nil {
					return err
				}
				output = report
			} else {
				result, err := app.engine.RunExpiration(ctx)
				if err != nil {
					return err
				}
				output = result
			}

			data, err := json.MarshalIndent(output, "", "    ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would expire without updating any record")
	return cmd
}
