package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"platter/internal/ipc"
)

func newIdentifyCommand(ctx *commandContext) *cobra.Command {
	var device string

	cmd := &cobra.Command{
		Use:   "identify",
		Short: "Detect the inserted disc and queue it for ripping",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Detect(cmd.Context(), device)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if resp.Message != "" {
					fmt.Fprintln(out, resp.Message)
				}
				if resp.Handled && resp.ItemID > 0 {
					fmt.Fprintf(out, "Queue item: %d\n", resp.ItemID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&device, "device", "d", "", "Optical drive device path (defaults to the configured drive)")
	return cmd
}
