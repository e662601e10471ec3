package root

import (
	"github.com/spf13/cobra"

	"homekeep/internal/tui"
)

func newBoardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Open the TUI dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, path, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			return tui.RunBoard(ctx, svc, path, cmd.OutOrStdout())
		},
	}

	return cmd
}
