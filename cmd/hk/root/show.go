package root

import (
	"errors"

	"github.com/spf13/cobra"

	"homekeep/internal/storage"
)

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <task>",
		Short: "Show one task (by id, id prefix or name)",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("task is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, _, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			t, err := svc.ResolveTask(ctx, args[0])
			if err != nil {
				return err
			}
			today := svc.Today()
			if ok, err := writeStructured(cmd.OutOrStdout(), viewTasks([]storage.Task{*t}, today)[0]); ok {
				return err
			}
			printTask(cmd.OutOrStdout(), *t, today)
			return nil
		},
	}

	return cmd
}
