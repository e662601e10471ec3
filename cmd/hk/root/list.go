package root

import (
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, soonest due first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, _, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			tasks, err := svc.ListTasks(ctx)
			if err != nil {
				return err
			}
			today := svc.Today()
			if ok, err := writeStructured(cmd.OutOrStdout(), viewTasks(tasks, today)); ok {
				return err
			}
			printTaskRows(cmd.OutOrStdout(), tasks, today)
			return nil
		},
	}

	return cmd
}

func newDueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "due",
		Short: "List tasks due today or overdue",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, _, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			tasks, err := svc.DueTasks(ctx)
			if err != nil {
				return err
			}
			today := svc.Today()
			if ok, err := writeStructured(cmd.OutOrStdout(), viewTasks(tasks, today)); ok {
				return err
			}
			printTaskRows(cmd.OutOrStdout(), tasks, today)
			return nil
		},
	}

	return cmd
}
