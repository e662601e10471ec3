package root

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"homekeep/internal/date"
	"homekeep/internal/engine"
	"homekeep/internal/storage"
	"homekeep/internal/ui"
)

func newAddCmd() *cobra.Command {
	var every string
	var due string
	var desc string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a recurring task",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("name is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := engine.ParseFrequency(every)
			if err != nil {
				return err
			}
			in := engine.CreateTaskInput{
				Name:          args[0],
				FrequencyDays: days,
			}
			if cmd.Flags().Changed("desc") {
				in.Description = &desc
			}
			if due != "" {
				d, err := date.Parse(due)
				if err != nil {
					return engine.ValidationError{Field: "next_due_date", Message: err.Error()}
				}
				in.NextDueDate = &d
			}

			ctx := cmd.Context()
			svc, _, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			t, err := svc.CreateTask(ctx, in)
			if err != nil {
				return err
			}
			if ok, err := writeStructured(cmd.OutOrStdout(), viewTasks([]storage.Task{*t}, svc.Today())[0]); ok {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Added %s %s, first due %s\n",
				ui.Good.Render(ui.IconDone), t.Name, ui.Muted.Render("("+shortID(t.ID)+")"), t.NextDueDate)
			return nil
		},
	}

	cmd.Flags().StringVarP(&every, "every", "e", "", "Repeat interval: days (10), 3d, 2w, or daily|weekly|monthly (required)")
	cmd.Flags().StringVar(&due, "due", "", "First due date YYYY-MM-DD (default today + every)")
	cmd.Flags().StringVarP(&desc, "desc", "d", "", "Description")
	_ = cmd.MarkFlagRequired("every")

	return cmd
}
