package root

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"homekeep/internal/date"
	"homekeep/internal/engine"
	"homekeep/internal/ui"
)

func newDoCmd() *cobra.Command {
	var notes string
	var on string

	cmd := &cobra.Command{
		Use:   "do <task>",
		Short: "Record a completion of a task",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("task is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var in engine.CompleteInput
			if cmd.Flags().Changed("notes") {
				in.Notes = &notes
			}
			if on != "" {
				d, err := date.Parse(on)
				if err != nil {
					return engine.ValidationError{Field: "completed_on", Message: err.Error()}
				}
				in.CompletedOn = &d
			}

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
			res, err := svc.Complete(ctx, t.ID, in)
			if err != nil {
				return err
			}
			if ok, err := writeStructured(cmd.OutOrStdout(), res); ok {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s Completed %s on %s\n", ui.Good.Render(ui.IconDone), res.Task.Name, res.Event.CompletedOn)
			if res.Event.DaysSincePrevious != nil {
				fmt.Fprintln(out, ui.Muted.Render(fmt.Sprintf("%d day(s) since the previous completion", *res.Event.DaysSincePrevious)))
			}
			today := svc.Today()
			fmt.Fprintf(out, "Next due %s (%s)\n", res.Task.NextDueDate, ui.DueIn(engine.DaysUntilDue(res.Task, today)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&notes, "notes", "n", "", "Notes for this completion")
	cmd.Flags().StringVar(&on, "on", "", "Completion date YYYY-MM-DD (default today)")

	return cmd
}
