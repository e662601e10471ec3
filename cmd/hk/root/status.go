package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"homekeep/internal/engine"
	"homekeep/internal/ui"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize what is overdue, due today and upcoming",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, path, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			sum, err := svc.Summary(ctx)
			if err != nil {
				return err
			}
			if ok, err := writeStructured(cmd.OutOrStdout(), sum); ok {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.Heading(ui.IconHome, "Household status"))
			fmt.Fprintln(out, ui.LabelValue("Today", svc.Today()))
			fmt.Fprintln(out, ui.LabelValue("Database", ui.Muted.Render(path)))
			fmt.Fprintln(out, "")
			fmt.Fprintf(out, "- %s %d\n", ui.StatusText(string(engine.StatusOverdue)), sum.Overdue)
			fmt.Fprintf(out, "- %s %d\n", ui.StatusText(string(engine.StatusDueToday)), sum.DueToday)
			fmt.Fprintf(out, "- %s %d\n", ui.StatusText(string(engine.StatusUpcoming)), sum.Upcoming)

			if sum.Overdue+sum.DueToday == 0 {
				fmt.Fprintln(out, "")
				fmt.Fprintln(out, ui.Good.Render("Nothing due. "+ui.IconDone))
			}
			return nil
		},
	}

	return cmd
}
