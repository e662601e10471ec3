package root

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"homekeep/internal/storage"
	"homekeep/internal/ui"
)

func newHistoryCmd() *cobra.Command {
	var page int
	var pageSize int
	var all bool

	cmd := &cobra.Command{
		Use:   "history <task>",
		Short: "Show a task's completions, newest first",
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
			out := cmd.OutOrStdout()

			if all {
				seq, err := svc.History(ctx, t.ID)
				if err != nil {
					return err
				}
				var items []storage.Completion
				for c, err := range seq {
					if err != nil {
						return err
					}
					items = append(items, c)
				}
				if ok, err := writeStructured(out, items); ok {
					return err
				}
				fmt.Fprintln(out, ui.Heading(ui.IconScroll, t.Name))
				if len(items) == 0 {
					fmt.Fprintln(out, ui.Muted.Render("(never completed)"))
				}
				for _, c := range items {
					printCompletion(out, c)
				}
				return nil
			}

			hp, err := svc.HistoryPage(ctx, t.ID, page, pageSize)
			if err != nil {
				return err
			}
			if ok, err := writeStructured(out, hp); ok {
				return err
			}
			fmt.Fprintln(out, ui.Heading(ui.IconScroll, t.Name))
			if hp.Total == 0 {
				fmt.Fprintln(out, ui.Muted.Render("(never completed)"))
				return nil
			}
			for _, c := range hp.Items {
				printCompletion(out, c)
			}
			fmt.Fprintln(out, ui.Muted.Render(fmt.Sprintf("page %d of %d, %d completion(s)", hp.Page, max(hp.TotalPages, 1), hp.Total)))
			return nil
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Events per page (default engine.history_page_size)")
	cmd.Flags().BoolVar(&all, "all", false, "Show the full history")

	return cmd
}
