package root

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"homekeep/internal/date"
	"homekeep/internal/engine"
	"homekeep/internal/storage"
	"homekeep/internal/ui"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validateFormat(f string) error {
	switch f {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("invalid --format %q (want table, json or yaml)", f)
}

// taskView is a task as shown to users, with its derived due status.
type taskView struct {
	storage.Task `yaml:",inline"`
	Status       engine.DueStatus `json:"status" yaml:"status"`
}

func viewTasks(tasks []storage.Task, today date.Date) []taskView {
	out := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskView{Task: t, Status: engine.ComputeStatus(t, today)})
	}
	return out
}

// writeStructured handles json and yaml. It reports false for table output
// so the caller renders its own view.
func writeStructured(w io.Writer, v any) (bool, error) {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	}
	return false, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printTaskRows(w io.Writer, tasks []storage.Task, today date.Date) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, ui.Muted.Render("(no tasks)"))
		return
	}
	for _, t := range tasks {
		status := engine.ComputeStatus(t, today)
		fmt.Fprintf(w, "%s %s  %-28s %s  %s %s\n",
			ui.StatusIcon(string(status)),
			ui.Muted.Render(shortID(t.ID)),
			ui.Truncate(t.Name, 28),
			t.NextDueDate,
			ui.StatusText(string(status)),
			ui.Muted.Render("("+ui.DueIn(engine.DaysUntilDue(t, today))+")"),
		)
	}
}

func printTask(w io.Writer, t storage.Task, today date.Date) {
	status := engine.ComputeStatus(t, today)
	fmt.Fprintln(w, ui.Heading(ui.IconHome, t.Name))
	fmt.Fprintln(w, ui.LabelValue("ID", t.ID))
	if t.Description != nil {
		fmt.Fprintln(w, ui.LabelValue("Description", *t.Description))
	}
	fmt.Fprintln(w, ui.LabelValue("Every", fmt.Sprintf("%d day(s)", t.FrequencyDays)))
	fmt.Fprintln(w, ui.LabelValue("Next due", fmt.Sprintf("%s %s (%s)", t.NextDueDate, ui.StatusText(string(status)), ui.DueIn(engine.DaysUntilDue(t, today)))))
	if t.LastCompletedDate != nil {
		last := t.LastCompletedDate.String()
		if t.LastCompletionNotes != nil {
			last += "  " + ui.Muted.Render(*t.LastCompletionNotes)
		}
		fmt.Fprintln(w, ui.LabelValue("Last done", last))
	} else {
		fmt.Fprintln(w, ui.LabelValue("Last done", ui.Muted.Render("never")))
	}
}

func printCompletion(w io.Writer, c storage.Completion) {
	gap := ui.Muted.Render("first")
	if c.DaysSincePrevious != nil {
		gap = ui.Muted.Render(fmt.Sprintf("+%dd", *c.DaysSincePrevious))
	}
	line := fmt.Sprintf("- %s %s", c.CompletedOn, gap)
	if c.Notes != nil {
		line += "  " + *c.Notes
	}
	fmt.Fprintln(w, line)
}
