package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"homekeep/internal/date"
	"homekeep/internal/storage"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) set(day string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = date.MustParse(day).Time().Add(15 * time.Hour)
}

func newTestService(t *testing.T, today string, opts ...Option) (*Service, *fixedClock) {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.Open(ctx, path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	clock := &fixedClock{}
	clock.set(today)
	svc := NewService(db, append([]Option{WithClock(clock)}, opts...)...)
	return svc, clock
}

func dp(s string) *date.Date {
	d := date.MustParse(s)
	return &d
}

func sp(s string) *string { return &s }

func mustCreate(t *testing.T, svc *Service, name string, freq int, due string) *storage.Task {
	t.Helper()
	task, err := svc.CreateTask(context.Background(), CreateTaskInput{
		Name:          name,
		FrequencyDays: freq,
		NextDueDate:   dp(due),
	})
	if err != nil {
		t.Fatalf("CreateTask(%q): %v", name, err)
	}
	return task
}

func collectHistory(t *testing.T, svc *Service, id string) []storage.Completion {
	t.Helper()
	seq, err := svc.History(context.Background(), id)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	var out []storage.Completion
	for c, err := range seq {
		if err != nil {
			t.Fatalf("History iteration: %v", err)
		}
		out = append(out, c)
	}
	return out
}

func TestCreateTaskStartsNeverCompleted(t *testing.T) {
	svc, _ := newTestService(t, "2024-01-01")

	task := mustCreate(t, svc, "  Shock the pool ", 7, "2024-01-08")
	if task.ID == "" {
		t.Fatalf("expected an id")
	}
	if task.Name != "Shock the pool" {
		t.Fatalf("name=%q, want trimmed", task.Name)
	}
	if got := task.NextDueDate.String(); got != "2024-01-08" {
		t.Fatalf("next_due_date=%s, want 2024-01-08", got)
	}
	if task.LastCompletedDate != nil {
		t.Fatalf("last_completed_date=%v, want unset", task.LastCompletedDate)
	}
	if task.LastCompletionNotes != nil {
		t.Fatalf("last_completion_notes=%v, want unset", *task.LastCompletionNotes)
	}
}

func TestCreateTaskDefaultsDueDateFromFrequency(t *testing.T) {
	svc, _ := newTestService(t, "2024-01-01")

	task, err := svc.CreateTask(context.Background(), CreateTaskInput{Name: "Clean filter", FrequencyDays: 30})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if got := task.NextDueDate.String(); got != "2024-01-31" {
		t.Fatalf("next_due_date=%s, want 2024-01-31", got)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	svc, _ := newTestService(t, "2024-01-01")
	ctx := context.Background()
	mustCreate(t, svc, "Test water", 3, "2024-01-02")

	cases := []struct {
		name  string
		in    CreateTaskInput
		field string
	}{
		{"empty name", CreateTaskInput{Name: "   ", FrequencyDays: 1}, "name"},
		{"zero frequency", CreateTaskInput{Name: "a", FrequencyDays: 0}, "frequency_days"},
		{"negative frequency", CreateTaskInput{Name: "a", FrequencyDays: -3}, "frequency_days"},
		{"duplicate name", CreateTaskInput{Name: "Test water", FrequencyDays: 2}, "name"},
		{"frequency too large", CreateTaskInput{Name: "a", FrequencyDays: 3_000_000}, "frequency_days"},
		{"due year out of range", CreateTaskInput{Name: "a", FrequencyDays: 1, NextDueDate: &date.Date{Year: 10000, Month: time.January, Day: 1}}, "next_due_date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateTask(ctx, tc.in)
			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err=%v, want ValidationError", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("field=%q, want %q", ve.Field, tc.field)
			}
		})
	}

	all, err := svc.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("len(tasks)=%d, want 1 (rejected input must not be stored)", len(all))
	}
}

func TestScheduleStaysWithinYear9999(t *testing.T) {
	svc, _ := newTestService(t, "9999-12-20")
	ctx := context.Background()

	_, err := svc.CreateTask(ctx, CreateTaskInput{Name: "Default due", FrequencyDays: 30})
	var ve ValidationError
	if !errors.As(err, &ve) || ve.Field != "frequency_days" {
		t.Fatalf("create err=%v, want ValidationError(frequency_days)", err)
	}

	task := mustCreate(t, svc, "Monthly", 30, "9999-12-25")
	_, err = svc.Complete(ctx, task.ID, CompleteInput{})
	if !errors.As(err, &ve) || ve.Field != "frequency_days" {
		t.Fatalf("complete err=%v, want ValidationError(frequency_days)", err)
	}
	if h := collectHistory(t, svc, task.ID); len(h) != 0 {
		t.Fatalf("len(history)=%d, want 0 after rejected completion", len(h))
	}

	// A day earlier still fits.
	res, err := svc.Complete(ctx, task.ID, CompleteInput{CompletedOn: dp("9999-12-01")})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := res.Task.NextDueDate.String(); got != "9999-12-31" {
		t.Fatalf("next_due_date=%s, want 9999-12-31", got)
	}

	all, err := svc.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("len(tasks)=%d, want 1", len(all))
	}
}

func TestDaysSincePreviousAcrossCenturies(t *testing.T) {
	svc, _ := newTestService(t, "2024-01-08")
	ctx := context.Background()
	task := mustCreate(t, svc, "Repaint fence", 7, "2024-01-08")

	if _, err := svc.Complete(ctx, task.ID, CompleteInput{CompletedOn: dp("1500-01-01")}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	res, err := svc.Complete(ctx, task.ID, CompleteInput{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Event.DaysSincePrevious == nil || *res.Event.DaysSincePrevious != 191394 {
		t.Fatalf("days_since_previous=%v, want 191394", res.Event.DaysSincePrevious)
	}
}

func TestGetTaskUnknownIsNotFound(t *testing.T) {
	svc, _ := newTestService(t, "2024-01-01")

	_, err := svc.GetTask(context.Background(), "00000000-0000-0000-0000-000000000000")
	if !IsNotFound(err) {
		t.Fatalf("err=%v, want NotFoundError", err)
	}
}

func TestListTasksSortedByNextDue(t *testing.T) {
	svc, _ := newTestService(t, "2024-01-01")
	ctx := context.Background()

	for i, due := range []string{"2024-05-01", "2023-12-20", "2024-01-01", "2024-02-14", "2023-12-31"} {
		mustCreate(t, svc, fmt.Sprintf("task-%d", i), 1, due)
	}

	tasks, err := svc.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	for i := 1; i < len(tasks); i++ {
		if tasks[i].NextDueDate.Before(tasks[i-1].NextDueDate) {
			t.Fatalf("tasks not sorted at %d: %s before %s", i, tasks[i].NextDueDate, tasks[i-1].NextDueDate)
		}
	}

	due, err := svc.DueTasks(ctx)
	if err != nil {
		t.Fatalf("DueTasks: %v", err)
	}
	if len(due) != 3 {
		t.Fatalf("len(due)=%d, want 3", len(due))
	}
}

func TestComputeStatus(t *testing.T) {
	today := date.MustParse("2024-01-08")
	cases := []struct {
		due  string
		want DueStatus
	}{
		{"2024-01-07", StatusOverdue},
		{"2023-01-08", StatusOverdue},
		{"2024-01-08", StatusDueToday},
		{"2024-01-09", StatusUpcoming},
	}
	for _, tc := range cases {
		got := ComputeStatus(storage.Task{NextDueDate: date.MustParse(tc.due)}, today)
		if got != tc.want {
			t.Fatalf("ComputeStatus(%s)=%s, want %s", tc.due, got, tc.want)
		}
	}
}

func TestStatusIgnoresTimeOfDay(t *testing.T) {
	svc, clock := newTestService(t, "2024-01-08")
	task := storage.Task{NextDueDate: date.MustParse("2024-01-08")}

	for _, hour := range []int{0, 1, 12, 23} {
		clock.mu.Lock()
		clock.now = time.Date(2024, 1, 8, hour, 59, 59, 0, time.UTC)
		clock.mu.Unlock()
		if got := svc.Status(task); got != StatusDueToday {
			t.Fatalf("hour %d: status=%s, want due_today", hour, got)
		}
	}
}

func TestCompletionScenario(t *testing.T) {
	svc, clock := newTestService(t, "2024-01-08")
	ctx := context.Background()

	task := mustCreate(t, svc, "Brush walls", 7, "2024-01-08")

	res, err := svc.Complete(ctx, task.ID, CompleteInput{})
	if err != nil {
		t.Fatalf("Complete #1: %v", err)
	}
	if got := res.Task.NextDueDate.String(); got != "2024-01-15" {
		t.Fatalf("next_due_date=%s, want 2024-01-15", got)
	}
	if res.Task.LastCompletedDate == nil || res.Task.LastCompletedDate.String() != "2024-01-08" {
		t.Fatalf("last_completed_date=%v, want 2024-01-08", res.Task.LastCompletedDate)
	}
	if res.Event.DaysSincePrevious != nil {
		t.Fatalf("first days_since_previous=%d, want null", *res.Event.DaysSincePrevious)
	}
	if h := collectHistory(t, svc, task.ID); len(h) != 1 {
		t.Fatalf("len(history)=%d, want 1", len(h))
	}

	clock.set("2024-01-20")
	res, err = svc.Complete(ctx, task.ID, CompleteInput{Notes: sp("  added shock  ")})
	if err != nil {
		t.Fatalf("Complete #2: %v", err)
	}
	if got := res.Task.NextDueDate.String(); got != "2024-01-27" {
		t.Fatalf("next_due_date=%s, want 2024-01-27", got)
	}
	if res.Task.LastCompletionNotes == nil || *res.Task.LastCompletionNotes != "added shock" {
		t.Fatalf("last_completion_notes=%v, want trimmed notes", res.Task.LastCompletionNotes)
	}

	h := collectHistory(t, svc, task.ID)
	if len(h) != 2 {
		t.Fatalf("len(history)=%d, want 2", len(h))
	}
	if h[0].CompletedOn.String() != "2024-01-20" {
		t.Fatalf("newest entry=%s, want 2024-01-20", h[0].CompletedOn)
	}
	if h[0].DaysSincePrevious == nil || *h[0].DaysSincePrevious != 12 {
		t.Fatalf("days_since_previous=%v, want 12", h[0].DaysSincePrevious)
	}
	if h[1].DaysSincePrevious != nil {
		t.Fatalf("oldest days_since_previous=%d, want null", *h[1].DaysSincePrevious)
	}

	stored, err := svc.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if stored.NextDueDate != res.Task.NextDueDate || *stored.LastCompletedDate != *res.Task.LastCompletedDate {
		t.Fatalf("stored task %+v does not match returned %+v", stored, res.Task)
	}
}

func TestCompleteSequenceAdvancesSchedule(t *testing.T) {
	svc, clock := newTestService(t, "2024-01-01")
	ctx := context.Background()
	task := mustCreate(t, svc, "Check pH", 3, "2024-01-01")

	days := []string{"2024-01-01", "2024-01-02", "2024-01-07", "2024-01-07", "2024-02-29"}
	clock.set("2024-03-01")
	for k, d := range days {
		res, err := svc.Complete(ctx, task.ID, CompleteInput{CompletedOn: dp(d)})
		if err != nil {
			t.Fatalf("Complete(%s): %v", d, err)
		}
		want := date.MustParse(d).AddDays(3)
		if res.Task.NextDueDate != want {
			t.Fatalf("after %s next_due_date=%s, want %s", d, res.Task.NextDueDate, want)
		}
		if k > 0 {
			gap := date.MustParse(d).DaysSince(date.MustParse(days[k-1]))
			if res.Event.DaysSincePrevious == nil || *res.Event.DaysSincePrevious != gap {
				t.Fatalf("after %s days_since_previous=%v, want %d", d, res.Event.DaysSincePrevious, gap)
			}
		}
	}
}

func TestCompleteRejectsFutureDate(t *testing.T) {
	svc, _ := newTestService(t, "2024-01-08")
	ctx := context.Background()
	task := mustCreate(t, svc, "Vacuum", 7, "2024-01-08")

	_, err := svc.Complete(ctx, task.ID, CompleteInput{CompletedOn: dp("2024-01-09")})
	var ve ValidationError
	if !errors.As(err, &ve) || ve.Field != "completed_on" {
		t.Fatalf("err=%v, want ValidationError on completed_on", err)
	}

	after, err := svc.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if after.LastCompletedDate != nil || after.NextDueDate.String() != "2024-01-08" {
		t.Fatalf("task changed after rejected completion: %+v", after)
	}
	if h := collectHistory(t, svc, task.ID); len(h) != 0 {
		t.Fatalf("len(history)=%d, want 0", len(h))
	}
}

func TestCompleteRejectsDateBeforeLastCompletion(t *testing.T) {
	svc, _ := newTestService(t, "2024-01-08")
	ctx := context.Background()
	task := mustCreate(t, svc, "Empty skimmer", 2, "2024-01-08")

	if _, err := svc.Complete(ctx, task.ID, CompleteInput{}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	_, err := svc.Complete(ctx, task.ID, CompleteInput{CompletedOn: dp("2024-01-05")})
	if !IsValidation(err) {
		t.Fatalf("err=%v, want ValidationError", err)
	}
}

func TestCompleteUnknownTask(t *testing.T) {
	svc, _ := newTestService(t, "2024-01-08")
	ctx := context.Background()

	_, err := svc.Complete(ctx, "missing", CompleteInput{})
	if !IsNotFound(err) {
		t.Fatalf("err=%v, want NotFoundError", err)
	}
	if _, err := svc.History(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("History err=%v, want NotFoundError", err)
	}
	if svc.locks.size() != 0 {
		t.Fatalf("lock table has %d entries after completion returned", svc.locks.size())
	}
}

func TestConcurrentCompletionsSameTask(t *testing.T) {
	svc, _ := newTestService(t, "2024-01-20")
	ctx := context.Background()
	task := mustCreate(t, svc, "Run pump", 5, "2024-01-01")

	const n = 12
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			on := date.MustParse("2024-01-08").AddDays(i)
			_, err := svc.Complete(ctx, task.ID, CompleteInput{CompletedOn: &on})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case IsValidation(err):
			// A later date landed first; older dates are refused, not merged.
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	h := collectHistory(t, svc, task.ID)
	if len(h) != succeeded {
		t.Fatalf("len(history)=%d, successful completions=%d", len(h), succeeded)
	}
	final, err := svc.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if *final.LastCompletedDate != h[0].CompletedOn {
		t.Fatalf("last_completed_date=%s, newest event=%s", final.LastCompletedDate, h[0].CompletedOn)
	}
	if final.NextDueDate != h[0].CompletedOn.AddDays(5) {
		t.Fatalf("next_due_date=%s does not follow newest event %s", final.NextDueDate, h[0].CompletedOn)
	}
	for i := 0; i+1 < len(h); i++ {
		gap := h[i].CompletedOn.DaysSince(h[i+1].CompletedOn)
		if h[i].DaysSincePrevious == nil || *h[i].DaysSincePrevious != gap {
			t.Fatalf("event %d days_since_previous=%v, want %d", i, h[i].DaysSincePrevious, gap)
		}
	}
}

func TestConcurrentCompletionsSameDayAllRecorded(t *testing.T) {
	svc, _ := newTestService(t, "2024-01-20")
	ctx := context.Background()
	task := mustCreate(t, svc, "Top up water", 1, "2024-01-20")

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Complete(ctx, task.ID, CompleteInput{}); err != nil {
				t.Errorf("Complete: %v", err)
			}
		}()
	}
	wg.Wait()

	h := collectHistory(t, svc, task.ID)
	if len(h) != n {
		t.Fatalf("len(history)=%d, want %d", len(h), n)
	}
	nulls := 0
	for _, c := range h {
		if c.DaysSincePrevious == nil {
			nulls++
		} else if *c.DaysSincePrevious != 0 {
			t.Fatalf("days_since_previous=%d, want 0", *c.DaysSincePrevious)
		}
	}
	if nulls != 1 {
		t.Fatalf("%d events without a predecessor, want exactly 1", nulls)
	}
}

func TestWithRetryGivesUpWithConflict(t *testing.T) {
	svc, _ := newTestService(t, "2024-01-08", WithMaxRetries(2))
	busy := errors.New("database is locked")
	svc.retryable = func(err error) bool { return errors.Is(err, busy) }

	calls := 0
	err := svc.withRetry(context.Background(), "t1", func() error {
		calls++
		return busy
	})
	var cc ConcurrencyConflict
	if !errors.As(err, &cc) {
		t.Fatalf("err=%v, want ConcurrencyConflict", err)
	}
	if calls != 3 || cc.Attempts != 3 {
		t.Fatalf("calls=%d attempts=%d, want 3", calls, cc.Attempts)
	}
	if !errors.Is(err, busy) {
		t.Fatalf("conflict should wrap the last storage error")
	}

	calls = 0
	err = svc.withRetry(context.Background(), "t1", func() error {
		calls++
		if calls < 2 {
			return busy
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("err=%v calls=%d, want success on second attempt", err, calls)
	}
}

func TestHistoryIsRestartableAcrossBatches(t *testing.T) {
	svc, clock := newTestService(t, "2024-01-01", WithHistoryPageSize(2))
	ctx := context.Background()
	task := mustCreate(t, svc, "Clean deck", 1, "2024-01-01")

	for i := 0; i < 5; i++ {
		clock.set(date.MustParse("2024-01-01").AddDays(i).String())
		if _, err := svc.Complete(ctx, task.ID, CompleteInput{}); err != nil {
			t.Fatalf("Complete: %v", err)
		}
	}

	seq, err := svc.History(ctx, task.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	for round := 0; round < 2; round++ {
		var got []string
		for c, err := range seq {
			if err != nil {
				t.Fatalf("iteration: %v", err)
			}
			got = append(got, c.CompletedOn.String())
		}
		want := []string{"2024-01-05", "2024-01-04", "2024-01-03", "2024-01-02", "2024-01-01"}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Fatalf("round %d history=%v, want %v", round, got, want)
		}
	}

	// Stopping early must not pull further batches or mutate anything.
	for range seq {
		break
	}
}

func TestHistoryPage(t *testing.T) {
	svc, clock := newTestService(t, "2024-01-01")
	ctx := context.Background()
	task := mustCreate(t, svc, "Inspect ladder", 2, "2024-01-01")
	for i := 0; i < 5; i++ {
		clock.set(date.MustParse("2024-01-01").AddDays(2 * i).String())
		if _, err := svc.Complete(ctx, task.ID, CompleteInput{}); err != nil {
			t.Fatalf("Complete: %v", err)
		}
	}

	p, err := svc.HistoryPage(ctx, task.ID, 2, 2)
	if err != nil {
		t.Fatalf("HistoryPage: %v", err)
	}
	if p.Total != 5 || p.TotalPages != 3 || len(p.Items) != 2 {
		t.Fatalf("page=%+v, want total 5, 3 pages, 2 items", p)
	}
	if p.Items[0].CompletedOn.String() != "2024-01-05" {
		t.Fatalf("first item=%s, want 2024-01-05", p.Items[0].CompletedOn)
	}

	if _, err := svc.HistoryPage(ctx, task.ID, 0, 10); !IsValidation(err) {
		t.Fatalf("page 0 err=%v, want ValidationError", err)
	}
	if _, err := svc.HistoryPage(ctx, task.ID, 1, MaxHistoryPageSize+1); !IsValidation(err) {
		t.Fatalf("oversized page err=%v, want ValidationError", err)
	}
}

func TestResolveTask(t *testing.T) {
	svc, _ := newTestService(t, "2024-01-01")
	ctx := context.Background()
	svc.newID = func() func() string {
		ids := []string{"aaaa1111", "aaaa2222", "bbbb3333"}
		i := 0
		return func() string { i++; return ids[i-1] }
	}()
	mustCreate(t, svc, "one", 1, "2024-01-01")
	mustCreate(t, svc, "two", 1, "2024-01-01")
	mustCreate(t, svc, "three", 1, "2024-01-01")

	for ref, want := range map[string]string{"aaaa1111": "one", "bbbb": "three", "two": "two"} {
		got, err := svc.ResolveTask(ctx, ref)
		if err != nil {
			t.Fatalf("ResolveTask(%q): %v", ref, err)
		}
		if got.Name != want {
			t.Fatalf("ResolveTask(%q)=%q, want %q", ref, got.Name, want)
		}
	}
	if _, err := svc.ResolveTask(ctx, "aaaa"); !IsValidation(err) {
		t.Fatalf("ambiguous prefix err=%v, want ValidationError", err)
	}
	if _, err := svc.ResolveTask(ctx, "zzz"); !IsNotFound(err) {
		t.Fatalf("unknown ref err=%v, want NotFoundError", err)
	}
}

func TestSummary(t *testing.T) {
	svc, _ := newTestService(t, "2024-01-08")
	mustCreate(t, svc, "a", 1, "2024-01-01")
	mustCreate(t, svc, "b", 1, "2024-01-08")
	mustCreate(t, svc, "c", 1, "2024-01-08")
	mustCreate(t, svc, "d", 1, "2024-02-01")

	sum, err := svc.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum != (StatusSummary{Overdue: 1, DueToday: 2, Upcoming: 1}) {
		t.Fatalf("summary=%+v", sum)
	}
}
