package engine

import (
	"database/sql"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"homekeep/internal/date"
	"homekeep/internal/storage"
)

const (
	DefaultMaxRetries      = 3
	DefaultHistoryPageSize = 20
	MaxHistoryPageSize     = 100
	MaxFrequencyDays       = 36500

	retryBackoff = 25 * time.Millisecond
)

// Service is the scheduling engine: the task registry and the completion
// ledger share one DB handle, clock and per-task lock table.
type Service struct {
	db          *sql.DB
	tasks       *storage.TaskRepo
	completions *storage.CompletionRepo

	clock     Clock
	logger    *slog.Logger
	locks     *taskLocks
	newID     func() string
	retryable func(error) bool

	maxRetries      int
	historyPageSize int
}

type Option func(*Service)

func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMaxRetries sets how many times a contended completion is retried
// before ConcurrencyConflict is returned.
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

func WithHistoryPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 && n <= MaxHistoryPageSize {
			s.historyPageSize = n
		}
	}
}

func NewService(db *sql.DB, opts ...Option) *Service {
	s := &Service{
		db:              db,
		tasks:           storage.NewTaskRepo(db),
		completions:     storage.NewCompletionRepo(db),
		clock:           SystemClock{},
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		locks:           newTaskLocks(),
		newID:           uuid.NewString,
		retryable:       storage.IsBusy,
		maxRetries:      DefaultMaxRetries,
		historyPageSize: DefaultHistoryPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the current calendar date according to the engine clock.
func (s *Service) Today() date.Date {
	return date.Of(s.clock.Now())
}

func normalizeName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return "", ValidationError{Field: "name", Message: "is required"}
	}
	return n, nil
}

// normalizeText trims optional free text; blank becomes nil.
func normalizeText(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
