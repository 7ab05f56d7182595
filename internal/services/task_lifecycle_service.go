package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/taskhub/internal/models"
	"github.com/charlesng35/taskhub/pkg/logger"
	"github.com/charlesng35/taskhub/pkg/metrics"
)

// Notifier sends a notification to a recipient set.
type Notifier interface {
	Send(ctx context.Context, input SendInput) (FanoutResult, error)
}

// AdminResolver resolves the recipients of submission notifications.
type AdminResolver interface {
	AdminIDs(ctx context.Context) ([]string, error)
	DisplayName(ctx context.Context, userID string) string
}

// UpdateTaskInput combines a scalar patch with optional assignees to merge in.
type UpdateTaskInput struct {
	TaskPatch
	AssigneeIDs []string
}

// SubmitTaskInput records one assignee's submission.
type SubmitTaskInput struct {
	TaskID        string
	UserID        string
	AttachmentRef *string
}

// TaskWithProgress is a task annotated with its aggregate progress.
type TaskWithProgress struct {
	models.Task
	Progress TaskProgress `json:"progress"`
}

// MyTask is an assigned task annotated with the caller's own status.
type MyTask struct {
	AssignedTask
	Status   string       `json:"status"`
	Progress TaskProgress `json:"progress"`
}

// TaskLifecycleService runs task mutations in a transaction and notifies affected users after commit.
type TaskLifecycleService struct {
	db            *gorm.DB
	ledger        *TaskLedger
	notifications *NotificationStore
	notifier      Notifier
	admins        AdminResolver
	async         bool
	pending       sync.WaitGroup
	log           *zap.Logger
	timeNow       func() time.Time
}

// TaskLifecycleOption customises the service.
type TaskLifecycleOption func(*TaskLifecycleService)

// WithAsyncNotifications runs the notification phase on a background goroutine.
func WithAsyncNotifications(enabled bool) TaskLifecycleOption {
	return func(s *TaskLifecycleService) {
		s.async = enabled
	}
}

// WithTaskLifecycleLogger overrides the service logger.
func WithTaskLifecycleLogger(log *zap.Logger) TaskLifecycleOption {
	return func(s *TaskLifecycleService) {
		if log != nil {
			s.log = log
		}
	}
}

// WithTaskLifecycleClock overrides the clock used for progress (test helper).
func WithTaskLifecycleClock(clock func() time.Time) TaskLifecycleOption {
	return func(s *TaskLifecycleService) {
		if clock != nil {
			s.timeNow = clock
		}
	}
}

// NewTaskLifecycleService constructs the service once dependencies are supplied.
func NewTaskLifecycleService(db *gorm.DB, ledger *TaskLedger, notifications *NotificationStore, notifier Notifier, admins AdminResolver, opts ...TaskLifecycleOption) (*TaskLifecycleService, error) {
	if db == nil {
		return nil, errors.New("task lifecycle service: db is required")
	}
	if ledger == nil {
		return nil, errors.New("task lifecycle service: ledger is required")
	}
	if notifications == nil {
		return nil, errors.New("task lifecycle service: notification store is required")
	}
	if notifier == nil {
		return nil, errors.New("task lifecycle service: notifier is required")
	}
	if admins == nil {
		return nil, errors.New("task lifecycle service: admin resolver is required")
	}

	svc := &TaskLifecycleService{
		db:            db,
		ledger:        ledger,
		notifications: notifications,
		notifier:      notifier,
		admins:        admins,
		log:           logger.WithModule("tasks"),
		timeNow:       time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create persists a task and notifies its initial assignees.
func (s *TaskLifecycleService) Create(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	ctx = ensureContext(ctx)

	var task *models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.ledger.WithTx(tx).CreateTask(ctx, input)
		if err != nil {
			return err
		}
		task = created
		return nil
	})
	metrics.TaskOperations.WithLabelValues("create", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}

	s.notify(ctx, SendInput{
		RecipientIDs:    task.AssigneeIDs(),
		Title:           "New Task Assigned",
		Message:         fmt.Sprintf("A new task %q has been assigned to you.", task.Title),
		Type:            models.NotificationTaskCreated,
		RelatedEntityID: task.ID,
	})
	return task, nil
}

// Update applies scalar changes and merges assignees; only newly added assignees are notified.
func (s *TaskLifecycleService) Update(ctx context.Context, taskID string, input UpdateTaskInput) (*models.Task, error) {
	ctx = ensureContext(ctx)

	var (
		task  *models.Task
		added []string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)
		patched, err := ledger.ApplyPatch(ctx, taskID, input.TaskPatch)
		if err != nil {
			return err
		}
		task = patched

		if len(input.AssigneeIDs) == 0 {
			return nil
		}
		merged, newIDs, err := ledger.MergeAssignees(ctx, taskID, input.AssigneeIDs)
		if err != nil {
			return err
		}
		task, added = merged, newIDs
		return nil
	})
	metrics.TaskOperations.WithLabelValues("update", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}

	if len(added) > 0 {
		s.notify(ctx, SendInput{
			RecipientIDs:    added,
			Title:           "New Task Assigned",
			Message:         fmt.Sprintf("You have been assigned to task %q.", task.Title),
			Type:            models.NotificationTaskAssigned,
			RelatedEntityID: task.ID,
		})
	}
	return task, nil
}

// Delete removes the task, tombstones its notifications and tells the former assignees.
func (s *TaskLifecycleService) Delete(ctx context.Context, taskID string) (*models.Task, error) {
	ctx = ensureContext(ctx)

	var (
		task      *models.Task
		assignees []string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deleted, ids, err := s.ledger.WithTx(tx).DeleteTask(ctx, taskID)
		if err != nil {
			return err
		}
		if _, err := s.notifications.WithTx(tx).MarkRelatedDeleted(ctx, deleted.ID); err != nil {
			return err
		}
		task, assignees = deleted, ids
		return nil
	})
	metrics.TaskOperations.WithLabelValues("delete", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}

	s.notify(ctx, SendInput{
		RecipientIDs:    assignees,
		Title:           "Task Deleted",
		Message:         fmt.Sprintf("The task %q was deleted by an admin.", task.Title),
		Type:            models.NotificationTaskDeleted,
		RelatedEntityID: task.ID,
	})
	return task, nil
}

// Submit records the assignee's submission and notifies every admin.
func (s *TaskLifecycleService) Submit(ctx context.Context, input SubmitTaskInput) (*models.Task, error) {
	ctx = ensureContext(ctx)

	var task *models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		submitted, err := s.ledger.WithTx(tx).RecordSubmission(ctx, input.TaskID, input.UserID, input.AttachmentRef)
		if err != nil {
			return err
		}
		task = submitted
		return nil
	})
	metrics.TaskOperations.WithLabelValues("submit", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}

	submitter := strings.TrimSpace(input.UserID)
	s.run(ctx, models.NotificationTaskSubmission, func(ctx context.Context) {
		admins, err := s.admins.AdminIDs(ctx)
		if err != nil {
			s.log.Warn("resolve admins failed", zap.String("task_id", task.ID), zap.Error(err))
			metrics.FanoutFailures.WithLabelValues(models.NotificationTaskSubmission).Inc()
			return
		}
		s.send(ctx, SendInput{
			RecipientIDs:    admins,
			Title:           "Task Submission",
			Message:         fmt.Sprintf("%s submitted solution for %q.", s.admins.DisplayName(ctx, submitter), task.Title),
			Type:            models.NotificationTaskSubmission,
			RelatedEntityID: task.ID,
			Data:            map[string]string{"submitted_by": submitter},
		})
	})
	return task, nil
}

// Get returns one task with its progress.
func (s *TaskLifecycleService) Get(ctx context.Context, taskID string) (*TaskWithProgress, error) {
	task, err := s.ledger.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return &TaskWithProgress{Task: *task, Progress: ComputeProgress(*task, s.timeNow())}, nil
}

// GetForUser returns one task as seen by an assignee. Other users' submissions are stripped.
func (s *TaskLifecycleService) GetForUser(ctx context.Context, taskID, userID string) (*MyTask, error) {
	task, err := s.ledger.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	assignment, ok := task.Assignee(userID)
	if !ok {
		return nil, ErrNotAssigned
	}

	view := AssignedTask{Task: *task, Assignment: assignment}
	view.Task.Submissions = []models.TaskSubmission{}
	if submission, ok := task.Submission(userID); ok {
		view.Submission = &submission
		view.Task.Submissions = append(view.Task.Submissions, submission)
	}

	return &MyTask{
		AssignedTask: view,
		Status:       AssignmentStatus(assignment, view.Submission != nil),
		Progress:     ComputeProgress(*task, s.timeNow()),
	}, nil
}

// ListAll returns every task annotated with progress.
func (s *TaskLifecycleService) ListAll(ctx context.Context) ([]TaskWithProgress, error) {
	tasks, err := s.ledger.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	now := s.timeNow()
	out := make([]TaskWithProgress, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, TaskWithProgress{Task: task, Progress: ComputeProgress(task, now)})
	}
	return out, nil
}

// ListForUser returns the caller's tasks annotated with their own status.
func (s *TaskLifecycleService) ListForUser(ctx context.Context, userID string) ([]MyTask, error) {
	views, err := s.ledger.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.timeNow()
	out := make([]MyTask, 0, len(views))
	for _, view := range views {
		out = append(out, MyTask{
			AssignedTask: view,
			Status:       AssignmentStatus(view.Assignment, view.Submission != nil),
			Progress:     ComputeProgress(view.Task, now),
		})
	}
	return out, nil
}

// Wait blocks until background notification work has drained.
func (s *TaskLifecycleService) Wait() {
	s.pending.Wait()
}

func (s *TaskLifecycleService) notify(ctx context.Context, input SendInput) {
	s.run(ctx, input.Type, func(ctx context.Context) {
		s.send(ctx, input)
	})
}

// run executes fn detached from the caller's cancellation, inline or in the background.
// A panic inside fn is logged and counted; the task operation has already committed.
func (s *TaskLifecycleService) run(ctx context.Context, notificationType string, fn func(context.Context)) {
	ctx = context.WithoutCancel(ctx)
	if !s.async {
		s.guard(ctx, notificationType, fn)
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.guard(ctx, notificationType, fn)
	}()
}

func (s *TaskLifecycleService) guard(ctx context.Context, notificationType string, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			metrics.FanoutFailures.WithLabelValues(notificationType).Inc()
			s.log.Error("notification fanout panicked",
				zap.String("type", notificationType),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()
	fn(ctx)
}

func (s *TaskLifecycleService) send(ctx context.Context, input SendInput) {
	result, err := s.notifier.Send(ctx, input)
	if err != nil {
		metrics.FanoutFailures.WithLabelValues(input.Type).Inc()
		s.log.Error("notification fanout failed",
			zap.String("type", input.Type),
			zap.String("task_id", input.RelatedEntityID),
			zap.Int("recipients", len(input.RecipientIDs)),
			zap.Error(err),
		)
		return
	}
	s.log.Debug("notification fanout complete",
		zap.String("type", input.Type),
		zap.String("task_id", input.RelatedEntityID),
		zap.Int("saved", result.Saved),
		zap.Int("pushed", result.Pushed),
		zap.Int("failed", result.Failed),
	)
}
