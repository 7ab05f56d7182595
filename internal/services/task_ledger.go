package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/taskhub/internal/models"
)

// CreateTaskInput describes a new task.
type CreateTaskInput struct {
	Title         string
	Description   string
	Deadline      *time.Time
	AttachmentRef *string
	CreatedBy     string
	AssigneeIDs   []string
}

// TaskPatch carries scalar task updates. Nil fields are left untouched.
type TaskPatch struct {
	Title         *string
	Description   *string
	Deadline      *time.Time
	ClearDeadline bool
	AttachmentRef *string
}

// AssignedTask is a task as seen by one of its assignees.
type AssignedTask struct {
	Task       models.Task            `json:"task"`
	Assignment models.TaskAssignee    `json:"assignment"`
	Submission *models.TaskSubmission `json:"submission,omitempty"`
}

// TaskLedger owns the persisted assignee state machine of every task.
type TaskLedger struct {
	db      *gorm.DB
	timeNow func() time.Time
}

// TaskLedgerOption customises the ledger.
type TaskLedgerOption func(*TaskLedger)

// WithLedgerClock overrides the clock used for timestamps (test helper).
func WithLedgerClock(clock func() time.Time) TaskLedgerOption {
	return func(l *TaskLedger) {
		if clock != nil {
			l.timeNow = clock
		}
	}
}

// NewTaskLedger constructs a TaskLedger.
func NewTaskLedger(db *gorm.DB, opts ...TaskLedgerOption) (*TaskLedger, error) {
	if db == nil {
		return nil, errors.New("task ledger: db is required")
	}
	l := &TaskLedger{db: db, timeNow: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// WithTx returns a ledger bound to an open transaction.
func (l *TaskLedger) WithTx(tx *gorm.DB) *TaskLedger {
	cpy := *l
	cpy.db = tx
	return &cpy
}

// CreateTask persists a task with its initial assignees.
func (l *TaskLedger) CreateTask(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	ctx = ensureContext(ctx)
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrInvalidTaskSpec.WithMessage("Task title is required")
	}

	now := l.now()
	task := models.Task{
		Title:         title,
		Description:   strings.TrimSpace(input.Description),
		Deadline:      input.Deadline,
		AttachmentRef: input.AttachmentRef,
		CreatedBy:     strings.TrimSpace(input.CreatedBy),
		Assignees:     newAssignees(input.AssigneeIDs, now),
	}

	if err := l.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, fmt.Errorf("task ledger: create task: %w", err)
	}
	if task.Submissions == nil {
		task.Submissions = []models.TaskSubmission{}
	}
	return &task, nil
}

// MergeAssignees adds ids missing from the task and returns the ids that were added, in input order.
func (l *TaskLedger) MergeAssignees(ctx context.Context, taskID string, ids []string) (*models.Task, []string, error) {
	ctx = ensureContext(ctx)
	var (
		task  *models.Task
		added []string
	)
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := loadTaskForUpdate(tx, taskID)
		if err != nil {
			return err
		}

		var merged []models.TaskAssignee
		merged, added = mergeAssignees(locked.ID, locked.Assignees, ids, l.now())
		if len(added) > 0 {
			fresh := merged[len(locked.Assignees):]
			if err := tx.Create(&fresh).Error; err != nil {
				return fmt.Errorf("task ledger: add assignees: %w", err)
			}
		}
		locked.Assignees = merged

		if err := syncCompleted(tx, locked); err != nil {
			return err
		}
		task = locked
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return task, added, nil
}

// ApplyPatch updates scalar task fields.
func (l *TaskLedger) ApplyPatch(ctx context.Context, taskID string, patch TaskPatch) (*models.Task, error) {
	ctx = ensureContext(ctx)
	updates := map[string]any{}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, ErrInvalidTaskSpec.WithMessage("Task title cannot be empty")
		}
		updates["title"] = title
	}
	if patch.Description != nil {
		updates["description"] = strings.TrimSpace(*patch.Description)
	}
	switch {
	case patch.ClearDeadline:
		updates["deadline"] = nil
	case patch.Deadline != nil:
		updates["deadline"] = *patch.Deadline
	}
	if patch.AttachmentRef != nil {
		updates["attachment_ref"] = *patch.AttachmentRef
	}

	var task *models.Task
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := loadTaskForUpdate(tx, taskID)
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			updates["updated_at"] = l.now()
			if err := tx.Model(&models.Task{}).Where("id = ?", locked.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("task ledger: update task: %w", err)
			}
		}
		task, err = loadTask(tx, locked.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// RecordSubmission stores the user's submission and marks their assignment completed.
func (l *TaskLedger) RecordSubmission(ctx context.Context, taskID, userID string, attachmentRef *string) (*models.Task, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)

	var task *models.Task
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := loadTaskForUpdate(tx, taskID)
		if err != nil {
			return err
		}

		now := l.now()
		found, changed := completeAssignee(locked.Assignees, userID, now)
		if !found {
			return ErrNotAssigned
		}

		locked.Submissions = upsertSubmission(locked.ID, locked.Submissions, userID, attachmentRef, now)
		submission, _ := locked.Submission(userID)
		upsert := clause.OnConflict{
			Columns:   []clause.Column{{Name: "task_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"submitted_at", "attachment_ref"}),
		}
		if err := tx.Clauses(upsert).Create(&submission).Error; err != nil {
			return fmt.Errorf("task ledger: save submission: %w", err)
		}

		if changed {
			assignee, _ := locked.Assignee(userID)
			if err := tx.Model(&models.TaskAssignee{}).
				Where("task_id = ? AND user_id = ? AND completed = ?", locked.ID, userID, false).
				Updates(map[string]any{
					"completed":    true,
					"completed_at": assignee.CompletedAt,
				}).Error; err != nil {
				return fmt.Errorf("task ledger: complete assignee: %w", err)
			}
		}

		if err := syncCompleted(tx, locked); err != nil {
			return err
		}
		task = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes the task with its assignees and submissions, returning the
// task and the assignee ids captured before removal.
func (l *TaskLedger) DeleteTask(ctx context.Context, taskID string) (*models.Task, []string, error) {
	ctx = ensureContext(ctx)
	var task *models.Task
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := loadTaskForUpdate(tx, taskID)
		if err != nil {
			return err
		}

		if err := tx.Where("task_id = ?", locked.ID).Delete(&models.TaskSubmission{}).Error; err != nil {
			return fmt.Errorf("task ledger: delete submissions: %w", err)
		}
		if err := tx.Where("task_id = ?", locked.ID).Delete(&models.TaskAssignee{}).Error; err != nil {
			return fmt.Errorf("task ledger: delete assignees: %w", err)
		}
		if err := tx.Delete(&models.Task{}, "id = ?", locked.ID).Error; err != nil {
			return fmt.Errorf("task ledger: delete task: %w", err)
		}
		task = locked
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return task, task.AssigneeIDs(), nil
}

// Get loads a task with its assignees and submissions.
func (l *TaskLedger) Get(ctx context.Context, taskID string) (*models.Task, error) {
	return loadTask(l.db.WithContext(ensureContext(ctx)), taskID)
}

// ListAll returns every task, newest first.
func (l *TaskLedger) ListAll(ctx context.Context) ([]models.Task, error) {
	ctx = ensureContext(ctx)
	var tasks []models.Task
	if err := withTaskPreloads(l.db.WithContext(ctx)).
		Order("created_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("task ledger: list tasks: %w", err)
	}
	return tasks, nil
}

// ListForUser returns the tasks assigned to userID. Submissions of other users are stripped.
func (l *TaskLedger) ListForUser(ctx context.Context, userID string) ([]AssignedTask, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return []AssignedTask{}, nil
	}

	var tasks []models.Task
	if err := withTaskPreloads(l.db.WithContext(ctx)).
		Where("id IN (?)", l.db.Model(&models.TaskAssignee{}).Select("task_id").Where("user_id = ?", userID)).
		Order("created_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("task ledger: list tasks for user: %w", err)
	}

	views := make([]AssignedTask, 0, len(tasks))
	for _, task := range tasks {
		assignment, ok := task.Assignee(userID)
		if !ok {
			continue
		}
		view := AssignedTask{Assignment: assignment}
		own, submitted := task.Submission(userID)
		task.Submissions = []models.TaskSubmission{}
		if submitted {
			task.Submissions = append(task.Submissions, own)
			view.Submission = &own
		}
		view.Task = task
		views = append(views, view)
	}
	return views, nil
}

func (l *TaskLedger) now() time.Time {
	return l.timeNow().UTC()
}

func withTaskPreloads(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Assignees", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Submissions", func(db *gorm.DB) *gorm.DB {
			return db.Order("submitted_at ASC")
		})
}

func loadTask(db *gorm.DB, taskID string) (*models.Task, error) {
	taskID = strings.TrimSpace(taskID)
	if !isRecordID(taskID) {
		return nil, ErrTaskNotFound
	}

	var task models.Task
	if err := withTaskPreloads(db).First(&task, "id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("task ledger: load task: %w", err)
	}
	return &task, nil
}

// loadTaskForUpdate locks the task row for the rest of tx and loads the aggregate.
func loadTaskForUpdate(tx *gorm.DB, taskID string) (*models.Task, error) {
	taskID = strings.TrimSpace(taskID)
	if !isRecordID(taskID) {
		return nil, ErrTaskNotFound
	}

	var row models.Task
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&row, "id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("task ledger: lock task: %w", err)
	}
	return loadTask(tx, taskID)
}

func syncCompleted(tx *gorm.DB, task *models.Task) error {
	completed := allCompleted(task.Assignees)
	if completed == task.Completed {
		return nil
	}
	if err := tx.Model(&models.Task{}).
		Where("id = ?", task.ID).
		Update("completed", completed).Error; err != nil {
		return fmt.Errorf("task ledger: update completion: %w", err)
	}
	task.Completed = completed
	return nil
}
