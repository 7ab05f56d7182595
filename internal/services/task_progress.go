package services

import (
	"math"
	"time"

	"github.com/charlesng35/taskhub/internal/models"
)

// Aggregate task statuses reported alongside progress.
const (
	TaskStatusUnassigned = "unassigned"
	TaskStatusNotStarted = "not_started"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
)

// TaskProgress summarises completion across a task's assignees.
type TaskProgress struct {
	Total     int    `json:"total_assignees"`
	Completed int    `json:"completed_count"`
	Percent   int    `json:"progress_percent"`
	Status    string `json:"status"`
	Overdue   bool   `json:"overdue"`
}

// ComputeProgress derives progress for task as of now.
func ComputeProgress(task models.Task, now time.Time) TaskProgress {
	progress := TaskProgress{Total: len(task.Assignees)}
	for _, assignee := range task.Assignees {
		if assignee.Completed {
			progress.Completed++
		}
	}

	if progress.Total > 0 {
		progress.Percent = int(math.Round(100 * float64(progress.Completed) / float64(progress.Total)))
	}

	switch {
	case progress.Total == 0:
		progress.Status = TaskStatusUnassigned
	case progress.Completed == 0:
		progress.Status = TaskStatusNotStarted
	case progress.Completed < progress.Total:
		progress.Status = TaskStatusInProgress
	default:
		progress.Status = TaskStatusCompleted
	}

	progress.Overdue = task.Deadline != nil && task.Deadline.Before(now) && progress.Completed < progress.Total
	return progress
}

// AssignmentStatus is the per-user view of a task.
func AssignmentStatus(assignee models.TaskAssignee, submitted bool) string {
	switch {
	case assignee.Completed:
		return TaskStatusCompleted
	case submitted:
		return TaskStatusInProgress
	default:
		return TaskStatusNotStarted
	}
}
