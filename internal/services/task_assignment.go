package services

import (
	"time"

	"github.com/charlesng35/taskhub/internal/models"
)

// mergeAssignees unions ids into existing. Existing records keep their
// completion state; the returned added slice holds the new ids in input order.
func mergeAssignees(taskID string, existing []models.TaskAssignee, ids []string, now time.Time) ([]models.TaskAssignee, []string) {
	merged := make([]models.TaskAssignee, len(existing))
	copy(merged, existing)

	present := make(map[string]struct{}, len(existing))
	next := 0
	for _, assignee := range existing {
		present[assignee.UserID] = struct{}{}
		if assignee.Position >= next {
			next = assignee.Position + 1
		}
	}

	var added []string
	for _, id := range normaliseIDs(ids) {
		if _, ok := present[id]; ok {
			continue
		}
		present[id] = struct{}{}
		merged = append(merged, models.TaskAssignee{
			TaskID:     taskID,
			UserID:     id,
			Position:   next,
			AssignedAt: now,
		})
		next++
		added = append(added, id)
	}
	return merged, added
}

// newAssignees builds the initial assignee set for a task.
func newAssignees(ids []string, now time.Time) []models.TaskAssignee {
	assignees, _ := mergeAssignees("", nil, ids, now)
	return assignees
}

// completeAssignee marks userID completed. CompletedAt is stamped only on the
// first transition; changed reports whether that transition happened.
func completeAssignee(assignees []models.TaskAssignee, userID string, now time.Time) (found, changed bool) {
	for i := range assignees {
		if assignees[i].UserID != userID {
			continue
		}
		if assignees[i].Completed {
			return true, false
		}
		completedAt := now
		assignees[i].Completed = true
		assignees[i].CompletedAt = &completedAt
		return true, true
	}
	return false, false
}

// upsertSubmission replaces the user's submission. A nil attachment keeps the previous reference.
func upsertSubmission(taskID string, submissions []models.TaskSubmission, userID string, attachmentRef *string, now time.Time) []models.TaskSubmission {
	for i := range submissions {
		if submissions[i].UserID != userID {
			continue
		}
		submissions[i].SubmittedAt = now
		if attachmentRef != nil {
			submissions[i].AttachmentRef = attachmentRef
		}
		return submissions
	}
	return append(submissions, models.TaskSubmission{
		TaskID:        taskID,
		UserID:        userID,
		AttachmentRef: attachmentRef,
		SubmittedAt:   now,
	})
}

// allCompleted reports whether the set is non-empty and every assignee has completed.
func allCompleted(assignees []models.TaskAssignee) bool {
	if len(assignees) == 0 {
		return false
	}
	for _, assignee := range assignees {
		if !assignee.Completed {
			return false
		}
	}
	return true
}
