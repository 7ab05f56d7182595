package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/taskhub/internal/models"
)

func TestMergeAssigneesPreservesExistingState(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	completedAt := now.Add(-time.Hour)
	existing := []models.TaskAssignee{
		{TaskID: "t1", UserID: "u1", Position: 0, Completed: true, CompletedAt: &completedAt},
		{TaskID: "t1", UserID: "u2", Position: 1},
	}

	merged, added := mergeAssignees("t1", existing, []string{"u2", " u3 ", "u1", "u3", ""}, now)

	require.Equal(t, []string{"u3"}, added)
	require.Len(t, merged, 3)
	require.True(t, merged[0].Completed)
	require.Equal(t, &completedAt, merged[0].CompletedAt)
	require.Equal(t, "u3", merged[2].UserID)
	require.Equal(t, 2, merged[2].Position)
	require.False(t, merged[2].Completed)
	require.Equal(t, now, merged[2].AssignedAt)

	// input slice is not mutated
	require.Len(t, existing, 2)
}

func TestMergeAssigneesNoNewIDs(t *testing.T) {
	existing := []models.TaskAssignee{{UserID: "u1"}}
	merged, added := mergeAssignees("t1", existing, []string{"u1"}, time.Now())
	require.Empty(t, added)
	require.Len(t, merged, 1)
}

func TestCompleteAssigneeIsIdempotent(t *testing.T) {
	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	assignees := []models.TaskAssignee{{UserID: "u1"}, {UserID: "u2"}}

	found, changed := completeAssignee(assignees, "u1", first)
	require.True(t, found)
	require.True(t, changed)
	require.Equal(t, first, *assignees[0].CompletedAt)

	found, changed = completeAssignee(assignees, "u1", first.Add(time.Hour))
	require.True(t, found)
	require.False(t, changed)
	require.Equal(t, first, *assignees[0].CompletedAt)

	found, _ = completeAssignee(assignees, "u9", first)
	require.False(t, found)
}

func TestUpsertSubmissionKeepsAttachmentWhenNil(t *testing.T) {
	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ref := "uploads/report-v1.pdf"

	subs := upsertSubmission("t1", nil, "u1", &ref, first)
	require.Len(t, subs, 1)

	subs = upsertSubmission("t1", subs, "u1", nil, first.Add(time.Minute))
	require.Len(t, subs, 1)
	require.Equal(t, ref, *subs[0].AttachmentRef)
	require.Equal(t, first.Add(time.Minute), subs[0].SubmittedAt)

	next := "uploads/report-v2.pdf"
	subs = upsertSubmission("t1", subs, "u1", &next, first.Add(2*time.Minute))
	require.Equal(t, next, *subs[0].AttachmentRef)
}

func TestAllCompleted(t *testing.T) {
	require.False(t, allCompleted(nil))
	require.False(t, allCompleted([]models.TaskAssignee{{Completed: true}, {}}))
	require.True(t, allCompleted([]models.TaskAssignee{{Completed: true}, {Completed: true}}))
}
