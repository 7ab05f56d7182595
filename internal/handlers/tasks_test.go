package handlers_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/taskhub/internal/handlers/testutil"
	"github.com/charlesng35/taskhub/internal/models"
	"github.com/charlesng35/taskhub/internal/services"
)

func createTask(t *testing.T, env *testutil.Env, body map[string]any) models.Task {
	t.Helper()
	resp := env.Request(http.MethodPost, "/api/tasks", body, env.Token(testutil.Admin))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var task models.Task
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &task)
	require.NotEmpty(t, task.ID)
	return task
}

func notificationsFor(t *testing.T, env *testutil.Env, user models.User) ([]models.Notification, testutil.APIResponse) {
	t.Helper()
	resp := env.Request(http.MethodGet, "/api/notifications", nil, env.Token(user))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	decoded := testutil.DecodeResponse(t, resp)
	var items []models.Notification
	testutil.DecodeInto(t, decoded.Data, &items)
	return items, decoded
}

func TestTaskRoutesEnforceRoles(t *testing.T) {
	env := testutil.NewEnv(t)
	userToken := env.Token(testutil.Alice)

	resp := env.Request(http.MethodPost, "/api/tasks", map[string]any{"title": "Nope"}, userToken)
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.Request(http.MethodGet, "/api/tasks", nil, userToken)
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.Request(http.MethodDelete, "/api/tasks/any", nil, userToken)
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.Request(http.MethodGet, "/api/tasks/me", nil, userToken)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = env.Request(http.MethodGet, "/api/tasks/me", nil, "not-a-token")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestCreateTaskValidation(t *testing.T) {
	env := testutil.NewEnv(t)
	adminToken := env.Token(testutil.Admin)

	resp := env.Request(http.MethodPost, "/api/tasks", map[string]any{"title": "   "}, adminToken)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	decoded := testutil.DecodeResponse(t, resp)
	require.False(t, decoded.Success)
	require.Contains(t, decoded.Error.Message, "title must not be blank")

	resp = env.Request(http.MethodPost, "/api/tasks", map[string]any{"title": "ok", "assigned_to": []string{""}}, adminToken)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	env := testutil.NewEnv(t)
	adminToken := env.Token(testutil.Admin)

	task := createTask(t, env, map[string]any{
		"title":       "Quarterly report",
		"description": "Summarise Q3",
		"assigned_to": []string{testutil.Alice.ID, testutil.Bob.ID, testutil.Alice.ID},
	})
	require.Len(t, task.Assignees, 2)

	items, decoded := notificationsFor(t, env, testutil.Alice)
	require.Len(t, items, 1)
	require.Equal(t, models.NotificationTaskCreated, items[0].Type)
	require.Equal(t, int64(1), decoded.Meta.UnreadCount)

	// an unassigned user cannot read the task
	carol := models.User{ID: "user-carol", Role: models.RoleUser}
	resp := env.Request(http.MethodGet, "/api/tasks/"+task.ID, nil, env.Token(carol))
	require.Equal(t, http.StatusForbidden, resp.Code)
	require.Equal(t, "TASK_NOT_ASSIGNED", testutil.DecodeResponse(t, resp).Error.Code)

	resp = env.Request(http.MethodPost, "/api/tasks/"+task.ID+"/submit", map[string]any{"attachment_ref": "uploads/alice.pdf"}, env.Token(testutil.Alice))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	adminItems, _ := notificationsFor(t, env, testutil.Admin)
	require.Len(t, adminItems, 1)
	require.Equal(t, models.NotificationTaskSubmission, adminItems[0].Type)
	require.Contains(t, adminItems[0].Message, "Alice submitted solution")

	resp = env.Request(http.MethodGet, "/api/tasks/"+task.ID, nil, env.Token(testutil.Bob))
	require.Equal(t, http.StatusOK, resp.Code)
	var bobView services.MyTask
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &bobView)
	require.Equal(t, services.TaskStatusNotStarted, bobView.Status)
	require.Empty(t, bobView.Task.Submissions)
	require.Equal(t, 50, bobView.Progress.Percent)

	// empty body submits without an attachment
	resp = env.Request(http.MethodPost, "/api/tasks/"+task.ID+"/submit", nil, env.Token(testutil.Bob))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var completed models.Task
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &completed)
	require.True(t, completed.Completed)

	resp = env.Request(http.MethodGet, "/api/tasks", nil, adminToken)
	require.Equal(t, http.StatusOK, resp.Code)
	listDecoded := testutil.DecodeResponse(t, resp)
	var overview []services.TaskWithProgress
	testutil.DecodeInto(t, listDecoded.Data, &overview)
	require.Len(t, overview, 1)
	require.Equal(t, 1, listDecoded.Meta.Total)
	require.Equal(t, services.TaskStatusCompleted, overview[0].Progress.Status)
	require.Equal(t, 100, overview[0].Progress.Percent)

	resp = env.Request(http.MethodGet, "/api/tasks/me", nil, env.Token(testutil.Alice))
	require.Equal(t, http.StatusOK, resp.Code)
	var mine []services.MyTask
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &mine)
	require.Len(t, mine, 1)
	require.Equal(t, services.TaskStatusCompleted, mine[0].Status)
	require.NotNil(t, mine[0].Submission)
}

func TestUpdateTaskNotifiesOnlyNewAssignees(t *testing.T) {
	env := testutil.NewEnv(t)
	adminToken := env.Token(testutil.Admin)

	task := createTask(t, env, map[string]any{"title": "Review", "assigned_to": []string{testutil.Alice.ID}})

	resp := env.Request(http.MethodPut, "/api/tasks/"+task.ID, map[string]any{
		"title":       "Review v2",
		"assigned_to": []string{testutil.Alice.ID, testutil.Bob.ID},
	}, adminToken)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var updated models.Task
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &updated)
	require.Equal(t, "Review v2", updated.Title)
	require.Equal(t, []string{testutil.Alice.ID, testutil.Bob.ID}, updated.AssigneeIDs())

	aliceItems, _ := notificationsFor(t, env, testutil.Alice)
	require.Len(t, aliceItems, 1)

	bobItems, _ := notificationsFor(t, env, testutil.Bob)
	require.Len(t, bobItems, 1)
	require.Equal(t, models.NotificationTaskAssigned, bobItems[0].Type)

	resp = env.Request(http.MethodPut, "/api/tasks/missing", map[string]any{"title": "x"}, adminToken)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDeleteTaskTombstonesNotifications(t *testing.T) {
	env := testutil.NewEnv(t)
	adminToken := env.Token(testutil.Admin)

	task := createTask(t, env, map[string]any{"title": "Cleanup", "assigned_to": []string{testutil.Alice.ID}})

	resp := env.Request(http.MethodDelete, "/api/tasks/"+task.ID, nil, adminToken)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = env.Request(http.MethodGet, "/api/tasks/"+task.ID, nil, adminToken)
	require.Equal(t, http.StatusNotFound, resp.Code)

	items, _ := notificationsFor(t, env, testutil.Alice)
	require.Len(t, items, 2)
	types := make(map[string]models.Notification, len(items))
	for _, item := range items {
		types[item.Type] = item
	}
	require.Contains(t, types, models.NotificationTaskDeleted)
	created := types[models.NotificationTaskCreated]
	require.False(t, created.RelatedExists)
	require.NotNil(t, created.RelatedDeletedAt)

	resp = env.Request(http.MethodDelete, "/api/tasks/"+task.ID, nil, adminToken)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestSubmitAcceptsChunkedEmptyBody(t *testing.T) {
	env := testutil.NewEnv(t)
	task := createTask(t, env, map[string]any{"title": "Chunked", "assigned_to": []string{testutil.Alice.ID, testutil.Bob.ID}})

	req, err := http.NewRequest(http.MethodPost, "/api/tasks/"+task.ID+"/submit", io.NopCloser(strings.NewReader("")))
	require.NoError(t, err)
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+env.Token(testutil.Alice))

	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	req, err = http.NewRequest(http.MethodPost, "/api/tasks/"+task.ID+"/submit", strings.NewReader("{not json"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+env.Token(testutil.Bob))

	w = httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	env := testutil.NewEnv(t)
	adminToken := env.Token(testutil.Admin)

	resp := env.Request(http.MethodGet, "/api/tasks/not-a-uuid", nil, adminToken)
	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Equal(t, "TASK_NOT_FOUND", testutil.DecodeResponse(t, resp).Error.Code)

	resp = env.Request(http.MethodDelete, "/api/tasks/not-a-uuid", nil, adminToken)
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = env.Request(http.MethodPatch, "/api/notifications/xyz/read", nil, env.Token(testutil.Alice))
	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Equal(t, "NOTIFICATION_NOT_FOUND", testutil.DecodeResponse(t, resp).Error.Code)
}
