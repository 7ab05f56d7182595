package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/taskhub/internal/handlers/testutil"
	"github.com/charlesng35/taskhub/internal/models"
	"github.com/charlesng35/taskhub/internal/services"
)

func TestCreateAndSendNotification(t *testing.T) {
	env := testutil.NewEnv(t)

	body := map[string]any{
		"user_ids": []string{testutil.Alice.ID, testutil.Bob.ID, testutil.Alice.ID},
		"title":    "Maintenance",
		"message":  "The office is closed on Friday.",
		"type":     "ANNOUNCEMENT",
		"data":     map[string]string{"priority": "low"},
	}

	resp := env.Request(http.MethodPost, "/api/notifications", body, env.Token(testutil.Alice))
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.Request(http.MethodPost, "/api/notifications", body, env.Token(testutil.Admin))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var result services.FanoutResult
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &result)
	require.Equal(t, services.FanoutResult{Saved: 2}, result)

	items, _ := notificationsFor(t, env, testutil.Bob)
	require.Len(t, items, 1)
	require.Equal(t, "ANNOUNCEMENT", items[0].Type)
	require.JSONEq(t, `{"priority":"low"}`, string(items[0].Data))

	resp = env.Request(http.MethodPost, "/api/notifications", map[string]any{"title": "x", "message": "y", "type": "z"}, env.Token(testutil.Admin))
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestMarkReadIsScopedToOwner(t *testing.T) {
	env := testutil.NewEnv(t)
	createTask(t, env, map[string]any{"title": "Onboarding", "assigned_to": []string{testutil.Alice.ID, testutil.Bob.ID}})

	items, decoded := notificationsFor(t, env, testutil.Alice)
	require.Len(t, items, 1)
	require.Equal(t, int64(1), decoded.Meta.UnreadCount)
	id := items[0].ID

	resp := env.Request(http.MethodPatch, "/api/notifications/"+id+"/read", nil, env.Token(testutil.Bob))
	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Equal(t, "NOTIFICATION_NOT_FOUND", testutil.DecodeResponse(t, resp).Error.Code)

	resp = env.Request(http.MethodPatch, "/api/notifications/"+id+"/read", nil, env.Token(testutil.Alice))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var read models.Notification
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &read)
	require.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)

	_, decoded = notificationsFor(t, env, testutil.Alice)
	require.Zero(t, decoded.Meta.UnreadCount)

	resp = env.Request(http.MethodPatch, "/api/notifications/mark-all-read", nil, env.Token(testutil.Bob))
	require.Equal(t, http.StatusOK, resp.Code)
	var counts map[string]int64
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &counts)
	require.Equal(t, int64(1), counts["updated"])
}

func TestListNotificationsHonoursLimit(t *testing.T) {
	env := testutil.NewEnv(t)
	for _, title := range []string{"one", "two", "three"} {
		createTask(t, env, map[string]any{"title": title, "assigned_to": []string{testutil.Alice.ID}})
	}

	resp := env.Request(http.MethodGet, "/api/notifications?limit=2", nil, env.Token(testutil.Alice))
	require.Equal(t, http.StatusOK, resp.Code)
	decoded := testutil.DecodeResponse(t, resp)
	var items []models.Notification
	testutil.DecodeInto(t, decoded.Data, &items)
	require.Len(t, items, 2)
	require.Equal(t, 2, decoded.Meta.Limit)
	require.Equal(t, int64(3), decoded.Meta.UnreadCount)
}

func TestRelatedSweepAndPurge(t *testing.T) {
	env := testutil.NewEnv(t)
	adminToken := env.Token(testutil.Admin)
	task := createTask(t, env, map[string]any{"title": "Audit", "assigned_to": []string{testutil.Alice.ID, testutil.Bob.ID}})

	path := "/api/notifications/related/" + task.ID
	resp := env.Request(http.MethodPatch, path+"/mark-deleted", nil, env.Token(testutil.Bob))
	require.Equal(t, http.StatusForbidden, resp.Code)

	var counts map[string]int64

	resp = env.Request(http.MethodPatch, path+"/mark-deleted", nil, adminToken)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &counts)
	require.Equal(t, int64(2), counts["updated"])

	// already tombstoned
	resp = env.Request(http.MethodPatch, path+"/mark-deleted", nil, adminToken)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &counts)
	require.Equal(t, int64(0), counts["updated"])

	resp = env.Request(http.MethodDelete, path, nil, adminToken)
	require.Equal(t, http.StatusOK, resp.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &counts)
	require.Equal(t, int64(2), counts["deleted"])

	items, _ := notificationsFor(t, env, testutil.Alice)
	require.Empty(t, items)
}
