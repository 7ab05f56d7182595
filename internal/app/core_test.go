package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/taskhub/internal/database/testutil"
)

func TestNewCoreRealtimeProvider(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	core, err := NewCore(db, &Config{Push: PushConfig{Provider: PushProviderRealtime}})
	require.NoError(t, err)
	require.NotNil(t, core.Hub)
	require.NotNil(t, core.Tasks)
	require.NotNil(t, core.Fanout)
	require.NotNil(t, core.Devices)
	require.NotNil(t, core.Directory)
	core.Wait()
}

func TestNewCoreWebhookAndNoneProviders(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	core, err := NewCore(db, &Config{Push: PushConfig{
		Provider: PushProviderWebhook,
		Webhook:  WebhookConfig{URL: "http://127.0.0.1:1/push"},
	}})
	require.NoError(t, err)
	require.Nil(t, core.Hub)

	core, err = NewCore(db, &Config{Push: PushConfig{Provider: PushProviderNone}})
	require.NoError(t, err)
	require.Nil(t, core.Hub)
}

func TestNewCoreRejectsBadInput(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	_, err := NewCore(nil, &Config{})
	require.Error(t, err)

	_, err = NewCore(db, nil)
	require.Error(t, err)

	_, err = NewCore(db, &Config{Push: PushConfig{Provider: PushProviderWebhook}})
	require.Error(t, err)

	_, err = NewCore(db, &Config{Push: PushConfig{Provider: "sms"}})
	require.Error(t, err)
}
