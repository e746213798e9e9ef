package fcm

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/angelmondragon/tablestars-backend/pkg/config"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeMessaging struct {
	sent []*messaging.Message
	err  error
}

func (f *fakeMessaging) Send(ctx context.Context, m *messaging.Message) (string, error) {
	f.sent = append(f.sent, m)
	if f.err != nil {
		return "", f.err
	}
	return "projects/x/messages/1", nil
}

func TestClientSendBuildsMessage(t *testing.T) {
	fake := &fakeMessaging{}
	client := &Client{messaging: fake}

	err := client.Send(context.Background(), Push{Token: "tok-1", Title: "Stars earned", Body: "+10", Data: map[string]string{"type": "stars_earned"}})
	require.NoError(t, err)
	require.Len(t, fake.sent, 1)
	require.Equal(t, "tok-1", fake.sent[0].Token)
	require.Equal(t, "Stars earned", fake.sent[0].Notification.Title)
	require.Equal(t, "stars_earned", fake.sent[0].Data["type"])
	require.Equal(t, "high", fake.sent[0].Android.Priority)
}

func TestClientSendWrapsErrors(t *testing.T) {
	client := &Client{messaging: &fakeMessaging{err: errors.New("boom")}}
	err := client.Send(context.Background(), Push{Token: "tok"})
	require.ErrorContains(t, err, "boom")
	require.NotErrorIs(t, err, ErrTokenUnregistered)

	require.Error(t, client.Send(context.Background(), Push{}))
}

func TestNewDisabledReturnsNop(t *testing.T) {
	sender, err := New(context.Background(), config.FCMConfig{Enabled: false}, nil)
	require.NoError(t, err)
	require.IsType(t, NopSender{}, sender)
	require.NoError(t, sender.Send(context.Background(), Push{Token: "x"}))
}

func TestStringData(t *testing.T) {
	id := uuid.New()
	out := StringData(map[string]any{
		"restaurantId": id,
		"amount":       decimal.RequireFromString("12.50"),
		"stars":        10,
		"group":        true,
		"skip":         nil,
		"legs":         []string{"a", "b"},
	})
	require.Equal(t, id.String(), out["restaurantId"])
	require.Equal(t, "12.5", out["amount"])
	require.Equal(t, "10", out["stars"])
	require.Equal(t, "true", out["group"])
	require.Equal(t, `["a","b"]`, out["legs"])
	_, ok := out["skip"]
	require.False(t, ok)
}
