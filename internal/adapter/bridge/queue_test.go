package bridge_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"whatstasker/internal/adapter/bridge"
)

func TestQueue_PendingDoesNotClear(t *testing.T) {
	q := bridge.NewQueue()
	id := q.Send("31612345678", "hello")
	require.NotEmpty(t, id)

	first := q.Pending()
	require.Len(t, first, 1)
	require.Equal(t, "31612345678@c.us", first[0].ChatID)
	require.Equal(t, "hello", first[0].Body)

	// Reading again returns the same message until it is acknowledged.
	second := q.Pending()
	require.Len(t, second, 1)
	require.Equal(t, first[0].ID, second[0].ID)
}

func TestQueue_AckRemovesOnlyNamedMessages(t *testing.T) {
	q := bridge.NewQueue()
	first := q.Send("31612345678@c.us", "one")
	second := q.Send("31612345678@c.us", "two")

	removed := q.Ack([]string{first, "unknown-id"})
	require.Equal(t, 1, removed)

	pending := q.Pending()
	require.Len(t, pending, 1)
	require.Equal(t, second, pending[0].ID)

	require.Zero(t, q.Ack([]string{first}))
	require.Zero(t, q.Ack(nil))
}

func TestQueue_PreservesOrder(t *testing.T) {
	q := bridge.NewQueue()
	ids := []string{q.Send("a@c.us", "1"), q.Send("a@c.us", "2"), q.Send("a@c.us", "3")}

	pending := q.Pending()
	require.Len(t, pending, 3)
	for i, msg := range pending {
		require.Equal(t, ids[i], msg.ID)
	}
}

func TestNormalizeChatID(t *testing.T) {
	require.Equal(t, "31612345678@c.us", bridge.NormalizeChatID("31612345678"))
	require.Equal(t, "31612345678@c.us", bridge.NormalizeChatID("+31612345678"))
	require.Equal(t, "31612345678@c.us", bridge.NormalizeChatID("31612345678@c.us"))
	require.Equal(t, "group@g.us", bridge.NormalizeChatID("group@g.us"))
}
