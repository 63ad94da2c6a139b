// Package storetest holds the behaviour every store backend must share.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younglifestyle/conflate4go/form"
	"github.com/younglifestyle/conflate4go/store"
)

// Run exercises a fresh store returned by open. open is called once per
// subtest and may be called again with the same path to check durability.
func Run(t *testing.T, open func(t *testing.T, path string) store.Store, newPath func(t *testing.T) string) {
	t.Run("ConfigNotFound", func(t *testing.T) {
		s := open(t, newPath(t))
		_, err := s.LoadConfig(context.Background())
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ConfigRoundTrip", func(t *testing.T) {
		path := newPath(t)
		s := open(t, path)
		conf := form.FromPairs(
			form.KeyValueList{Key: "servers", Values: []string{"cache01:11211", "cache02:11211"}},
			form.KeyValueList{Key: "bucket", Values: []string{"default"}},
			form.KeyValueList{Key: "empty", Values: []string{}},
		)
		require.NoError(t, s.SaveConfig(context.Background(), conf))

		replaced := form.FromPairs(form.KeyValueList{Key: "servers", Values: []string{"cache03:11211"}})
		require.NoError(t, s.SaveConfig(context.Background(), replaced))
		require.NoError(t, s.SaveConfig(context.Background(), conf))
		require.NoError(t, s.Close())

		reopened := open(t, path)
		loaded, err := reopened.LoadConfig(context.Background())
		require.NoError(t, err)
		assert.Equal(t, conf.Pairs(), loaded.Pairs())
	})

	t.Run("EmptyConfigRoundTrip", func(t *testing.T) {
		path := newPath(t)
		s := open(t, path)
		ctx := context.Background()
		require.NoError(t, s.SaveConfig(ctx, form.FromPairs(form.KeyValueList{Key: "servers", Values: []string{"a:1"}})))
		require.NoError(t, s.SaveConfig(ctx, form.New()))
		require.NoError(t, s.Close())

		reopened := open(t, path)
		loaded, err := reopened.LoadConfig(ctx)
		require.NoError(t, err, "a saved empty form must not read as missing")
		assert.Equal(t, 0, loaded.Len())
	})

	t.Run("PrivateValues", func(t *testing.T) {
		path := newPath(t)
		s := open(t, path)
		ctx := context.Background()

		_, err := s.GetPrivate(ctx, "color")
		assert.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, s.SetPrivate(ctx, "color", "blue"))
		require.NoError(t, s.SetPrivate(ctx, "color", "green"))
		require.NoError(t, s.SetPrivate(ctx, store.KeyStoredJID, "agent@example.com/res"))
		require.NoError(t, s.Close())

		s = open(t, path)
		value, err := s.GetPrivate(ctx, "color")
		require.NoError(t, err)
		assert.Equal(t, "green", value)

		require.NoError(t, s.DeletePrivate(ctx, "color"))
		require.NoError(t, s.DeletePrivate(ctx, "color"))
		_, err = s.GetPrivate(ctx, "color")
		assert.ErrorIs(t, err, store.ErrNotFound)

		jid, err := s.GetPrivate(ctx, store.KeyStoredJID)
		require.NoError(t, err)
		assert.Equal(t, "agent@example.com/res", jid)
	})

	t.Run("RejectsEmptyKey", func(t *testing.T) {
		s := open(t, newPath(t))
		assert.Error(t, s.SetPrivate(context.Background(), " ", "v"))
	})

	t.Run("HonoursCancelledContext", func(t *testing.T) {
		s := open(t, newPath(t))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, s.SetPrivate(ctx, "k", "v"), context.Canceled)
	})
}
