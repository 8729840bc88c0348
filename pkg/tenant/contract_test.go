package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LucasEdu07/friday-agents/pkg/keys"
)

// exerciseStore runs the shared directory contract against a database
// backed directory and its key admin store.
func exerciseStore(t *testing.T, dir Directory, admin keys.Admin, setStatus func(id, status string)) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, admin.AddTenant(ctx, "1", "Dra. Camila"))
	require.NoError(t, admin.AddTenant(ctx, "2", "Oficina do Zé"))
	require.NoError(t, admin.AddTenant(ctx, "3", "Squad Inc"))

	camila, err := admin.Create(ctx, "1", "primary")
	require.NoError(t, err)
	ze, err := admin.Create(ctx, "2", "primary")
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		id, err := dir.Resolve(ctx, camila.Key)
		require.NoError(t, err)
		require.NotNil(t, id)
		assert.Equal(t, "1", id.ID)
		assert.Equal(t, "Dra. Camila", id.DisplayName)
		assert.Equal(t, keys.Fingerprint(camila.Key), id.KeyFingerprint)
		assert.Equal(t, StatusActive, id.Status)
	})

	t.Run("unknown key", func(t *testing.T) {
		id, err := dir.Resolve(ctx, "not-a-key")
		require.NoError(t, err)
		assert.Nil(t, id)
	})

	t.Run("list only tenants with live keys", func(t *testing.T) {
		all, err := dir.ListAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []Summary{{"1", "Dra. Camila"}, {"2", "Oficina do Zé"}}, all)
	})

	t.Run("inactive tenant is returned with its status", func(t *testing.T) {
		setStatus("2", "inactive")
		id, err := dir.Resolve(ctx, ze.Key)
		require.NoError(t, err)
		require.NotNil(t, id)
		assert.False(t, id.Active())
		assert.Equal(t, OutcomeNotFound, Classify(id, err))
		setStatus("2", "active")
	})

	t.Run("revoked key", func(t *testing.T) {
		n, err := admin.Revoke(ctx, "2", "primary")
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		id, err := dir.Resolve(ctx, ze.Key)
		require.NoError(t, err)
		assert.Nil(t, id)

		all, err := dir.ListAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []Summary{{"1", "Dra. Camila"}}, all)
	})

	t.Run("rotation", func(t *testing.T) {
		next, err := admin.Rotate(ctx, "1", "primary", "secondary")
		require.NoError(t, err)

		id, err := dir.Resolve(ctx, camila.Key)
		require.NoError(t, err)
		assert.Nil(t, id, "previous key must stop resolving")

		id, err = dir.Resolve(ctx, next.Key)
		require.NoError(t, err)
		require.NotNil(t, id)
		assert.Equal(t, "1", id.ID)
	})
}
