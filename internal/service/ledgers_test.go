package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockdrive/internal/domain"
)

func TestSetLedgerShare(t *testing.T) {
	ctx := context.Background()

	t.Run("adds viewers and editors", func(t *testing.T) {
		env := newTestEnv(t)
		res := env.addResource(t, domain.Resource{OwnerID: "u1", ObjectType: domain.ObjectTypeFolder, Name: "docs"})

		result, err := env.ledgers.For(res.ResourceType).Share(ctx, res, []string{"u2", "u3"}, domain.ShareModeView)
		require.NoError(t, err)

		assert.ElementsMatch(t, []string{"u2", "u3"}, result.ChangedCollaborators)
		assert.ElementsMatch(t, []string{"u2", "u3"}, result.AllCollaborators)

		stored, err := env.resources.GetByID(ctx, res.ObjectID)
		require.NoError(t, err)
		assert.Empty(t, stored.Editors)
		assert.ElementsMatch(t, []string{"u2", "u3"}, []string(stored.Viewers))
	})

	t.Run("owner is never added to collaborator sets", func(t *testing.T) {
		env := newTestEnv(t)
		res := env.addResource(t, domain.Resource{OwnerID: "u1", ObjectType: domain.ObjectTypeFolder, Name: "docs"})

		result, err := env.ledgers.For(res.ResourceType).Share(ctx, res, []string{"u1", "u2"}, domain.ShareModeEdit)
		require.NoError(t, err)

		assert.ElementsMatch(t, []string{"u2"}, result.ChangedCollaborators)
		assert.NotContains(t, result.AllCollaborators, "u1")
		assert.False(t, res.IsEditor("u1"))
		assert.False(t, res.IsViewer("u1"))
	})

	t.Run("upgrade from viewer to editor moves between sets", func(t *testing.T) {
		env := newTestEnv(t)
		res := env.addResource(t, domain.Resource{OwnerID: "u1", Name: "docs", Viewers: []string{"u2"}})

		result, err := env.ledgers.For(res.ResourceType).Share(ctx, res, []string{"u2"}, domain.ShareModeEdit)
		require.NoError(t, err)

		assert.ElementsMatch(t, []string{"u2"}, result.ChangedCollaborators)
		assert.True(t, res.IsEditor("u2"))
		assert.False(t, res.IsViewer("u2"))
	})

	t.Run("repeated share with same mode changes nothing", func(t *testing.T) {
		env := newTestEnv(t)
		res := env.addResource(t, domain.Resource{OwnerID: "u1", Name: "docs", Editors: []string{"u2"}})

		result, err := env.ledgers.For(res.ResourceType).Share(ctx, res, []string{"u2"}, domain.ShareModeEdit)
		require.NoError(t, err)

		assert.Empty(t, result.ChangedCollaborators)
		assert.ElementsMatch(t, []string{"u2"}, result.AllCollaborators)
	})

	t.Run("opt-out list is not the ledger's concern", func(t *testing.T) {
		env := newTestEnv(t)
		res := env.addResource(t, domain.Resource{OwnerID: "u1", Name: "docs", UnsharedMembers: []string{"u2", "u3"}})

		_, err := env.ledgers.For(res.ResourceType).Share(ctx, res, []string{"u2"}, domain.ShareModeView)
		require.NoError(t, err)

		// Отписки снимает RevocationService на уровне ShareService
		assert.True(t, res.IsUnshared("u2"))
		assert.True(t, res.IsUnshared("u3"))
		assert.True(t, res.IsViewer("u2"))
	})

	t.Run("duplicate targets are collapsed", func(t *testing.T) {
		env := newTestEnv(t)
		res := env.addResource(t, domain.Resource{OwnerID: "u1", Name: "docs"})

		result, err := env.ledgers.For(res.ResourceType).Share(ctx, res, []string{"u2", "u2", ""}, domain.ShareModeView)
		require.NoError(t, err)

		assert.Equal(t, []string{"u2"}, result.ChangedCollaborators)
		assert.Len(t, res.Viewers, 1)
	})
}

func TestSetLedgerUnshare(t *testing.T) {
	ctx := context.Background()

	t.Run("removes target from both sets", func(t *testing.T) {
		env := newTestEnv(t)
		res := env.addResource(t, domain.Resource{OwnerID: "u1", Name: "docs", Editors: []string{"u2"}, Viewers: []string{"u3"}})

		require.NoError(t, env.ledgers.For(res.ResourceType).Unshare(ctx, res, []string{"u2", "u3"}))

		assert.Empty(t, res.Editors)
		assert.Empty(t, res.Viewers)
	})

	t.Run("unshare of a stranger is a no-op", func(t *testing.T) {
		env := newTestEnv(t)
		res := env.addResource(t, domain.Resource{OwnerID: "u1", Name: "docs", Editors: []string{"u2"}})

		require.NoError(t, env.ledgers.For(res.ResourceType).Unshare(ctx, res, []string{"nobody"}))
		require.NoError(t, env.ledgers.For(res.ResourceType).Unshare(ctx, res, []string{"nobody"}))

		assert.ElementsMatch(t, []string{"u2"}, []string(res.Editors))
	})
}

func TestRecordLedger(t *testing.T) {
	ctx := context.Background()

	t.Run("share creates one record per user", func(t *testing.T) {
		env := newTestEnv(t)
		res := env.addResource(t, domain.Resource{ResourceType: legacyType, OwnerID: "u1", Name: "library"})

		result, err := env.ledgers.For(legacyType).Share(ctx, res, []string{"u2", "u3"}, domain.ShareModeView)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"u2", "u3"}, result.ChangedCollaborators)

		records, err := env.records.GetByObject(ctx, res.ObjectID)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("repeated share updates mode instead of duplicating", func(t *testing.T) {
		env := newTestEnv(t)
		res := env.addResource(t, domain.Resource{ResourceType: legacyType, OwnerID: "u1", Name: "library"})

		_, err := env.ledgers.For(legacyType).Share(ctx, res, []string{"u2"}, domain.ShareModeView)
		require.NoError(t, err)
		result, err := env.ledgers.For(legacyType).Share(ctx, res, []string{"u2"}, domain.ShareModeEdit)
		require.NoError(t, err)

		assert.ElementsMatch(t, []string{"u2"}, result.ChangedCollaborators)

		records, err := env.records.GetByObject(ctx, res.ObjectID)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, domain.ShareModeEdit, records[0].Mode)
	})

	t.Run("collaborators merge records with sets on the object", func(t *testing.T) {
		env := newTestEnv(t)
		res := env.addResource(t, domain.Resource{ResourceType: legacyType, OwnerID: "u1", Name: "library", Editors: []string{"u4"}})

		_, err := env.ledgers.For(legacyType).Share(ctx, res, []string{"u2"}, domain.ShareModeEdit)
		require.NoError(t, err)
		_, err = env.ledgers.For(legacyType).Share(ctx, res, []string{"u3"}, domain.ShareModeView)
		require.NoError(t, err)

		editors, viewers, err := env.ledgers.Collaborators(ctx, res)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"u2", "u4"}, editors)
		assert.ElementsMatch(t, []string{"u3"}, viewers)
	})

	t.Run("unshare deletes the record idempotently", func(t *testing.T) {
		env := newTestEnv(t)
		res := env.addResource(t, domain.Resource{ResourceType: legacyType, OwnerID: "u1", Name: "library"})

		_, err := env.ledgers.For(legacyType).Share(ctx, res, []string{"u2"}, domain.ShareModeView)
		require.NoError(t, err)

		require.NoError(t, env.ledgers.For(legacyType).Unshare(ctx, res, []string{"u2"}))
		require.NoError(t, env.ledgers.For(legacyType).Unshare(ctx, res, []string{"u2"}))

		records, err := env.records.GetByObject(ctx, res.ObjectID)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("unshare revokes set-based grants along with records", func(t *testing.T) {
		env := newTestEnv(t)
		res := env.addResource(t, domain.Resource{
			ResourceType: legacyType, OwnerID: "u1", Name: "library",
			Editors: []string{"u2"}, Viewers: []string{"u3"},
		})

		_, err := env.ledgers.For(legacyType).Share(ctx, res, []string{"u3"}, domain.ShareModeView)
		require.NoError(t, err)

		require.NoError(t, env.ledgers.For(legacyType).Unshare(ctx, res, []string{"u2", "u3"}))

		editors, viewers, err := env.ledgers.Collaborators(ctx, res)
		require.NoError(t, err)
		assert.Empty(t, editors)
		assert.Empty(t, viewers)

		stored, err := env.resources.GetByID(ctx, res.ObjectID)
		require.NoError(t, err)
		assert.Empty(t, []string(stored.Editors))
		assert.Empty(t, []string(stored.Viewers))
	})
}
