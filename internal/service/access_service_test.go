package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"blockdrive/internal/domain"
)

func permPtr(p domain.Permission) *domain.Permission {
	return &p
}

func TestEvaluateOwned(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.identity.addUser(domain.UserInfo{ID: "u1"})
	env.identity.addUser(domain.UserInfo{ID: "u2"})

	folder := env.addResource(t, domain.Resource{OwnerID: "u1", ObjectType: domain.ObjectTypeFolder, Name: "docs"})

	t.Run("owner can do anything", func(t *testing.T) {
		for _, perm := range []domain.Permission{
			domain.PermissionShare, domain.PermissionUnshare, domain.PermissionUpdate,
			domain.PermissionDelete, domain.PermissionUpload, domain.PermissionCreate, domain.PermissionMove,
		} {
			decision := env.access.Evaluate(ctx, "u1", folder, permPtr(perm), true)
			assert.True(t, decision.Allowed, "owner must be allowed %s", perm)
		}
	})

	t.Run("stranger is denied with operation-specific error id", func(t *testing.T) {
		decision := env.access.Evaluate(ctx, "u2", folder, permPtr(domain.PermissionDelete), true)
		assert.False(t, decision.Allowed)
		assert.Equal(t, "access.delete.folder", decision.ErrorID)
	})

	t.Run("visibility check without operation uses generic error id", func(t *testing.T) {
		decision := env.access.Evaluate(ctx, "u2", folder, nil, false)
		assert.False(t, decision.Allowed)
		assert.Equal(t, domain.ErrNoAccessGeneric, decision.ErrorID)
	})

	t.Run("personal grant overrides the owner check", func(t *testing.T) {
		shared := env.addResource(t, domain.Resource{OwnerID: "u1", Name: "shared.txt", Editors: []string{"u2"}})
		decision := env.access.Evaluate(ctx, "u2", shared, permPtr(domain.PermissionUpdate), true)
		assert.True(t, decision.Allowed)
	})
}

func TestEvaluateSharedGrants(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.identity.addUser(domain.UserInfo{ID: "viewer"})
	env.identity.addUser(domain.UserInfo{ID: "editor"})

	file := env.addResource(t, domain.Resource{
		OwnerID:    "u1",
		ObjectType: domain.ObjectTypeFile,
		Name:       "doc.txt",
		Editors:    []string{"editor"},
		Viewers:    []string{"viewer"},
	})

	t.Run("editor has full access", func(t *testing.T) {
		assert.True(t, env.access.Evaluate(ctx, "editor", file, permPtr(domain.PermissionUpdate), true).Allowed)
		assert.True(t, env.access.Evaluate(ctx, "editor", file, permPtr(domain.PermissionDelete), true).Allowed)
	})

	t.Run("viewer can read", func(t *testing.T) {
		assert.True(t, env.access.Evaluate(ctx, "viewer", file, nil, false).Allowed)
	})

	t.Run("viewer cannot update", func(t *testing.T) {
		decision := env.access.Evaluate(ctx, "viewer", file, permPtr(domain.PermissionUpdate), true)
		assert.False(t, decision.Allowed)
		assert.Equal(t, "access.update.file", decision.ErrorID)
	})

	t.Run("viewer delete degrades to self-unshare", func(t *testing.T) {
		decision := env.access.Evaluate(ctx, "viewer", file, permPtr(domain.PermissionDelete), true)
		assert.False(t, decision.Allowed)
		assert.True(t, decision.SelfUnshareAccess)
		assert.False(t, decision.CanDeleteInstead)
	})

	t.Run("viewer unshare degrades to self-unshare", func(t *testing.T) {
		decision := env.access.Evaluate(ctx, "viewer", file, permPtr(domain.PermissionUnshare), true)
		assert.True(t, decision.SelfUnshareAccess)
	})
}

func TestEvaluateOrg(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.identity.addUser(domain.UserInfo{ID: "admin", OrganizationID: "org1"})
	env.identity.addUser(domain.UserInfo{ID: "member", OrganizationID: "org1"})
	env.identity.addUser(domain.UserInfo{ID: "outsider", OrganizationID: "org2"})
	env.identity.setOrgAdmin("admin", "org1")

	orgFolder := env.addResource(t, domain.Resource{
		OwnerType:  domain.OwnerTypeOrg,
		OwnerID:    "org1",
		ObjectType: domain.ObjectTypeFolder,
		Name:       "org docs",
	})

	t.Run("member can read", func(t *testing.T) {
		assert.True(t, env.access.Evaluate(ctx, "member", orgFolder, nil, false).Allowed)
	})

	t.Run("outsider is denied", func(t *testing.T) {
		assert.False(t, env.access.Evaluate(ctx, "outsider", orgFolder, nil, false).Allowed)
	})

	t.Run("admin can edit", func(t *testing.T) {
		assert.True(t, env.access.Evaluate(ctx, "admin", orgFolder, permPtr(domain.PermissionUpdate), true).Allowed)
		assert.True(t, env.access.Evaluate(ctx, "admin", orgFolder, permPtr(domain.PermissionDelete), true).Allowed)
	})

	t.Run("member delete degrades to local revocation", func(t *testing.T) {
		decision := env.access.Evaluate(ctx, "member", orgFolder, permPtr(domain.PermissionDelete), true)
		assert.False(t, decision.Allowed)
		assert.True(t, decision.OrgRevocationOnly)
		assert.False(t, decision.CanDeleteInstead)
	})

	t.Run("member update is plainly denied", func(t *testing.T) {
		decision := env.access.Evaluate(ctx, "member", orgFolder, permPtr(domain.PermissionUpdate), true)
		assert.False(t, decision.Allowed)
		assert.False(t, decision.OrgRevocationOnly)
		assert.Equal(t, "access.update.folder", decision.ErrorID)
	})

	t.Run("opted-out member loses visibility", func(t *testing.T) {
		hidden := env.addResource(t, domain.Resource{
			OwnerType:       domain.OwnerTypeOrg,
			OwnerID:         "org1",
			Name:            "hidden",
			UnsharedMembers: []string{"member"},
		})
		assert.False(t, env.access.Evaluate(ctx, "member", hidden, nil, false).Allowed)
	})
}

func TestEvaluatePublic(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.identity.addUser(domain.UserInfo{ID: "user"})
	env.identity.addUser(domain.UserInfo{ID: "root", GlobalAdmin: true})

	pub := env.addResource(t, domain.Resource{
		OwnerType:  domain.OwnerTypePublic,
		ObjectType: domain.ObjectTypeFolder,
		Name:       "public docs",
	})

	t.Run("anyone can read", func(t *testing.T) {
		assert.True(t, env.access.Evaluate(ctx, "user", pub, nil, false).Allowed)
	})

	t.Run("public objects cannot be shared or unshared", func(t *testing.T) {
		assert.False(t, env.access.Evaluate(ctx, "user", pub, permPtr(domain.PermissionShare), true).Allowed)
		assert.False(t, env.access.Evaluate(ctx, "root", pub, permPtr(domain.PermissionShare), true).Allowed)
		assert.False(t, env.access.Evaluate(ctx, "user", pub, permPtr(domain.PermissionUnshare), true).Allowed)
	})

	t.Run("only global admin can edit", func(t *testing.T) {
		assert.False(t, env.access.Evaluate(ctx, "user", pub, permPtr(domain.PermissionUpdate), true).Allowed)
		assert.True(t, env.access.Evaluate(ctx, "root", pub, permPtr(domain.PermissionUpdate), true).Allowed)
	})

	t.Run("regular user delete degrades to local revocation", func(t *testing.T) {
		decision := env.access.Evaluate(ctx, "user", pub, permPtr(domain.PermissionDelete), true)
		assert.False(t, decision.Allowed)
		assert.True(t, decision.OrgRevocationOnly)
	})

	t.Run("opted-out user loses visibility", func(t *testing.T) {
		hidden := env.addResource(t, domain.Resource{
			OwnerType:       domain.OwnerTypePublic,
			Name:            "hidden",
			UnsharedMembers: []string{"user"},
		})
		assert.False(t, env.access.Evaluate(ctx, "user", hidden, nil, false).Allowed)
	})
}

func TestEvaluateOrgWideGrant(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.identity.addUser(domain.UserInfo{ID: "admin", OrganizationID: "org1"})
	env.identity.addUser(domain.UserInfo{ID: "member", OrganizationID: "org1"})
	env.identity.setOrgAdmin("admin", "org1")

	t.Run("edit grant to organization is admin-gated", func(t *testing.T) {
		res := env.addResource(t, domain.Resource{OwnerID: "u1", Name: "doc", Editors: []string{"org1"}})

		assert.True(t, env.access.Evaluate(ctx, "member", res, nil, false).Allowed)
		assert.True(t, env.access.Evaluate(ctx, "admin", res, permPtr(domain.PermissionUpdate), true).Allowed)

		decision := env.access.Evaluate(ctx, "member", res, permPtr(domain.PermissionDelete), true)
		assert.False(t, decision.Allowed)
		assert.True(t, decision.OrgRevocationOnly)
	})

	t.Run("view grant to organization allows reads and local revocation", func(t *testing.T) {
		res := env.addResource(t, domain.Resource{OwnerID: "u1", Name: "doc2", Viewers: []string{"org1"}})

		assert.True(t, env.access.Evaluate(ctx, "member", res, nil, false).Allowed)
		assert.False(t, env.access.Evaluate(ctx, "member", res, permPtr(domain.PermissionUpdate), true).Allowed)

		decision := env.access.Evaluate(ctx, "member", res, permPtr(domain.PermissionUnshare), true)
		assert.True(t, decision.OrgRevocationOnly)
	})
}
