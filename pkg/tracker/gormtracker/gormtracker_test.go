package gormtracker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/depotgo/depot/pkg/driver/memory"
	"github.com/depotgo/depot/pkg/registry"
)

type user struct {
	gorm.Model
	Name   string
	Avatar Column `gorm:"type:text"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenDB(DBConfig{Type: DatabaseTypeSQLite, SQLite: SQLiteConfig{Path: ":memory:"}}, &user{})
	require.NoError(t, err)
	return db
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Configure("default", memory.New()))
	return reg
}

func TestColumnRoundTripsThroughDatabase(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	reg := newTestRegistry(t)
	sess := NewSession(reg)

	u := &user{Name: "alice"}
	require.NoError(t, sess.Set(ctx, &u.Avatar, "default", []byte("pic"), "avatar.png", "image/png"))
	require.NoError(t, db.Create(u).Error)

	var fetched user
	require.NoError(t, db.First(&fetched, u.ID).Error)
	require.True(t, fetched.Avatar.Set())
	require.Equal(t, "avatar.png", fetched.Avatar.Filename)
}

func TestSetReplacesAndSchedulesOldForCommitDelete(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)
	sess := NewSession(reg)

	u := &user{Name: "bob"}
	require.NoError(t, sess.Set(ctx, &u.Avatar, "default", []byte("v1"), "a.png", "image/png"))
	firstID := u.Avatar.FileID

	require.NoError(t, sess.Set(ctx, &u.Avatar, "default", []byte("v2"), "b.png", "image/png"))
	require.Equal(t, []string{"default/" + firstID}, sess.Tracker().PendingDeletes())
}

func TestCommitDrainsPendingDeletesOnSuccess(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	reg := newTestRegistry(t)
	store, err := reg.Get("default")
	require.NoError(t, err)
	sess := NewSession(reg)

	u := &user{Name: "carol"}
	require.NoError(t, sess.Set(ctx, &u.Avatar, "default", []byte("v1"), "a.png", "image/png"))
	require.NoError(t, db.Create(u).Error)
	firstID := u.Avatar.FileID

	require.NoError(t, sess.Set(ctx, &u.Avatar, "default", []byte("v2"), "b.png", "image/png"))

	errs, err := sess.Commit(ctx, db, func(tx *gorm.DB) error {
		return tx.Save(u).Error
	})
	require.NoError(t, err)
	require.Empty(t, errs)

	exists, err := store.Exists(ctx, firstID)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestCommitDrainsPendingRollbackDeletesOnFailure(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	reg := newTestRegistry(t)
	store, err := reg.Get("default")
	require.NoError(t, err)
	sess := NewSession(reg)

	u := &user{Name: "dave"}
	require.NoError(t, sess.Set(ctx, &u.Avatar, "default", []byte("v1"), "a.png", "image/png"))
	newID := u.Avatar.FileID

	_, err = sess.Commit(ctx, db, func(tx *gorm.DB) error {
		return assertFailure
	})
	require.Error(t, err)

	exists, err := store.Exists(ctx, newID)
	require.NoError(t, err)
	require.False(t, exists)
}

var assertFailure = &testFailure{}

type testFailure struct{}

func (e *testFailure) Error() string { return "forced failure" }

func TestMarkDeletedSchedulesCommitDelete(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)
	sess := NewSession(reg)

	u := &user{Name: "erin"}
	require.NoError(t, sess.Set(ctx, &u.Avatar, "default", []byte("v1"), "a.png", "image/png"))
	sess.MarkDeleted(&u.Avatar)

	require.Equal(t, []string{"default/" + u.Avatar.FileID}, sess.Tracker().PendingDeletes())
}
