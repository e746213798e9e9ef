package groups

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tablestars-backend/pkg/db"
	"github.com/angelmondragon/tablestars-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/tablestars-backend/pkg/errors"
)

func newService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(ServiceParams{DB: db.Wrap(conn)})
	require.NoError(t, err)
	return svc, conn
}

func TestNewServiceRequiresDB(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestCreateGroupOncePerRestaurant(t *testing.T) {
	svc, conn := newService(t)
	ctx := context.Background()
	owner := dbtest.SeedUser(t, conn)
	rest := dbtest.SeedRestaurant(t, conn, owner.ID)

	group, err := svc.Create(ctx, owner.ID, rest.ID, CreateGroupInput{Name: " Tapas Group "})
	require.NoError(t, err)
	assert.Equal(t, "Tapas Group", group.Name)
	require.Len(t, group.Members, 1)
	assert.True(t, group.Members[0].IsOwner)

	_, err = svc.Create(ctx, owner.ID, rest.ID, CreateGroupInput{Name: "Again"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict), "got %v", err)
}

func TestCreateGroupRejectsMemberOfOtherGroup(t *testing.T) {
	svc, conn := newService(t)
	ctx := context.Background()
	owner := dbtest.SeedUser(t, conn)
	r1 := dbtest.SeedRestaurant(t, conn, owner.ID)
	r2 := dbtest.SeedRestaurant(t, conn, owner.ID)
	dbtest.SeedGroup(t, conn, r1.ID, r2.ID)

	_, err := svc.Create(ctx, owner.ID, r2.ID, CreateGroupInput{Name: "Mine"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict), "got %v", err)
}

func TestCreateGroupRequiresOwnership(t *testing.T) {
	svc, conn := newService(t)
	owner := dbtest.SeedUser(t, conn)
	stranger := dbtest.SeedUser(t, conn)
	rest := dbtest.SeedRestaurant(t, conn, owner.ID)

	_, err := svc.Create(context.Background(), stranger.ID, rest.ID, CreateGroupInput{Name: "X"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden), "got %v", err)
}

func TestAddMemberRules(t *testing.T) {
	svc, conn := newService(t)
	ctx := context.Background()
	owner := dbtest.SeedUser(t, conn)
	r1 := dbtest.SeedRestaurant(t, conn, owner.ID)
	r2 := dbtest.SeedRestaurant(t, conn, owner.ID)

	_, err := svc.AddMember(ctx, owner.ID, r1.ID, r2.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "adding without a group, got %v", err)

	_, err = svc.Create(ctx, owner.ID, r1.ID, CreateGroupInput{Name: "G"})
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, owner.ID, r1.ID, r1.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "self add, got %v", err)

	_, err = svc.AddMember(ctx, owner.ID, r1.ID, uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "unknown restaurant, got %v", err)

	group, err := svc.AddMember(ctx, owner.ID, r1.ID, r2.ID)
	require.NoError(t, err)
	assert.Len(t, group.Members, 2)
	assert.Equal(t, r1.ID, group.Members[0].RestaurantID)

	_, err = svc.AddMember(ctx, owner.ID, r1.ID, r2.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict), "duplicate member, got %v", err)

	otherOwner := dbtest.SeedUser(t, conn)
	r3 := dbtest.SeedRestaurant(t, conn, otherOwner.ID)
	_, err = svc.Create(ctx, otherOwner.ID, r3.ID, CreateGroupInput{Name: "Other"})
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, owner.ID, r1.ID, r3.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict), "owner of another group, got %v", err)
}

func TestRemoveMember(t *testing.T) {
	svc, conn := newService(t)
	ctx := context.Background()
	owner := dbtest.SeedUser(t, conn)
	r1 := dbtest.SeedRestaurant(t, conn, owner.ID)
	r2 := dbtest.SeedRestaurant(t, conn, owner.ID)
	dbtest.SeedGroup(t, conn, r1.ID, r2.ID)

	group, err := svc.RemoveMember(ctx, owner.ID, r1.ID, r2.ID)
	require.NoError(t, err)
	assert.Len(t, group.Members, 1)

	_, err = svc.RemoveMember(ctx, owner.ID, r1.ID, r2.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)

	mine, err := svc.Mine(ctx, owner.ID, r1.ID)
	require.NoError(t, err)
	assert.Len(t, mine.Members, 1)
}

func TestMemberRestaurantIDsAscending(t *testing.T) {
	conn := dbtest.Open(t)
	owner := dbtest.SeedUser(t, conn)
	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		ids = append(ids, dbtest.SeedRestaurant(t, conn, owner.ID).ID)
	}
	group := dbtest.SeedGroup(t, conn, ids[2], ids[0], ids[3], ids[1])

	got, err := NewRepository(conn).MemberRestaurantIDs(context.Background(), group.ID)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i := 1; i < len(got); i++ {
		assert.Negative(t, bytes.Compare(got[i-1][:], got[i][:]), "ids must ascend")
	}
	assert.ElementsMatch(t, ids, got)

	_, err = NewRepository(conn).MemberRestaurantIDs(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

