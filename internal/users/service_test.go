package users

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tablestars-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tablestars-backend/pkg/db/models"
	"github.com/angelmondragon/tablestars-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tablestars-backend/pkg/errors"
	"github.com/angelmondragon/tablestars-backend/pkg/pagination"
)

func newTestService(t *testing.T) (Service, *Repository) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc, repo
}

func TestNewServiceRequiresRepo(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Fatal("expected error creating service without repo")
	}
}

func TestGetProfileNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetProfile(context.Background(), uuid.New())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestUpdateProfileAppliesOnlyProvidedFields(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	user, err := repo.Create(ctx, CreateUserDTO{
		Email: " Ana@Example.com ", PasswordHash: "h", FirstName: "Ana", LastName: "Lopez", QRCode: "user-ana",
	})
	require.NoError(t, err)
	require.Equal(t, "ana@example.com", user.Email)

	first := "  Anita "
	phone := "+34 600 000 000"
	dto, err := svc.UpdateProfile(ctx, user.ID, UpdateProfileInput{FirstName: &first, Phone: &phone})
	require.NoError(t, err)
	require.Equal(t, "Anita", dto.FirstName)
	require.Equal(t, "Lopez", dto.LastName)
	require.NotNil(t, dto.Phone)
	require.Equal(t, phone, *dto.Phone)

	empty := ""
	dto, err = svc.UpdateProfile(ctx, user.ID, UpdateProfileInput{Phone: &empty})
	require.NoError(t, err)
	require.Nil(t, dto.Phone)
}

func TestUpdateProfileRejectsBlankName(t *testing.T) {
	svc, repo := newTestService(t)
	user, err := repo.Create(context.Background(), CreateUserDTO{Email: "b@example.com", PasswordHash: "h", FirstName: "B", LastName: "C", QRCode: "user-b"})
	require.NoError(t, err)

	blank := "   "
	_, err = svc.UpdateProfile(context.Background(), user.ID, UpdateProfileInput{LastName: &blank})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestUpdateProfileUnknownUser(t *testing.T) {
	svc, _ := newTestService(t)
	name := "X"
	_, err := svc.UpdateProfile(context.Background(), uuid.New(), UpdateProfileInput{FirstName: &name})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestGetQRCodeReturnsPersonalCode(t *testing.T) {
	svc, repo := newTestService(t)
	user, err := repo.Create(context.Background(), CreateUserDTO{Email: "qr@example.com", PasswordHash: "h", FirstName: "Q", LastName: "R", QRCode: "user-qr123"})
	require.NoError(t, err)

	qr, err := svc.GetQRCode(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, "user-qr123", qr.QRCode)
}

func TestListPagesNewestFirstAndFiltersRole(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	conn := repo.db

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		ids = append(ids, dbtest.SeedUser(t, conn).ID)
	}
	owner := dbtest.SeedUser(t, conn, func(u *models.User) { u.Role = enums.RoleRestaurantOwner })

	page, err := svc.List(ctx, ListFilter{Params: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)

	next, err := svc.List(ctx, ListFilter{Params: pagination.Params{Limit: 2, Cursor: page.NextCursor}})
	require.NoError(t, err)
	require.Len(t, next.Items, 2)
	require.Empty(t, next.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, u := range append(page.Items, next.Items...) {
		require.False(t, seen[u.ID], "duplicate %s across pages", u.ID)
		seen[u.ID] = true
	}
	require.Len(t, seen, len(ids)+1)

	role := enums.RoleRestaurantOwner
	owners, err := svc.List(ctx, ListFilter{Role: &role})
	require.NoError(t, err)
	require.Len(t, owners.Items, 1)
	require.Equal(t, owner.ID, owners.Items[0].ID)
}

func TestListRejectsBadCursor(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.List(context.Background(), ListFilter{Params: pagination.Params{Cursor: "%%%"}})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestSetActive(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	admin := dbtest.SeedUser(t, repo.db, func(u *models.User) { u.Role = enums.RoleAdmin })
	target := dbtest.SeedUser(t, repo.db)

	dto, err := svc.SetActive(ctx, admin.ID, target.ID, false)
	require.NoError(t, err)
	require.False(t, dto.IsActive)

	_, err = repo.FindByQRCode(ctx, target.QRCode)
	require.Error(t, err, "inactive users must not resolve by QR")

	_, err = svc.SetActive(ctx, admin.ID, admin.ID, false)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = svc.SetActive(ctx, admin.ID, uuid.New(), true)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

type failingRepo struct{}

func (failingRepo) FindByID(context.Context, uuid.UUID) (*models.User, error) {
	return nil, errors.New("db down")
}
func (failingRepo) UpdateFields(context.Context, uuid.UUID, map[string]any) error {
	return errors.New("db down")
}
func (failingRepo) List(context.Context, ListFilter) ([]models.User, error) {
	return nil, errors.New("db down")
}

func TestGetProfileDependencyError(t *testing.T) {
	svc, err := NewService(failingRepo{})
	require.NoError(t, err)
	_, err = svc.GetProfile(context.Background(), uuid.New())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency), "got %v", err)
}
