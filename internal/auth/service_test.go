package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tablestars-backend/internal/restaurants"
	pkgAuth "github.com/angelmondragon/tablestars-backend/pkg/auth"
	"github.com/angelmondragon/tablestars-backend/pkg/auth/session"
	"github.com/angelmondragon/tablestars-backend/pkg/config"
	"github.com/angelmondragon/tablestars-backend/pkg/db"
	"github.com/angelmondragon/tablestars-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tablestars-backend/pkg/db/models"
	"github.com/angelmondragon/tablestars-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tablestars-backend/pkg/errors"
)

type storedSession struct {
	userID uuid.UUID
	token  string
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]storedSession
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]storedSession{}}
}

func (f *fakeSessions) Generate(_ context.Context, accessID string, userID uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := "refresh-" + uuid.NewString()
	f.sessions[accessID] = storedSession{userID: userID, token: token}
	return token, nil
}

func (f *fakeSessions) Rotate(ctx context.Context, oldAccessID string, userID uuid.UUID, provided string) (string, string, error) {
	f.mu.Lock()
	rec, ok := f.sessions[oldAccessID]
	if !ok || rec.userID != userID || rec.token != provided {
		f.mu.Unlock()
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(f.sessions, oldAccessID)
	f.mu.Unlock()

	next := session.NewAccessID()
	token, err := f.Generate(ctx, next, userID)
	return next, token, err
}

func (f *fakeSessions) Revoke(_ context.Context, accessID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, accessID)
	return nil
}

func (f *fakeSessions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "tablestars", ExpirationMinutes: 30}

type fixture struct {
	conn     *gorm.DB
	svc      *Service
	sessions *fakeSessions
}

func setup(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	sessions := newFakeSessions()
	svc, err := NewService(ServiceParams{
		DB:        db.Wrap(conn),
		Sessions:  sessions,
		JWTConfig: testJWT,
		PasswordConfig: config.PasswordConfig{
			ArgonMemoryKB:    8192,
			ArgonTime:        1,
			ArgonParallelism: 1,
			ArgonSaltLen:     16,
			ArgonKeyLen:      32,
		},
	})
	require.NoError(t, err)
	return fixture{conn: conn, svc: svc, sessions: sessions}
}

func customerRequest(email string) RegisterRequest {
	return RegisterRequest{
		Email:       email,
		Password:    "correct horse",
		FirstName:   "Ana",
		LastName:    "Lopez",
		AccountType: enums.AccountTypeUser,
	}
}

func ownerRequest(email string) RegisterRequest {
	req := customerRequest(email)
	req.AccountType = enums.AccountTypeRestaurant
	req.Restaurant = &restaurants.CreateRestaurantInput{
		Name:      "Casa Pepe",
		Address:   "Calle Mayor 1",
		Latitude:  40.4168,
		Longitude: -3.7038,
	}
	return req
}

func claimsOf(t *testing.T, token string) *pkgAuth.AccessTokenClaims {
	t.Helper()
	claims, err := pkgAuth.ParseAccessToken(testJWT, token)
	require.NoError(t, err)
	return claims
}

func TestRegisterCustomer(t *testing.T) {
	f := setup(t)
	sess, err := f.svc.Register(context.Background(), customerRequest(" Ana@Example.com "))
	require.NoError(t, err)

	assert.Equal(t, "ana@example.com", sess.User.Email)
	assert.Equal(t, enums.RoleUser, sess.User.Role)
	assert.Empty(t, sess.Restaurants)
	assert.Nil(t, sess.ActiveRestaurantID)
	assert.NotEmpty(t, sess.RefreshToken)

	claims := claimsOf(t, sess.AccessToken)
	assert.Equal(t, sess.User.ID, claims.UserID)
	assert.Nil(t, claims.RestaurantID)

	var user models.User
	require.NoError(t, f.conn.Where("id = ?", sess.User.ID).First(&user).Error)
	assert.Regexp(t, `^user-[a-z2-7]+$`, user.QRCode)
	assert.NotEqual(t, "correct horse", user.PasswordHash)
}

func TestRegisterOwnerCreatesInactiveRestaurant(t *testing.T) {
	f := setup(t)
	sess, err := f.svc.Register(context.Background(), ownerRequest("owner@example.com"))
	require.NoError(t, err)

	assert.Equal(t, enums.RoleRestaurantOwner, sess.User.Role)
	require.Len(t, sess.Restaurants, 1)
	require.NotNil(t, sess.ActiveRestaurantID)
	assert.Equal(t, sess.Restaurants[0].ID, *sess.ActiveRestaurantID)
	assert.False(t, sess.Restaurants[0].IsActive)

	claims := claimsOf(t, sess.AccessToken)
	require.NotNil(t, claims.RestaurantID)
	assert.Equal(t, *sess.ActiveRestaurantID, *claims.RestaurantID)

	var r models.Restaurant
	require.NoError(t, f.conn.Where("id = ?", *sess.ActiveRestaurantID).First(&r).Error)
	assert.Regexp(t, `^meal-`, r.QRCodeMeal)
	assert.Regexp(t, `^drink-`, r.QRCodeDrink)
	assert.NotEqual(t, r.QRCodeMeal, r.QRCodeDrink)
}

func TestRegisterRejections(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Register(context.Background(), customerRequest("dup@example.com"))
	require.NoError(t, err)

	_, err = f.svc.Register(context.Background(), customerRequest("DUP@example.com"))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	missing := ownerRequest("x@example.com")
	missing.Restaurant = nil
	_, err = f.svc.Register(context.Background(), missing)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	badLoc := ownerRequest("y@example.com")
	badLoc.Restaurant.Latitude = 120
	_, err = f.svc.Register(context.Background(), badLoc)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	badType := customerRequest("z@example.com")
	badType.AccountType = "vendor"
	_, err = f.svc.Register(context.Background(), badType)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	// the failed owner registration must not leave a user behind
	var n int64
	require.NoError(t, f.conn.Model(&models.User{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestLogin(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Register(context.Background(), ownerRequest("owner@example.com"))
	require.NoError(t, err)

	sess, err := f.svc.Login(context.Background(), LoginRequest{Email: "OWNER@example.com", Password: "correct horse"})
	require.NoError(t, err)
	require.NotNil(t, sess.User.LastLoginAt)
	require.NotNil(t, sess.ActiveRestaurantID)
	assert.Equal(t, 2, f.sessions.count())

	_, err = f.svc.Login(context.Background(), LoginRequest{Email: "owner@example.com", Password: "wrong"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
	_, err = f.svc.Login(context.Background(), LoginRequest{Email: "nobody@example.com", Password: "correct horse"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))

	require.NoError(t, f.conn.Model(&models.User{}).Where("email = ?", "owner@example.com").Update("is_active", false).Error)
	_, err = f.svc.Login(context.Background(), LoginRequest{Email: "owner@example.com", Password: "correct horse"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestRefreshRotatesPair(t *testing.T) {
	f := setup(t)
	first, err := f.svc.Register(context.Background(), customerRequest("ana@example.com"))
	require.NoError(t, err)

	second, err := f.svc.Refresh(context.Background(), first.AccessToken, RefreshRequest{RefreshToken: first.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.NotEqual(t, claimsOf(t, first.AccessToken).ID, claimsOf(t, second.AccessToken).ID)
	assert.Equal(t, 1, f.sessions.count())

	// the old refresh token is spent
	_, err = f.svc.Refresh(context.Background(), first.AccessToken, RefreshRequest{RefreshToken: first.RefreshToken})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))

	_, err = f.svc.Refresh(context.Background(), "garbage", RefreshRequest{RefreshToken: second.RefreshToken})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestRefreshAcceptsExpiredAccessToken(t *testing.T) {
	f := setup(t)
	sess, err := f.svc.Register(context.Background(), customerRequest("ana@example.com"))
	require.NoError(t, err)

	claims := claimsOf(t, sess.AccessToken)
	expired, err := pkgAuth.MintAccessToken(testJWT, time.Now().Add(-2*time.Hour), pkgAuth.AccessTokenPayload{
		UserID: claims.UserID,
		Role:   claims.Role,
		JTI:    claims.ID,
	})
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), expired, RefreshRequest{RefreshToken: sess.RefreshToken})
	assert.NoError(t, err)
}

func TestSwitchRestaurant(t *testing.T) {
	f := setup(t)
	sess, err := f.svc.Register(context.Background(), ownerRequest("owner@example.com"))
	require.NoError(t, err)
	second := dbtest.SeedRestaurant(t, f.conn, sess.User.ID)

	claims := claimsOf(t, sess.AccessToken)
	switched, err := f.svc.SwitchRestaurant(context.Background(), sess.User.ID, claims.ID, SwitchRestaurantRequest{
		RestaurantID: second.ID,
		RefreshToken: sess.RefreshToken,
	})
	require.NoError(t, err)
	require.NotNil(t, switched.ActiveRestaurantID)
	assert.Equal(t, second.ID, *switched.ActiveRestaurantID)
	assert.Equal(t, second.ID, *claimsOf(t, switched.AccessToken).RestaurantID)
	assert.Len(t, switched.Restaurants, 2)

	other := dbtest.SeedUser(t, f.conn, func(u *models.User) { u.Role = enums.RoleRestaurantOwner })
	foreign := dbtest.SeedRestaurant(t, f.conn, other.ID)
	next := claimsOf(t, switched.AccessToken)
	_, err = f.svc.SwitchRestaurant(context.Background(), sess.User.ID, next.ID, SwitchRestaurantRequest{
		RestaurantID: foreign.ID,
		RefreshToken: switched.RefreshToken,
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
}

func TestSwitchRestaurantRequiresOwner(t *testing.T) {
	f := setup(t)
	sess, err := f.svc.Register(context.Background(), customerRequest("ana@example.com"))
	require.NoError(t, err)
	_, err = f.svc.SwitchRestaurant(context.Background(), sess.User.ID, claimsOf(t, sess.AccessToken).ID, SwitchRestaurantRequest{
		RestaurantID: uuid.New(),
		RefreshToken: sess.RefreshToken,
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
}

func TestLogoutRevokes(t *testing.T) {
	f := setup(t)
	sess, err := f.svc.Register(context.Background(), customerRequest("ana@example.com"))
	require.NoError(t, err)
	require.Equal(t, 1, f.sessions.count())

	require.NoError(t, f.svc.Logout(context.Background(), claimsOf(t, sess.AccessToken).ID))
	assert.Zero(t, f.sessions.count())
	assert.True(t, pkgerrors.HasCode(f.svc.Logout(context.Background(), ""), pkgerrors.CodeUnauthorized))
}
