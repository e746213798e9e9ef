package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tablestars-backend/internal/restaurants"
	"github.com/angelmondragon/tablestars-backend/internal/users"
	pkgAuth "github.com/angelmondragon/tablestars-backend/pkg/auth"
	"github.com/angelmondragon/tablestars-backend/pkg/auth/session"
	"github.com/angelmondragon/tablestars-backend/pkg/config"
	"github.com/angelmondragon/tablestars-backend/pkg/db"
	"github.com/angelmondragon/tablestars-backend/pkg/db/models"
	"github.com/angelmondragon/tablestars-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tablestars-backend/pkg/errors"
	"github.com/angelmondragon/tablestars-backend/pkg/logger"
	"github.com/angelmondragon/tablestars-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

type sessionManager interface {
	Generate(ctx context.Context, accessID string, userID uuid.UUID) (string, error)
	Rotate(ctx context.Context, oldAccessID string, userID uuid.UUID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type ServiceParams struct {
	DB             *db.Client
	Sessions       sessionManager
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
	Now            func() time.Time
}

// Service issues and rotates access/refresh token pairs.
type Service struct {
	db          *db.Client
	sessions    sessionManager
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
	now         func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	if params.Sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session manager required")
	}
	s := &Service{
		db:          params.DB,
		sessions:    params.Sessions,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		logg:        params.Logger,
		now:         params.Now,
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	usersRepo := users.NewRepository(s.db.DB())
	email := users.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	user, err := usersRepo.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	valid, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	now := s.now()
	if err := usersRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update last login")
	}
	user.LastLoginAt = &now
	s.upgradePasswordHash(ctx, usersRepo, user, req.Password)

	owned, err := s.ownedRestaurants(ctx, user)
	if err != nil {
		return nil, err
	}
	var active *uuid.UUID
	if len(owned) > 0 {
		id := owned[0].ID
		active = &id
	}
	return s.issue(ctx, user, owned, active, "")
}

// Refresh trades a (possibly expired) access token plus its refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, accessToken string, req RefreshRequest) (*Session, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, strings.TrimSpace(accessToken))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access token")
	}

	user, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	owned, err := s.ownedRestaurants(ctx, user)
	if err != nil {
		return nil, err
	}

	active := claims.RestaurantID
	if active != nil && !containsRestaurant(owned, *active) {
		active = nil
	}
	if active == nil && len(owned) > 0 {
		id := owned[0].ID
		active = &id
	}
	return s.rotate(ctx, user, owned, active, claims.ID, req.RefreshToken)
}

// SwitchRestaurant re-scopes the owner's session to another owned restaurant.
func (s *Service) SwitchRestaurant(ctx context.Context, userID uuid.UUID, accessID string, req SwitchRestaurantRequest) (*Session, error) {
	if req.RestaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurantId is required")
	}
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != enums.RoleRestaurantOwner {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only restaurant owners can switch restaurants")
	}
	owned, err := s.ownedRestaurants(ctx, user)
	if err != nil {
		return nil, err
	}
	if !containsRestaurant(owned, req.RestaurantID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "restaurant not owned by caller")
	}
	target := req.RestaurantID
	return s.rotate(ctx, user, owned, &target, accessID, req.RefreshToken)
}

func (s *Service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid session")
	}
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *Service) rotate(ctx context.Context, user *models.User, owned []models.Restaurant, active *uuid.UUID, oldAccessID, refreshToken string) (*Session, error) {
	newAccessID, newRefresh, err := s.sessions.Rotate(ctx, oldAccessID, user.ID, refreshToken)
	if errors.Is(err, session.ErrInvalidRefreshToken) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}
	token, err := s.mint(user, active, newAccessID)
	if err != nil {
		return nil, err
	}
	return newSession(token, newRefresh, user, owned, active), nil
}

// issue mints a fresh pair. An empty accessID means a new session.
func (s *Service) issue(ctx context.Context, user *models.User, owned []models.Restaurant, active *uuid.UUID, accessID string) (*Session, error) {
	if accessID == "" {
		accessID = session.NewAccessID()
	}
	token, err := s.mint(user, active, accessID)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sessions.Generate(ctx, accessID, user.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	return newSession(token, refresh, user, owned, active), nil
}

func (s *Service) mint(user *models.User, active *uuid.UUID, accessID string) (string, error) {
	payload := pkgAuth.AccessTokenPayload{UserID: user.ID, Role: user.Role, JTI: accessID}
	if user.Role == enums.RoleRestaurantOwner {
		payload.RestaurantID = active
	}
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, s.now(), payload)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return token, nil
}

func (s *Service) activeUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := users.NewRepository(s.db.DB()).FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid session")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account disabled")
	}
	return user, nil
}

func (s *Service) ownedRestaurants(ctx context.Context, user *models.User) ([]models.Restaurant, error) {
	if user.Role != enums.RoleRestaurantOwner {
		return nil, nil
	}
	rows, err := restaurants.NewRepository(s.db.DB()).FindByOwner(ctx, user.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list restaurants")
	}
	return rows, nil
}

func newSession(access, refresh string, user *models.User, owned []models.Restaurant, active *uuid.UUID) *Session {
	summaries := make([]RestaurantSummary, 0, len(owned))
	for _, r := range owned {
		summaries = append(summaries, RestaurantSummary{ID: r.ID, Name: r.Name, IsActive: r.IsActive})
	}
	return &Session{
		AccessToken:        access,
		RefreshToken:       refresh,
		User:               users.FromModel(user),
		Restaurants:        summaries,
		ActiveRestaurantID: active,
	}
}

func containsRestaurant(rows []models.Restaurant, id uuid.UUID) bool {
	for _, r := range rows {
		if r.ID == id {
			return true
		}
	}
	return false
}

// upgradePasswordHash re-hashes with the current argon2 settings after a
// successful login. Failures only cost the upgrade, never the login.
func (s *Service) upgradePasswordHash(ctx context.Context, repo *users.Repository, user *models.User, password string) {
	if !security.NeedsRehash(user.PasswordHash, s.passwordCfg) {
		return
	}
	hash, err := security.HashPassword(password, s.passwordCfg)
	if err == nil {
		err = repo.UpdateFields(ctx, user.ID, map[string]any{"password_hash": hash})
	}
	if err != nil {
		s.logg.Warn(s.logg.WithField(s.logg.WithUserID(ctx, user.ID.String()), "error", err.Error()), "auth.password_rehash_failed")
		return
	}
	user.PasswordHash = hash
}
