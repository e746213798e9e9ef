package balances

import (
	"bytes"
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/tablestars-backend/pkg/db/models"
	"github.com/angelmondragon/tablestars-backend/pkg/enums"
	"github.com/angelmondragon/tablestars-backend/pkg/pagination"
)

// Repository persists balance rows and their audit trail.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a repository bound to db. Pass a transaction
// handle to get row locks that live until commit.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Find returns the row for (userID, restaurantID) without locking it.
func (r *Repository) Find(ctx context.Context, userID, restaurantID uuid.UUID) (*models.UserRestaurantBalance, error) {
	var row models.UserRestaurantBalance
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND restaurant_id = ?", userID, restaurantID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListByUser returns every row held by userID.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserRestaurantBalance, error) {
	var rows []models.UserRestaurantBalance
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("restaurant_id ASC").
		Find(&rows).Error
	return rows, err
}

// LockRows takes FOR UPDATE locks on the existing rows of userIDs at
// restaurantIDs. Rows come back ordered by (restaurant_id, user_id), the
// order every writer acquires them in.
func (r *Repository) LockRows(ctx context.Context, userIDs, restaurantIDs []uuid.UUID) ([]models.UserRestaurantBalance, error) {
	if len(userIDs) == 0 || len(restaurantIDs) == 0 {
		return nil, nil
	}
	var rows []models.UserRestaurantBalance
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id IN ? AND restaurant_id IN ?", userIDs, restaurantIDs).
		Order("restaurant_id ASC").
		Order("user_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	sortRows(rows)
	return rows, nil
}

// EnsureRow creates the (userID, restaurantID) row when missing and returns
// it locked.
func (r *Repository) EnsureRow(ctx context.Context, userID, restaurantID uuid.UUID) (*models.UserRestaurantBalance, error) {
	row := models.UserRestaurantBalance{UserID: userID, RestaurantID: restaurantID, Balance: decimal.Zero}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "restaurant_id"}},
			DoNothing: true,
		}).
		Create(&row).Error
	if err != nil {
		return nil, err
	}
	rows, err := r.LockRows(ctx, []uuid.UUID{userID}, []uuid.UUID{restaurantID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

// SetCounter writes one counter of a locked row. Only that column and
// updated_at change.
func (r *Repository) SetCounter(ctx context.Context, row *models.UserRestaurantBalance, currency enums.CurrencyType) error {
	var value any
	switch currency {
	case enums.CurrencyTypeStarsMeal:
		value = row.StarsMeal
	case enums.CurrencyTypeStarsDrink:
		value = row.StarsDrink
	case enums.CurrencyTypeBalance:
		value = row.Balance
	default:
		return errors.New("unknown currency type " + string(currency))
	}
	now := r.db.NowFunc()
	res := r.db.WithContext(ctx).
		Model(&models.UserRestaurantBalance{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{string(currency): value, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	row.UpdatedAt = now
	return nil
}

func (r *Repository) CreateScan(ctx context.Context, scan *models.ScanLog, tx *models.StarsTransaction) error {
	if err := r.db.WithContext(ctx).Create(scan).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *Repository) CreatePurchases(ctx context.Context, purchases []models.Purchase) error {
	if len(purchases) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&purchases).Error
}

func (r *Repository) CreateGifts(ctx context.Context, gifts []models.Gift) error {
	if len(gifts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&gifts).Error
}

func (r *Repository) CreateTopUp(ctx context.Context, topUp *models.TopUp) error {
	return r.db.WithContext(ctx).Create(topUp).Error
}

// History merges the user's scans, purchases, gifts and top-ups newest
// first. Each source is read with the same keyset so the merged result is
// stable across pages; at most limit rows are returned.
func (r *Repository) History(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]HistoryEntryDTO, error) {
	var entries []HistoryEntryDTO

	var scans []models.ScanLog
	if err := r.page(ctx, cursor, limit).Where("user_id = ?", userID).Find(&scans).Error; err != nil {
		return nil, err
	}
	for _, s := range scans {
		entries = append(entries, HistoryEntryDTO{
			ID:           s.ID,
			Kind:         HistoryScan,
			RestaurantID: s.RestaurantID,
			CurrencyType: s.QRType.StarsCurrency(),
			Amount:       decimal.NewFromInt(s.StarsAwarded),
			CreatedAt:    s.CreatedAt,
		})
	}

	var purchases []models.Purchase
	if err := r.page(ctx, cursor, limit).Where("user_id = ?", userID).Find(&purchases).Error; err != nil {
		return nil, err
	}
	for _, p := range purchases {
		entries = append(entries, HistoryEntryDTO{
			ID:           p.ID,
			Kind:         HistoryPurchase,
			RestaurantID: p.RestaurantID,
			GroupID:      p.GroupID,
			CurrencyType: p.CurrencyType,
			Amount:       p.Amount,
			CreatedAt:    p.CreatedAt,
		})
	}

	var gifts []models.Gift
	if err := r.page(ctx, cursor, limit).Where("(sender_id = ? OR recipient_id = ?)", userID, userID).Find(&gifts).Error; err != nil {
		return nil, err
	}
	for _, g := range gifts {
		entry := HistoryEntryDTO{
			ID:           g.ID,
			Kind:         HistoryGiftReceived,
			RestaurantID: g.RestaurantID,
			GroupID:      g.GroupID,
			CurrencyType: g.CurrencyType,
			Amount:       g.Amount,
			CreatedAt:    g.CreatedAt,
		}
		counterparty := g.SenderID
		if g.SenderID == userID {
			entry.Kind = HistoryGiftSent
			counterparty = g.RecipientID
		}
		entry.CounterpartyID = &counterparty
		entries = append(entries, entry)
	}

	var topUps []models.TopUp
	if err := r.page(ctx, cursor, limit).Where("user_id = ?", userID).Find(&topUps).Error; err != nil {
		return nil, err
	}
	for _, t := range topUps {
		entries = append(entries, HistoryEntryDTO{
			ID:           t.ID,
			Kind:         HistoryTopUp,
			RestaurantID: t.RestaurantID,
			CurrencyType: enums.CurrencyTypeBalance,
			Amount:       t.Total,
			CreatedAt:    t.CreatedAt,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return bytes.Compare(entries[i].ID[:], entries[j].ID[:]) > 0
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *Repository) page(ctx context.Context, cursor *pagination.Cursor, limit int) *gorm.DB {
	return r.db.WithContext(ctx).
		Scopes(pagination.After(cursor)).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
}

func sortRows(rows []models.UserRestaurantBalance) {
	sort.SliceStable(rows, func(i, j int) bool {
		if c := bytes.Compare(rows[i].RestaurantID[:], rows[j].RestaurantID[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(rows[i].UserID[:], rows[j].UserID[:]) < 0
	})
}
