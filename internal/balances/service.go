package balances

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tablestars-backend/internal/groups"
	"github.com/angelmondragon/tablestars-backend/internal/notifications"
	"github.com/angelmondragon/tablestars-backend/internal/restaurants"
	"github.com/angelmondragon/tablestars-backend/internal/users"
	"github.com/angelmondragon/tablestars-backend/pkg/config"
	"github.com/angelmondragon/tablestars-backend/pkg/db"
	"github.com/angelmondragon/tablestars-backend/pkg/db/models"
	"github.com/angelmondragon/tablestars-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tablestars-backend/pkg/errors"
	"github.com/angelmondragon/tablestars-backend/pkg/geo"
	"github.com/angelmondragon/tablestars-backend/pkg/logger"
	"github.com/angelmondragon/tablestars-backend/pkg/metrics"
	"github.com/angelmondragon/tablestars-backend/pkg/pagination"
)

const defaultScanAward = 10

type qrResolver interface {
	ResolveQR(ctx context.Context, code string) (*models.Restaurant, enums.QRType, error)
}

// Service moves value between customers and restaurants.
type Service interface {
	Scan(ctx context.Context, userID uuid.UUID, input ScanInput) (*BalanceDTO, error)
	Pay(ctx context.Context, userID uuid.UUID, input PayInput) (*PaymentResultDTO, error)
	Gift(ctx context.Context, senderID uuid.UUID, input GiftInput) (*GiftResultDTO, error)
	TopUp(ctx context.Context, ownerID, restaurantID uuid.UUID, input TopUpInput) (*TopUpResultDTO, error)
	List(ctx context.Context, userID uuid.UUID) ([]BalanceDTO, error)
	Get(ctx context.Context, userID, restaurantID uuid.UUID) (*BalanceDTO, error)
	History(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[HistoryEntryDTO], error)
}

// ServiceParams packages the dependencies for the balance service.
type ServiceParams struct {
	DB          *db.Client
	Restaurants qrResolver
	Notifier    notifications.Notifier
	Metrics     *metrics.LedgerMetrics
	Logger      *logger.Logger
	Geofence    config.GeofenceConfig
	Ledger      config.LedgerConfig
}

type service struct {
	db          *db.Client
	restaurants qrResolver
	notifier    notifications.Notifier
	metrics     *metrics.LedgerMetrics
	logg        *logger.Logger
	radius      float64
	scanAward   int64
}

// NewService builds the balance service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	if params.Restaurants == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "restaurant resolver required")
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = notifications.NopNotifier{}
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	radius := params.Geofence.RadiusMeters
	if radius <= 0 {
		radius = 100
	}
	award := int64(params.Ledger.ScanAward)
	if award <= 0 {
		award = defaultScanAward
	}
	return &service{
		db:          params.DB,
		restaurants: params.Restaurants,
		notifier:    notifier,
		metrics:     params.Metrics,
		logg:        logg,
		radius:      radius,
		scanAward:   award,
	}, nil
}

func (s *service) Scan(ctx context.Context, userID uuid.UUID, input ScanInput) (_ *BalanceDTO, err error) {
	defer func() { s.observe(ctx, metrics.OpScan, err) }()

	if input.Latitude == nil || input.Longitude == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "latitude and longitude are required")
	}
	point := geo.Point{Lat: *input.Latitude, Lng: *input.Longitude}
	if err := point.Validate(); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}

	restaurant, qrType, err := s.restaurants.ResolveQR(ctx, input.QRCode)
	if err != nil {
		return nil, err
	}
	if !restaurant.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "restaurant is not active")
	}

	origin := geo.Point{Lat: restaurant.Latitude, Lng: restaurant.Longitude}
	distance, ok := geo.WithinRadius(origin, point, s.radius)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidLocation, "You must be at the restaurant to scan this code").
			WithDetails(map[string]any{
				"distanceMeters": math.Round(distance),
				"radiusMeters":   s.radius,
			})
	}

	currency := qrType.StarsCurrency()
	var out BalanceDTO
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		row, err := repo.EnsureRow(ctx, userID, restaurant.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load balance")
		}
		setCounter(row, currency, counter(row, currency).Add(decimal.NewFromInt(s.scanAward)))
		if err := repo.SetCounter(ctx, row, currency); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit stars")
		}
		scan := &models.ScanLog{
			UserID:         userID,
			RestaurantID:   restaurant.ID,
			QRType:         qrType,
			Latitude:       point.Lat,
			Longitude:      point.Lng,
			DistanceMeters: distance,
			StarsAwarded:   s.scanAward,
		}
		earn := &models.StarsTransaction{
			UserID:       userID,
			RestaurantID: restaurant.ID,
			StarType:     currency,
			Amount:       s.scanAward,
			Kind:         enums.StarsTransactionKindEarn,
		}
		if err := repo.CreateScan(ctx, scan, earn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record scan")
		}
		out = toDTO(row, restaurant.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notifications.Message{
		UserID: userID,
		Type:   enums.NotificationTypeStarsEarned,
		Title:  "Stars earned",
		Body:   fmt.Sprintf("You earned %s at %s", describe(currency, decimal.NewFromInt(s.scanAward)), restaurant.Name),
		Data: map[string]any{
			"restaurantId": restaurant.ID.String(),
			"currencyType": string(currency),
			"amount":       s.scanAward,
		},
	})
	return &out, nil
}

func (s *service) Pay(ctx context.Context, userID uuid.UUID, input PayInput) (_ *PaymentResultDTO, err error) {
	op := metrics.OpPay
	defer func() { s.observe(ctx, op, err) }()

	if err := validateAmount(input.CurrencyType, input.Amount); err != nil {
		return nil, err
	}

	var (
		out     PaymentResultDTO
		notices []notifications.Message
	)
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		target, err := resolveTarget(ctx, tx, input.TargetID)
		if err != nil {
			return err
		}
		if target.groupID != nil {
			op = metrics.OpPayGroup
		}

		repo := NewRepository(tx)
		locked, err := repo.LockRows(ctx, []uuid.UUID{userID}, target.restaurantIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock balances")
		}
		rows := pointers(locked)
		legs, err := planDebit(rows, input.CurrencyType, input.Amount)
		if err != nil {
			return err
		}

		byRestaurant := indexByRestaurant(rows)
		purchases := make([]models.Purchase, 0, len(legs))
		for _, l := range legs {
			row := byRestaurant[l.restaurantID]
			if err := s.apply(ctx, repo, row, input.CurrencyType, l.amount.Neg()); err != nil {
				return err
			}
			purchases = append(purchases, models.Purchase{
				UserID:       userID,
				RestaurantID: l.restaurantID,
				GroupID:      target.groupID,
				CurrencyType: input.CurrencyType,
				Amount:       l.amount,
			})
		}
		if err := repo.CreatePurchases(ctx, purchases); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record purchases")
		}

		names, err := restaurantNames(ctx, tx, target.restaurantIDs)
		if err != nil {
			return err
		}
		out = PaymentResultDTO{
			TargetID:     input.TargetID,
			GroupID:      target.groupID,
			CurrencyType: input.CurrencyType,
			Amount:       input.Amount,
			Legs:         legDTOs(legs),
			Balances:     snapshot(rows, names),
		}

		notices = append(notices, notifications.Message{
			UserID: userID,
			Type:   enums.NotificationTypePaymentSent,
			Title:  "Payment sent",
			Body:   fmt.Sprintf("You paid %s", describe(input.CurrencyType, input.Amount)),
			Data:   legData(input.TargetID, input.CurrencyType, input.Amount),
		})
		for _, l := range legs {
			restaurant := names[l.restaurantID]
			notices = append(notices, notifications.Message{
				UserID: restaurant.OwnerID,
				Type:   enums.NotificationTypePaymentReceived,
				Title:  "Payment received",
				Body:   fmt.Sprintf("A customer paid %s at %s", describe(input.CurrencyType, l.amount), restaurant.Name),
				Data:   legData(l.restaurantID, input.CurrencyType, l.amount),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, notices)
	return &out, nil
}

func (s *service) Gift(ctx context.Context, senderID uuid.UUID, input GiftInput) (_ *GiftResultDTO, err error) {
	op := metrics.OpGift
	defer func() { s.observe(ctx, op, err) }()

	code := strings.TrimSpace(input.QRCode)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qrCode is required")
	}
	if err := validateAmount(input.CurrencyType, input.Amount); err != nil {
		return nil, err
	}

	var (
		out     GiftResultDTO
		notices []notifications.Message
	)
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		recipient, err := users.NewRepository(tx).FindByQRCode(ctx, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "recipient not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve recipient")
		}
		if recipient.ID == senderID {
			return pkgerrors.New(pkgerrors.CodeValidation, "cannot send a gift to yourself")
		}

		target, err := resolveTarget(ctx, tx, input.TargetID)
		if err != nil {
			return err
		}
		if target.groupID != nil {
			op = metrics.OpGiftGroup
		}

		repo := NewRepository(tx)
		locked, err := repo.LockRows(ctx, []uuid.UUID{senderID, recipient.ID}, target.restaurantIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock balances")
		}
		var senderRows []*models.UserRestaurantBalance
		recipientRows := make(map[uuid.UUID]*models.UserRestaurantBalance)
		for _, row := range pointers(locked) {
			if row.UserID == senderID {
				senderRows = append(senderRows, row)
			} else {
				recipientRows[row.RestaurantID] = row
			}
		}

		legs, err := planDebit(senderRows, input.CurrencyType, input.Amount)
		if err != nil {
			return err
		}

		bySender := indexByRestaurant(senderRows)
		gifts := make([]models.Gift, 0, len(legs))
		for _, l := range legs {
			if err := s.apply(ctx, repo, bySender[l.restaurantID], input.CurrencyType, l.amount.Neg()); err != nil {
				return err
			}
			credit, ok := recipientRows[l.restaurantID]
			if !ok {
				credit, err = repo.EnsureRow(ctx, recipient.ID, l.restaurantID)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open recipient balance")
				}
			}
			if err := s.apply(ctx, repo, credit, input.CurrencyType, l.amount); err != nil {
				return err
			}
			gifts = append(gifts, models.Gift{
				SenderID:     senderID,
				RecipientID:  recipient.ID,
				RestaurantID: l.restaurantID,
				GroupID:      target.groupID,
				CurrencyType: input.CurrencyType,
				Amount:       l.amount,
			})
		}
		if err := repo.CreateGifts(ctx, gifts); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record gifts")
		}

		names, err := restaurantNames(ctx, tx, target.restaurantIDs)
		if err != nil {
			return err
		}
		out = GiftResultDTO{
			RecipientID:  recipient.ID,
			TargetID:     input.TargetID,
			GroupID:      target.groupID,
			CurrencyType: input.CurrencyType,
			Amount:       input.Amount,
			Legs:         legDTOs(legs),
			Balances:     snapshot(senderRows, names),
		}

		data := legData(input.TargetID, input.CurrencyType, input.Amount)
		notices = append(notices,
			notifications.Message{
				UserID: senderID,
				Type:   enums.NotificationTypeGiftSent,
				Title:  "Gift sent",
				Body:   fmt.Sprintf("You sent %s to %s", describe(input.CurrencyType, input.Amount), recipient.FirstName),
				Data:   data,
			},
			notifications.Message{
				UserID: recipient.ID,
				Type:   enums.NotificationTypeGiftReceived,
				Title:  "Gift received",
				Body:   fmt.Sprintf("You received %s", describe(input.CurrencyType, input.Amount)),
				Data:   data,
			},
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, notices)
	return &out, nil
}

func (s *service) TopUp(ctx context.Context, ownerID, restaurantID uuid.UUID, input TopUpInput) (_ *TopUpResultDTO, err error) {
	defer func() { s.observe(ctx, metrics.OpTopUp, err) }()

	if restaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no active restaurant selected")
	}
	code := strings.TrimSpace(input.UserQR)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "userQr is required")
	}
	if input.PackageID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "packageId is required")
	}

	var (
		out        TopUpResultDTO
		restaurant *models.Restaurant
	)
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		restaurantRepo := restaurants.NewRepository(tx)
		var err error
		restaurant, err = restaurantRepo.FindByID(ctx, restaurantID)
		if err != nil {
			return notFoundOr(err, "restaurant not found", "load restaurant")
		}
		if restaurant.OwnerID != ownerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "restaurant belongs to another owner")
		}
		if !restaurant.IsActive {
			return pkgerrors.New(pkgerrors.CodeForbidden, "restaurant is not active")
		}
		pkg, err := restaurantRepo.FindActivePackage(ctx, restaurantID, input.PackageID)
		if err != nil {
			return notFoundOr(err, "package not found", "load package")
		}
		customer, err := users.NewRepository(tx).FindByQRCode(ctx, code)
		if err != nil {
			return notFoundOr(err, "user not found", "resolve customer")
		}

		repo := NewRepository(tx)
		row, err := repo.EnsureRow(ctx, customer.ID, restaurantID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load balance")
		}
		total := pkg.Total()
		if err := s.apply(ctx, repo, row, enums.CurrencyTypeBalance, total); err != nil {
			return err
		}
		topUp := &models.TopUp{
			UserID:       customer.ID,
			RestaurantID: restaurantID,
			PackageID:    pkg.ID,
			Amount:       pkg.Amount,
			Bonus:        pkg.Bonus,
			Total:        total,
		}
		if err := repo.CreateTopUp(ctx, topUp); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record top-up")
		}
		out = TopUpResultDTO{
			UserID:  customer.ID,
			Amount:  pkg.Amount,
			Bonus:   pkg.Bonus,
			Total:   total,
			Balance: toDTO(row, restaurant.Name),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notifications.Message{
		UserID: out.UserID,
		Type:   enums.NotificationTypeTopUp,
		Title:  "Balance topped up",
		Body:   fmt.Sprintf("%s added %s to your balance", restaurant.Name, out.Total.StringFixed(2)),
		Data:   legData(restaurantID, enums.CurrencyTypeBalance, out.Total),
	})
	return &out, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]BalanceDTO, error) {
	conn := s.db.DB()
	rows, err := NewRepository(conn).ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list balances")
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.RestaurantID)
	}
	names, err := restaurantNames(ctx, conn, ids)
	if err != nil {
		return nil, err
	}
	return snapshot(pointers(rows), names), nil
}

func (s *service) Get(ctx context.Context, userID, restaurantID uuid.UUID) (*BalanceDTO, error) {
	conn := s.db.DB()
	restaurant, err := restaurants.NewRepository(conn).FindByID(ctx, restaurantID)
	if err != nil {
		return nil, notFoundOr(err, "restaurant not found", "load restaurant")
	}
	row, err := NewRepository(conn).Find(ctx, userID, restaurantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			dto := emptyDTO(restaurant.ID, restaurant.Name)
			return &dto, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load balance")
	}
	dto := toDTO(row, restaurant.Name)
	return &dto, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[HistoryEntryDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[HistoryEntryDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	entries, err := NewRepository(s.db.DB()).History(ctx, userID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return pagination.Page[HistoryEntryDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load history")
	}
	return pagination.NewPage(entries, params.Limit, func(e HistoryEntryDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	}), nil
}

// apply adds delta to one counter of a locked row and persists it.
func (s *service) apply(ctx context.Context, repo *Repository, row *models.UserRestaurantBalance, currency enums.CurrencyType, delta decimal.Decimal) error {
	next := counter(row, currency).Add(delta)
	if next.IsNegative() {
		return insufficient(currency)
	}
	setCounter(row, currency, next)
	if err := repo.SetCounter(ctx, row, currency); err != nil {
		if db.IsCheckViolation(err, "") {
			return insufficient(currency)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update balance")
	}
	return nil
}

func (s *service) dispatch(ctx context.Context, msgs []notifications.Message) {
	for _, msg := range msgs {
		if msg.UserID == uuid.Nil {
			continue
		}
		s.notifier.Notify(ctx, msg)
	}
}

func (s *service) observe(ctx context.Context, op string, err error) {
	outcome := outcomeOf(err)
	s.metrics.Inc(op, outcome)
	if outcome == metrics.OutcomeError {
		s.logg.Error(s.logg.WithField(ctx, "operation", op), "ledger operation failed", err)
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		return metrics.OutcomeError
	}
	switch typed.Code() {
	case pkgerrors.CodeInsufficientFunds:
		return metrics.OutcomeInsufficient
	case pkgerrors.CodeInternal, pkgerrors.CodeDependency:
		return metrics.OutcomeError
	default:
		return metrics.OutcomeRejected
	}
}

type target struct {
	groupID       *uuid.UUID
	restaurantIDs []uuid.UUID
}

// resolveTarget treats id as a restaurant first and a group second.
func resolveTarget(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*target, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "targetId is required")
	}
	_, err := restaurants.NewRepository(tx).FindByID(ctx, id)
	switch {
	case err == nil:
		return &target{restaurantIDs: []uuid.UUID{id}}, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve target")
	}

	ids, err := groups.NewRepository(tx).MemberRestaurantIDs(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "restaurant or group not found", "resolve group")
	}
	groupID := id
	return &target{groupID: &groupID, restaurantIDs: ids}, nil
}

func restaurantNames(ctx context.Context, conn *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Restaurant, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]models.Restaurant{}, nil
	}
	byID, err := restaurants.NewRepository(conn).FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load restaurants")
	}
	return byID, nil
}

func notFoundOr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

func pointers(rows []models.UserRestaurantBalance) []*models.UserRestaurantBalance {
	out := make([]*models.UserRestaurantBalance, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out
}

func indexByRestaurant(rows []*models.UserRestaurantBalance) map[uuid.UUID]*models.UserRestaurantBalance {
	out := make(map[uuid.UUID]*models.UserRestaurantBalance, len(rows))
	for _, row := range rows {
		out[row.RestaurantID] = row
	}
	return out
}

func snapshot(rows []*models.UserRestaurantBalance, names map[uuid.UUID]models.Restaurant) []BalanceDTO {
	out := make([]BalanceDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row, names[row.RestaurantID].Name))
	}
	return out
}

func describe(currency enums.CurrencyType, amount decimal.Decimal) string {
	switch currency {
	case enums.CurrencyTypeStarsMeal:
		return amount.String() + " meal stars"
	case enums.CurrencyTypeStarsDrink:
		return amount.String() + " drink stars"
	default:
		return amount.StringFixed(2)
	}
}

func legData(targetID uuid.UUID, currency enums.CurrencyType, amount decimal.Decimal) map[string]any {
	return map[string]any{
		"targetId":     targetID.String(),
		"currencyType": string(currency),
		"amount":       amount.String(),
	}
}
