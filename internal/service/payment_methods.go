package service

import (
	"context"
	"fmt"

	"quote-service/internal/models"
	"quote-service/internal/util"

	"go.uber.org/zap"
)

// PaymentMethodStore is the persistence surface for saved payment methods
type PaymentMethodStore interface {
	CreatePaymentMethod(ctx context.Context, pm *models.PaymentMethod) error
	GetPaymentMethodByID(ctx context.Context, id int64) (*models.PaymentMethod, error)
	GetPaymentMethodsByOwner(ctx context.Context, ownerID int64) ([]models.PaymentMethod, error)
	DeletePaymentMethod(ctx context.Context, ownerID, id int64) error
	SetDefaultPaymentMethodTx(ctx context.Context, ownerID, methodID int64) error
}

// PaymentMethodService manages requester-owned payment profiles
type PaymentMethodService struct {
	store  PaymentMethodStore
	logger *zap.Logger
}

// NewPaymentMethodService creates a payment method service
func NewPaymentMethodService(store PaymentMethodStore) *PaymentMethodService {
	return &PaymentMethodService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// Create validates and saves a payment method. When the caller asks for it
// to be the default, the exclusivity swap runs through the same atomic path
// as SetDefault.
func (ps *PaymentMethodService) Create(ctx context.Context, pm *models.PaymentMethod) error {
	ctx, span := util.StartSpan(ctx, "PaymentMethodService.Create")
	defer span.End()

	if err := pm.ValidateDetails(); err != nil {
		return err
	}

	wantDefault := pm.IsDefault
	pm.IsDefault = false
	if err := ps.store.CreatePaymentMethod(ctx, pm); err != nil {
		return fmt.Errorf("failed to create payment method: %w", err)
	}

	if wantDefault {
		if err := ps.store.SetDefaultPaymentMethodTx(ctx, pm.OwnerID, pm.ID); err != nil {
			return fmt.Errorf("failed to set default: %w", err)
		}
		pm.IsDefault = true
	}

	ps.logger.Info("Payment method created",
		zap.Int64("owner_id", pm.OwnerID),
		zap.String("method_type", pm.MethodType))
	return nil
}

// List returns the owner's saved methods
func (ps *PaymentMethodService) List(ctx context.Context, ownerID int64) ([]models.PaymentMethod, error) {
	return ps.store.GetPaymentMethodsByOwner(ctx, ownerID)
}

// SetDefault makes one method the owner's default. The store applies
// unset-all-then-set-one as a single transaction, so concurrent calls
// cannot leave two defaults or zero.
func (ps *PaymentMethodService) SetDefault(ctx context.Context, ownerID, methodID int64) error {
	ctx, span := util.StartSpan(ctx, "PaymentMethodService.SetDefault")
	defer span.End()

	pm, err := ps.store.GetPaymentMethodByID(ctx, methodID)
	if err != nil {
		return err
	}
	if pm.OwnerID != ownerID {
		return models.ErrPermissionDenied
	}

	return ps.store.SetDefaultPaymentMethodTx(ctx, ownerID, methodID)
}

// Delete removes a method owned by ownerID
func (ps *PaymentMethodService) Delete(ctx context.Context, ownerID, methodID int64) error {
	return ps.store.DeletePaymentMethod(ctx, ownerID, methodID)
}
