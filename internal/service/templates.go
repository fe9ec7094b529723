package service

import (
	"context"
	"fmt"

	"quote-service/internal/lifecycle"
	"quote-service/internal/models"
	"quote-service/internal/util"

	"go.uber.org/zap"
)

// TemplateStore is the persistence surface for email templates
type TemplateStore interface {
	CreateTemplate(ctx context.Context, tpl *models.EmailTemplate) error
	GetTemplatesByScope(ctx context.Context, scope string) ([]models.EmailTemplate, error)
	GetDefaultTemplate(ctx context.Context, scope string) (*models.EmailTemplate, error)
	SetDefaultTemplateTx(ctx context.Context, scope string, templateID int64) error
}

// TemplateService manages the email templates the renderer draws from.
// Template management is an admin surface; rendering reads the per-scope
// default through the store directly.
type TemplateService struct {
	store  TemplateStore
	logger *zap.Logger
}

// NewTemplateService creates a template service
func NewTemplateService(store TemplateStore) *TemplateService {
	return &TemplateService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// Create validates and saves a template. When the caller asks for it to be
// the scope's default, the exclusivity swap runs through the same atomic
// path as SetDefault.
func (ts *TemplateService) Create(ctx context.Context, id Identity, tpl *models.EmailTemplate) error {
	ctx, span := util.StartSpan(ctx, "TemplateService.Create")
	defer span.End()

	if id.Actor != lifecycle.ActorAdmin {
		return models.ErrPermissionDenied
	}
	if !validTemplateScope(tpl.Scope) {
		return models.NewValidationError("scope", fmt.Sprintf("unknown template scope %q", tpl.Scope))
	}
	if tpl.Name == "" {
		return models.NewValidationError("name", "required")
	}
	if tpl.Subject == "" || tpl.Body == "" {
		return models.NewValidationError("template", "subject and body are required")
	}

	wantDefault := tpl.IsDefault
	tpl.IsDefault = false
	if err := ts.store.CreateTemplate(ctx, tpl); err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}

	if wantDefault {
		if err := ts.store.SetDefaultTemplateTx(ctx, tpl.Scope, tpl.ID); err != nil {
			return fmt.Errorf("failed to set default template: %w", err)
		}
		tpl.IsDefault = true
	}

	ts.logger.Info("Email template created",
		zap.String("scope", tpl.Scope),
		zap.String("name", tpl.Name),
		zap.Bool("default", tpl.IsDefault))
	return nil
}

// ListByScope returns every template in a scope
func (ts *TemplateService) ListByScope(ctx context.Context, id Identity, scope string) ([]models.EmailTemplate, error) {
	if id.Actor != lifecycle.ActorAdmin {
		return nil, models.ErrPermissionDenied
	}
	if !validTemplateScope(scope) {
		return nil, models.NewValidationError("scope", fmt.Sprintf("unknown template scope %q", scope))
	}
	return ts.store.GetTemplatesByScope(ctx, scope)
}

// SetDefault makes one template the scope's default. The store applies
// unset-all-then-set-one in a single transaction, so a scope can never end
// up with two defaults.
func (ts *TemplateService) SetDefault(ctx context.Context, id Identity, scope string, templateID int64) error {
	ctx, span := util.StartSpan(ctx, "TemplateService.SetDefault")
	defer span.End()

	if id.Actor != lifecycle.ActorAdmin {
		return models.ErrPermissionDenied
	}
	if !validTemplateScope(scope) {
		return models.NewValidationError("scope", fmt.Sprintf("unknown template scope %q", scope))
	}
	return ts.store.SetDefaultTemplateTx(ctx, scope, templateID)
}

func validTemplateScope(scope string) bool {
	switch scope {
	case models.TemplateScopeVendorEmail, models.TemplateScopeConfirmation:
		return true
	}
	return false
}
