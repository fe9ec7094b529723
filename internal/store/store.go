package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"quote-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetLabByID retrieves a lab by ID
func (s *Store) GetLabByID(ctx context.Context, id int64) (*models.Lab, error) {
	var lab models.Lab
	err := s.db.GetContext(ctx, &lab, "SELECT * FROM labs WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("lab not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &lab, nil
}

// CreatePaymentMethod creates a saved payment method
func (s *Store) CreatePaymentMethod(ctx context.Context, pm *models.PaymentMethod) error {
	query := `
		INSERT INTO payment_methods (owner_id, method_type, label, details, is_default)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, pm, query,
		pm.OwnerID, pm.MethodType, pm.Label, pm.Details, pm.IsDefault)
}

// GetPaymentMethodByID retrieves a payment method by ID
func (s *Store) GetPaymentMethodByID(ctx context.Context, id int64) (*models.PaymentMethod, error) {
	var pm models.PaymentMethod
	err := s.db.GetContext(ctx, &pm, "SELECT * FROM payment_methods WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment method not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &pm, nil
}

// GetPaymentMethodsByOwner retrieves all payment methods for an owner
func (s *Store) GetPaymentMethodsByOwner(ctx context.Context, ownerID int64) ([]models.PaymentMethod, error) {
	var methods []models.PaymentMethod
	err := s.db.SelectContext(ctx, &methods,
		"SELECT * FROM payment_methods WHERE owner_id = $1 ORDER BY created_at", ownerID)
	return methods, err
}

// DeletePaymentMethod removes a payment method owned by ownerID
func (s *Store) DeletePaymentMethod(ctx context.Context, ownerID, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM payment_methods WHERE id = $1 AND owner_id = $2", id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("payment method not found: %d", id)
	}
	return nil
}

// SetDefaultPaymentMethodTx makes one method the owner's default. Unset-all
// then set-one runs inside a single transaction so two concurrent calls can
// never leave two defaults, or zero.
func (s *Store) SetDefaultPaymentMethodTx(ctx context.Context, ownerID, methodID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE payment_methods SET is_default = FALSE WHERE owner_id = $1", ownerID); err != nil {
		return fmt.Errorf("failed to unset defaults: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE payment_methods SET is_default = TRUE WHERE id = $1 AND owner_id = $2",
		methodID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to set default: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("payment method not found: %d", methodID)
	}

	return tx.Commit()
}

// GetDefaultTemplate retrieves the default email template for a scope
func (s *Store) GetDefaultTemplate(ctx context.Context, scope string) (*models.EmailTemplate, error) {
	var tpl models.EmailTemplate
	err := s.db.GetContext(ctx, &tpl,
		"SELECT * FROM email_templates WHERE scope = $1 AND is_default = TRUE", scope)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no default template for scope %s", scope)
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

// GetTemplatesByScope retrieves all templates in a scope
func (s *Store) GetTemplatesByScope(ctx context.Context, scope string) ([]models.EmailTemplate, error) {
	var tpls []models.EmailTemplate
	err := s.db.SelectContext(ctx, &tpls,
		"SELECT * FROM email_templates WHERE scope = $1 ORDER BY name", scope)
	return tpls, err
}

// CreateTemplate creates an email template
func (s *Store) CreateTemplate(ctx context.Context, tpl *models.EmailTemplate) error {
	query := `
		INSERT INTO email_templates (scope, name, subject, body, is_default)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, tpl, query,
		tpl.Scope, tpl.Name, tpl.Subject, tpl.Body, tpl.IsDefault)
}

// SetDefaultTemplateTx makes one template the scope's default, with the same
// unset-all-then-set-one discipline as payment method defaults
func (s *Store) SetDefaultTemplateTx(ctx context.Context, scope string, templateID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE email_templates SET is_default = FALSE WHERE scope = $1", scope); err != nil {
		return fmt.Errorf("failed to unset defaults: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE email_templates SET is_default = TRUE WHERE id = $1 AND scope = $2",
		templateID, scope)
	if err != nil {
		return fmt.Errorf("failed to set default: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("template not found in scope %s: %d", scope, templateID)
	}

	return tx.Commit()
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
