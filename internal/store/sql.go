package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/mysterymsg/mystery/internal/database"
	"github.com/mysterymsg/mystery/internal/models"
)

var _ Store = (*SQLStore)(nil)

// SQLStore keeps accounts and messages in relational tables through gorm.
type SQLStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSQLStore wraps a migrated gorm handle.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("sql store: db is required")
	}
	return &SQLStore{db: db, now: time.Now}, nil
}

func (s *SQLStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *SQLStore) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	return s.first(ctx, "username = ?", username)
}

func (s *SQLStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.first(ctx, "email = ?", email)
}

func (s *SQLStore) FindByIdentifier(ctx context.Context, identifier string) (*models.Account, error) {
	return s.first(ctx, "username = ? OR email = ?", identifier, strings.ToLower(identifier))
}

func (s *SQLStore) CreatePending(ctx context.Context, reg Registration) (*models.Account, error) {
	account := &models.Account{
		Username:            reg.Username,
		Email:               reg.Email,
		PasswordHash:        reg.PasswordHash,
		VerifyCode:          reg.Code,
		VerifyCodeExpiry:    reg.CodeExpiry,
		IsVerified:          false,
		IsAcceptingMessages: true,
	}

	if err := s.db.WithContext(ensureContext(ctx)).Create(account).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("sql store: create account: %w", err)
	}
	return account, nil
}

func (s *SQLStore) OverwritePending(ctx context.Context, match Match, reg Registration) (*models.Account, error) {
	var (
		column string
		key    string
	)
	switch match {
	case MatchEmail:
		column, key = "email", reg.Email
	case MatchUsername:
		column, key = "username", reg.Username
	default:
		return nil, fmt.Errorf("sql store: unsupported match %q", match)
	}

	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where(column+" = ? AND is_verified = ?", key, false).
		Updates(map[string]any{
			"username":           reg.Username,
			"email":              reg.Email,
			"password_hash":      reg.PasswordHash,
			"verify_code":        reg.Code,
			"verify_code_expiry": reg.CodeExpiry,
			"updated_at":         s.now(),
		})
	if result.Error != nil {
		if isUniqueConstraintError(result.Error) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("sql store: overwrite pending account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	return s.first(ctx, column+" = ?", key)
}

func (s *SQLStore) ReissueCode(ctx context.Context, accountID, code string, expiry time.Time) error {
	result := s.db.WithContext(ensureContext(ctx)).
		Model(&models.Account{}).
		Where("id = ? AND is_verified = ?", accountID, false).
		Updates(map[string]any{
			"verify_code":        code,
			"verify_code_expiry": expiry,
			"updated_at":         s.now(),
		})
	if result.Error != nil {
		return fmt.Errorf("sql store: reissue code: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) MarkVerified(ctx context.Context, accountID, code string) error {
	result := s.db.WithContext(ensureContext(ctx)).
		Model(&models.Account{}).
		Where("id = ? AND verify_code = ?", accountID, code).
		Updates(map[string]any{
			"is_verified": true,
			"updated_at":  s.now(),
		})
	if result.Error != nil {
		return fmt.Errorf("sql store: mark verified: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) SetAcceptingMessages(ctx context.Context, accountID string, accepting bool) (*models.Account, error) {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"is_accepting_messages": accepting,
			"updated_at":            s.now(),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("sql store: set accepting messages: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.first(ctx, "id = ?", accountID)
}

func (s *SQLStore) AppendMessage(ctx context.Context, accountID string, msg *models.Message) error {
	if msg == nil {
		return errors.New("sql store: message is required")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	// Stored in UTC so textual timestamps on SQLite sort chronologically.
	msg.CreatedAt = msg.CreatedAt.UTC()
	msg.AccountID = accountID

	ctx = ensureContext(ctx)
	// The insert is guarded by the account lookup so a missing owner reports ErrNotFound
	// on drivers where foreign keys are not enforced.
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Account{}).Where("id = ?", accountID).Count(&count).Error; err != nil {
			return fmt.Errorf("sql store: lookup inbox owner: %w", err)
		}
		if count == 0 {
			return ErrNotFound
		}
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("sql store: append message: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) ListMessages(ctx context.Context, accountID string) ([]models.Message, error) {
	messages := make([]models.Message, 0)
	err := s.db.WithContext(ensureContext(ctx)).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("sql store: list messages: %w", err)
	}
	return messages, nil
}

func (s *SQLStore) DeleteMessage(ctx context.Context, accountID, messageID string) error {
	result := s.db.WithContext(ensureContext(ctx)).
		Where("id = ? AND account_id = ?", messageID, accountID).
		Delete(&models.Message{})
	if result.Error != nil {
		return fmt.Errorf("sql store: delete message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	var stats Stats

	if err := s.db.WithContext(ctx).Model(&models.Account{}).Where("is_verified = ?", true).Count(&stats.VerifiedAccounts).Error; err != nil {
		return Stats{}, fmt.Errorf("sql store: count verified accounts: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Account{}).Where("is_verified = ?", false).Count(&stats.PendingAccounts).Error; err != nil {
		return Stats{}, fmt.Errorf("sql store: count pending accounts: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Message{}).Count(&stats.Messages).Error; err != nil {
		return Stats{}, fmt.Errorf("sql store: count messages: %w", err)
	}
	return stats, nil
}

// DB exposes the underlying connection for components sharing the database.
func (s *SQLStore) DB() *gorm.DB {
	return s.db
}

func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ensureContext(ctx))
}

func (s *SQLStore) Close(context.Context) error {
	return database.Close(s.db)
}

func (s *SQLStore) first(ctx context.Context, query string, args ...any) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ensureContext(ctx)).Where(query, args...).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("sql store: load account: %w", err)
	}
	return &account, nil
}

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") || strings.Contains(lower, "duplicate")
}
