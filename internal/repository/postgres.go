// Package repository provides the persistence substrate: a postgres store
// for deployments and an in-memory store for tests and database-less runs.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bankcards/card-service/internal/models"
)

const uniqueViolation = "23505"

// Postgres provides database operations over database/sql.
type Postgres struct {
	db *sql.DB
}

// NewPostgres initializes a postgres-backed store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// CreateUser inserts a new user.
func (r *Postgres) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, email, phone_number, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
		RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Username, user.Email, user.PhoneNumber, user.PasswordHash, user.Role).
		Scan(&user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UserByID retrieves a user by id.
func (r *Postgres) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, username, email, phone_number, password_hash, role, created_at
		FROM users WHERE id = $1`, id))
}

// UserByUsername retrieves a user by username.
func (r *Postgres) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, username, email, phone_number, password_hash, role, created_at
		FROM users WHERE username = $1`, username))
}

func (r *Postgres) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PhoneNumber,
		&user.PasswordHash, &user.Role, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// UsernameExists reports whether a user with the username exists.
func (r *Postgres) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return exists, nil
}

// PhoneExists reports whether a user with the phone number exists.
func (r *Postgres) PhoneExists(ctx context.Context, phone string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE phone_number = $1)`, phone).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check phone number: %w", err)
	}
	return exists, nil
}

// CreateCard inserts a new card. A unique index on the encrypted number
// turns concurrent collisions into ErrDuplicateCardNumber.
func (r *Postgres) CreateCard(ctx context.Context, card *models.Card) error {
	query := `
		INSERT INTO cards (id, card_number_encrypted, last_four, owner_id, expiry_date, status, balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP)
		RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query,
		card.ID, card.EncryptedNumber, card.LastFour, card.OwnerID,
		card.Expiry, card.Status, card.Balance).
		Scan(&card.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateCardNumber
	}
	if err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

const cardColumns = `id, card_number_encrypted, last_four, owner_id, expiry_date, status, balance, created_at`

// CardByID retrieves a card by id. Soft-deleted cards stay visible.
func (r *Postgres) CardByID(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	return scanCard(r.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = $1`, id))
}

// CardByIDAndOwner retrieves a card only when it belongs to the owner.
func (r *Postgres) CardByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Card, error) {
	return scanCard(r.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = $1 AND owner_id = $2`, id, ownerID))
}

func scanCard(row *sql.Row) (*models.Card, error) {
	card := &models.Card{}
	err := row.Scan(&card.ID, &card.EncryptedNumber, &card.LastFour, &card.OwnerID,
		&card.Expiry, &card.Status, &card.Balance, &card.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find card: %w", err)
	}
	return card, nil
}

// UpdateCard persists status and balance.
func (r *Postgres) UpdateCard(ctx context.Context, card *models.Card) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cards SET status = $2, balance = $3 WHERE id = $1`,
		card.ID, card.Status, card.Balance)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CardNumberExists reports whether the encrypted number is already stored.
func (r *Postgres) CardNumberExists(ctx context.Context, encrypted string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM cards WHERE card_number_encrypted = $1)`, encrypted).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check card number: %w", err)
	}
	return exists, nil
}

// CardsByOwner lists the owner's cards, newest first. A non-empty lastFour
// narrows the listing to matching last digits.
func (r *Postgres) CardsByOwner(ctx context.Context, ownerID uuid.UUID, lastFour string, page, size int) ([]models.Card, int64, error) {
	where := `WHERE owner_id = $1`
	args := []any{ownerID}
	if lastFour != "" {
		where += ` AND last_four LIKE '%' || $2 || '%'`
		args = append(args, lastFour)
	}
	return r.listCards(ctx, where, args, page, size)
}

// AllCards lists every card, newest first.
func (r *Postgres) AllCards(ctx context.Context, page, size int) ([]models.Card, int64, error) {
	return r.listCards(ctx, ``, nil, page, size)
}

func (r *Postgres) listCards(ctx context.Context, where string, args []any, page, size int) ([]models.Card, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count cards: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM cards %s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`,
		cardColumns, where, size, page*size)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		var card models.Card
		if err := rows.Scan(&card.ID, &card.EncryptedNumber, &card.LastFour, &card.OwnerID,
			&card.Expiry, &card.Status, &card.Balance, &card.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, total, rows.Err()
}

// ExpireActiveCards blocks every active card whose expiry month has passed
// and returns how many cards changed.
func (r *Postgres) ExpireActiveCards(ctx context.Context, before models.YearMonth) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cards SET status = $1 WHERE status = $2 AND expiry_date < $3`,
		models.CardBlocked, models.CardActive, before)
	if err != nil {
		return 0, fmt.Errorf("failed to expire cards: %w", err)
	}
	return res.RowsAffected()
}

// SaveTransfer commits both balance mutations and the transaction row
// atomically. Rows are locked FOR UPDATE in ascending id order inside the
// database transaction, matching the in-process lock discipline, so the
// commit itself cannot deadlock or leave a partial write. Serialization of
// the funds check against concurrent mutations comes from the service's
// lock table, which assumes a single process; a multi-instance deployment
// would need the check re-run inside this transaction.
func (r *Postgres) SaveTransfer(ctx context.Context, from, to *models.Card, txn *models.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transfer: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM cards WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
		pq.Array([]uuid.UUID{from.ID, to.ID}))
	if err != nil {
		return fmt.Errorf("failed to lock cards: %w", err)
	}
	if err := drain(rows); err != nil {
		return fmt.Errorf("failed to lock cards: %w", err)
	}

	for _, card := range []*models.Card{from, to} {
		if _, err := tx.ExecContext(ctx,
			`UPDATE cards SET balance = $2 WHERE id = $1`, card.ID, card.Balance); err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, amount, from_card_id, to_card_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		txn.ID, txn.Amount, txn.FromCardID, txn.ToCardID, txn.CreatedAt); err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}
	return nil
}

func drain(rows *sql.Rows) error {
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

const txnColumns = `t.id, t.amount, t.from_card_id, t.to_card_id, t.created_at`

// TransactionsByOwner lists transactions where the user owns either side,
// newest first.
func (r *Postgres) TransactionsByOwner(ctx context.Context, ownerID uuid.UUID, page, size int) ([]models.Transaction, int64, error) {
	join := `FROM transactions t
		JOIN cards f ON f.id = t.from_card_id
		JOIN cards d ON d.id = t.to_card_id
		WHERE f.owner_id = $1 OR d.owner_id = $1`
	return r.listTransactions(ctx, join, []any{ownerID}, page, size)
}

// TransactionsByCard lists transactions touching one card, newest first.
func (r *Postgres) TransactionsByCard(ctx context.Context, cardID uuid.UUID, page, size int) ([]models.Transaction, int64, error) {
	where := `FROM transactions t WHERE t.from_card_id = $1 OR t.to_card_id = $1`
	return r.listTransactions(ctx, where, []any{cardID}, page, size)
}

func (r *Postgres) listTransactions(ctx context.Context, from string, args []any, page, size int) ([]models.Transaction, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) `+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s %s ORDER BY t.created_at DESC, t.id DESC LIMIT %d OFFSET %d`,
		txnColumns, from, size, page*size)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		var txn models.Transaction
		if err := rows.Scan(&txn.ID, &txn.Amount, &txn.FromCardID, &txn.ToCardID, &txn.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	return txns, total, rows.Err()
}
