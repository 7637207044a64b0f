package accounts

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrAccountNotFound = errors.New("account not found")

// Directory resolves user identities referenced by conversations and
// messages. The delivery pipeline depends only on this interface.
type Directory interface {
	AccountExists(ctx context.Context, userID int) (bool, error)
	DisplayName(ctx context.Context, userID int) (string, error)
	DisplayNames(ctx context.Context, userIDs []int) (map[int]string, error)
}

// SQLDirectory looks accounts up in the accounts table.
type SQLDirectory struct {
	db *sqlx.DB
}

// NewSQLDirectory constructs a SQLDirectory.
func NewSQLDirectory(db *sqlx.DB) *SQLDirectory {
	return &SQLDirectory{db: db}
}

// AccountExists reports whether the account id is known.
func (d *SQLDirectory) AccountExists(ctx context.Context, userID int) (bool, error) {
	var exists bool
	err := d.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id=$1)`, userID)
	return exists, err
}

// DisplayName returns the account's display name.
func (d *SQLDirectory) DisplayName(ctx context.Context, userID int) (string, error) {
	var name string
	err := d.db.GetContext(ctx, &name, `SELECT display_name FROM accounts WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrAccountNotFound
	}
	return name, err
}

// DisplayNames fetches display names for multiple accounts in one query.
func (d *SQLDirectory) DisplayNames(ctx context.Context, userIDs []int) (map[int]string, error) {
	names := make(map[int]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}

	query, args, err := sqlx.In(`SELECT id, display_name FROM accounts WHERE id IN (?)`, userIDs)
	if err != nil {
		return nil, err
	}
	rows, err := d.db.QueryxContext(ctx, d.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}
