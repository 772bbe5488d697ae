package walletdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/wallet"
	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/werr"
)

// InitAccounts inserts one account per extfvk, in order starting at id
// 0, deriving each account's default address via deriveAddress. It is a
// one-time operation: the accounts table must be empty beforehand.
func (d *DB) InitAccounts(ctx context.Context, extfvks []string, deriveAddress func(extfvk string) string) ([]wallet.Account, error) {
	var accounts []wallet.Account
	err := d.withWriteTx(ctx, func(ctx context.Context, ex execer) error {
		var count int
		if err := ex.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count); err != nil {
			return werr.Wrap(err)
		}
		if count > 0 {
			return werr.ErrTableNotEmpty
		}

		for i, extfvk := range extfvks {
			address := deriveAddress(extfvk)
			if _, err := ex.ExecContext(ctx,
				"INSERT INTO accounts (account, extfvk, address) VALUES (?, ?, ?)",
				i, extfvk, address); err != nil {
				return werr.Wrap(err)
			}
			accounts = append(accounts, wallet.Account{ID: uint32(i), ExtFVK: extfvk, Address: address})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetAddress returns the default address for account.
func (d *DB) GetAddress(ctx context.Context, account uint32) (string, error) {
	var address string
	err := d.conn.QueryRowContext(ctx, "SELECT address FROM accounts WHERE account = ?", account).Scan(&address)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("walletdb: no such account %d", account)
	}
	if err != nil {
		return "", werr.Wrap(err)
	}
	return address, nil
}

// GetExtFVKs returns every account's extended full viewing key, ordered
// by account id.
func (d *DB) GetExtFVKs(ctx context.Context) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx, "SELECT extfvk FROM accounts ORDER BY account")
	if err != nil {
		return nil, werr.Wrap(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var extfvk string
		if err := rows.Scan(&extfvk); err != nil {
			return nil, werr.Wrap(err)
		}
		out = append(out, extfvk)
	}
	return out, werr.Wrap(rows.Err())
}

// IsValidAccountExtFVK reports whether account's stored ExtFVK equals k.
func (d *DB) IsValidAccountExtFVK(ctx context.Context, account uint32, k string) (bool, error) {
	var extfvk string
	err := d.conn.QueryRowContext(ctx, "SELECT extfvk FROM accounts WHERE account = ?", account).Scan(&extfvk)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, werr.Wrap(err)
	}
	return extfvk == k, nil
}
