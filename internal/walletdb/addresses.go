package walletdb

import (
	"context"

	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/werr"
)

// AddDiversifiedAddress records a secondary diversified address handed
// out for account, beyond the single default address accounts.address
// holds. Re-adding the same (account, diversifier) pair is a no-op.
func (d *DB) AddDiversifiedAddress(ctx context.Context, account uint32, diversifier [11]byte, address string) error {
	return d.withWriteTx(ctx, func(ctx context.Context, ex execer) error {
		_, err := ex.ExecContext(ctx, `
			INSERT INTO addresses (account, diversifier, address)
			VALUES (?, ?, ?)
			ON CONFLICT(account, diversifier) DO NOTHING
		`, account, diversifier[:], address)
		return werr.Wrap(err)
	})
}

// GetDiversifiedAddresses returns every secondary address handed out for
// account, keyed by diversifier.
func (d *DB) GetDiversifiedAddresses(ctx context.Context, account uint32) (map[[11]byte]string, error) {
	rows, err := d.conn.QueryContext(ctx, "SELECT diversifier, address FROM addresses WHERE account = ?", account)
	if err != nil {
		return nil, werr.Wrap(err)
	}
	defer rows.Close()

	out := make(map[[11]byte]string)
	for rows.Next() {
		var raw []byte
		var address string
		if err := rows.Scan(&raw, &address); err != nil {
			return nil, werr.Wrap(err)
		}
		var diversifier [11]byte
		copy(diversifier[:], raw)
		out[diversifier] = address
	}
	return out, werr.Wrap(rows.Err())
}
