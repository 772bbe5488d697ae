package scan

import (
	"context"

	"github.com/Klingon-tech/zcash-shielded-wallet/internal/walletdb"
	"github.com/Klingon-tech/zcash-shielded-wallet/internal/witness"
	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/compact"
	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/logging"
	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/wallet"
	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/werr"
)

// Scanner carries the commitment tree and the live set of incremental
// witnesses forward across blocks, alongside the account viewing keys
// it trial-decrypts against. It owns no storage itself: ScanBlock takes
// one compact block and the store's current unspent-nullifier set,
// advances the scanner's own tree and witnesses in place, and returns a
// PrunedBlock and the witness snapshots advance_by_block should persist
// alongside it.
type Scanner struct {
	log       *logging.Logger
	decryptor Decryptor
	accounts  []AccountKey
	tree      *witness.Tree
	live      map[walletdb.NoteKey]*witness.IncrementalWitness
}

// New builds a scanner resuming from tree, the commitment tree state as
// of the last block already ingested (the empty tree for a wallet with
// no history yet).
func New(decryptor Decryptor, accounts []AccountKey, tree *witness.Tree, log *logging.Logger) *Scanner {
	if log == nil {
		log = logging.Default()
	}
	return &Scanner{
		log:       log.Component("scan"),
		decryptor: decryptor,
		accounts:  accounts,
		tree:      tree,
		live:      make(map[walletdb.NoteKey]*witness.IncrementalWitness),
	}
}

// LoadWitness resumes tracking of an already-known note, so a restarted
// process keeps extending witnesses for notes discovered in prior runs
// instead of only the ones it rediscovers this session.
func (s *Scanner) LoadWitness(key walletdb.NoteKey, data []byte) error {
	w, err := witness.DeserializeWitness(data, s.tree.Combiner)
	if err != nil {
		return err
	}
	s.live[key] = w
	return nil
}

// ScanBlock implements spec's five-step scanning algorithm plus the
// witness-tracker's per-block tree/witness bookkeeping. expectedPrevHash
// is the caller's current tip hash (or a rewind checkpoint's hash);
// unspentNullifiers is every received note's nullifier the store does
// not yet consider spent, keyed to the note's row id for SpendInfo.
func (s *Scanner) ScanBlock(
	ctx context.Context,
	block compact.Block,
	expectedPrevHash [32]byte,
	unspentNullifiers map[[32]byte]int64,
) (wallet.PrunedBlock, map[walletdb.NoteKey][]byte, error) {
	if block.PrevHash != expectedPrevHash {
		return wallet.PrunedBlock{}, nil, werr.ErrChainForked
	}

	var walletTxs []wallet.WalletTx

	for txIdx, tx := range block.Txs {
		var outputs []wallet.ShieldedOutput
		for outIdx, out := range tx.Outputs {
			position := s.tree.Size()

			dec, key, ok := s.decrypt(out)

			var w *witness.IncrementalWitness
			if ok {
				w = witness.NewWitness(s.tree, out.Commitment)
			}

			// Every witness already live (created at an earlier position)
			// must see this leaf; w itself isn't in s.live yet, so it
			// never gets extended with its own leaf here.
			for _, liveW := range s.live {
				if err := liveW.Extend(out.Commitment); err != nil {
					return wallet.PrunedBlock{}, nil, err
				}
			}

			if _, err := s.tree.Append(out.Commitment); err != nil {
				return wallet.PrunedBlock{}, nil, err
			}

			if ok {
				noteKey := walletdb.NoteKey{TxID: tx.TxID, OutputIndex: uint32(outIdx)}
				s.live[noteKey] = w

				note := wallet.ReceivedNote{
					OutputIndex: uint32(outIdx),
					Account:     key.Account,
					Diversifier: dec.Diversifier,
					Value:       dec.Value,
					Rcm:         dec.Rcm,
					Nullifier:   dec.Nullifier,
					IsChange:    dec.IsChange,
					Memo:        dec.Memo,
				}
				nf := dec.Nullifier
				outputs = append(outputs, wallet.ShieldedOutput{
					Kind:      wallet.NoteKindDecrypted,
					Index:     uint32(outIdx),
					Account:   key.Account,
					To:        dec.Diversifier,
					Note:      note,
					Memo:      dec.Memo,
					IsChange:  dec.IsChange,
					Nullifier: &nf,
					WitnessAt: position,
				})
			}
		}

		var spends []wallet.SpendInfo
		for _, sp := range tx.Spends {
			if noteID, matched := unspentNullifiers[sp.Nullifier]; matched {
				spends = append(spends, wallet.SpendInfo{Nullifier: sp.Nullifier, NoteID: noteID})
			}
		}

		if len(outputs) == 0 && len(spends) == 0 {
			continue
		}
		walletTxs = append(walletTxs, wallet.WalletTx{
			TxID:    tx.TxID,
			Index:   uint32(txIdx),
			Outputs: outputs,
			Spends:  spends,
		})
	}

	pruned := wallet.PrunedBlock{
		Height:      block.Height,
		Hash:        block.Hash,
		PrevHash:    block.PrevHash,
		Time:        block.Time,
		SaplingTree: s.tree.Serialize(),
		Txs:         walletTxs,
	}

	blobs := make(map[walletdb.NoteKey][]byte, len(s.live))
	for key, w := range s.live {
		blobs[key] = w.Serialize()
	}

	s.log.Debug("scanned block", "height", block.Height, "wallet_txs", len(walletTxs), "live_witnesses", len(s.live))
	return pruned, blobs, nil
}

// decrypt tries every account's viewing key against out in order,
// stopping at the first match.
func (s *Scanner) decrypt(out compact.Output) (*DecryptedOutput, AccountKey, bool) {
	for _, acct := range s.accounts {
		if dec, ok := s.decryptor.TrialDecrypt(out, acct.IVK); ok {
			return dec, acct, true
		}
	}
	return nil, AccountKey{}, false
}
