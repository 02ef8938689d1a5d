// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txdb implements the in-memory database of transactions
// observed by the wallet watcher.  The store tracks confirmation state
// across malleated transaction variants, reacts to blockchain
// reorganizations, decides which unspent outputs are safe to spend, and
// serializes itself to a compact binary format for checkpointing.
package txdb

import (
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// TxState describes whether a transaction has been observed in a block.
type TxState uint8

// Transaction states.  The numeric values are written to the serialized
// database and must not be reordered.
const (
	// StateUnconfirmed is a transaction seen on the network but not yet
	// mined into a block.
	StateUnconfirmed TxState = iota

	// StateConfirmed is a transaction mined into a block known to the
	// wallet.
	StateConfirmed
)

// String returns the TxState as a human-readable name.
func (s TxState) String() string {
	switch s {
	case StateUnconfirmed:
		return "unconfirmed"
	case StateConfirmed:
		return "confirmed"
	}
	return "unknown"
}

// HashFn is the callback invoked per transaction hash by
// ForEachUnconfirmed and ForEachForked.  It runs with the store mutex
// held and must not call back into the store.
type HashFn func(hash chainhash.Hash)

// TxRecord is a transaction managed by the Store, together with the
// metadata the watcher maintains about it.
type TxRecord struct {
	// MsgTx is the full transaction.
	MsgTx wire.MsgTx

	// Hash is the transaction hash (txid).
	Hash chainhash.Hash

	// NormalizedHash is the hash of the transaction with all input
	// scripts blanked (ntxid).  It is invariant under signature
	// malleability, so every malleated variant of one logical payment
	// shares it.
	NormalizedHash chainhash.Hash

	// State is the confirmation state.
	State TxState

	// BlockHeight is the height of the confirming block.  Zero for
	// unconfirmed transactions, or -1 to signal a transaction that is
	// both malleated and unconfirmed.
	BlockHeight int64

	// Received is the time the transaction was last observed
	// unconfirmed.  Stale unconfirmed records are purged during
	// serialization based on this time.
	Received time.Time

	// NeedsCheck is set after a suspected reorganization to request
	// that the watcher re-verify this transaction against the network.
	NeedsCheck bool

	// Malleated is true if another record shares this record's
	// normalized hash.
	Malleated bool

	// MasterConfirm is true if this txid, rather than a malleated
	// sibling, was directly reported confirmed by the watcher.
	MasterConfirm bool
}

// Store is an in-memory database of the transactions observed by the
// wallet watcher.  All access is serialized by a single mutex, so the
// store may be shared between the background watcher and foreground
// query paths.
type Store struct {
	mtx sync.Mutex

	rows       map[chainhash.Hash]*TxRecord
	lastHeight int64

	chainParams        *chaincfg.Params
	unconfirmedTimeout time.Duration
}

// New creates an empty transaction store.  Unconfirmed transactions
// older than unconfirmedTimeout are dropped when the store is
// serialized.  The chain parameters are used to encode payment
// addresses extracted from output scripts.
func New(chainParams *chaincfg.Params,
	unconfirmedTimeout time.Duration) *Store {

	return &Store{
		rows:               make(map[chainhash.Hash]*TxRecord),
		chainParams:        chainParams,
		unconfirmedTimeout: unconfirmedTimeout,
	}
}

// LastHeight returns the highest block height reported by the watcher.
func (s *Store) LastHeight() int64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.lastHeight
}

// TxidExists returns whether a transaction with the given hash is
// present in the store.
func (s *Store) TxidExists(txid *chainhash.Hash) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	_, ok := s.rows[*txid]
	return ok
}

// NtxidExists returns whether any transaction with the given normalized
// hash is present in the store.
func (s *Store) NtxidExists(ntxid *chainhash.Hash) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return len(s.ntxidLookupAll(ntxid)) != 0
}

// TxidLookup returns a copy of the transaction with the given hash, or
// nil if the store does not contain it.
func (s *Store) TxidLookup(txid *chainhash.Hash) *wire.MsgTx {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	rec, ok := s.rows[*txid]
	if !ok {
		return nil
	}
	return rec.MsgTx.Copy()
}

// NtxidLookup returns a copy of the best transaction carrying the given
// normalized hash, or nil if the store contains none.  The master
// confirmed variant is preferred, then any confirmed variant, then any
// variant at all.
func (s *Store) NtxidLookup(ntxid *chainhash.Hash) *wire.MsgTx {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	var best *TxRecord
	for _, rec := range s.ntxidLookupAll(ntxid) {
		if best == nil {
			best = rec
		} else if rec.State == StateConfirmed {
			best = rec
		}
		if rec.MasterConfirm {
			best = rec
			break
		}
	}
	if best == nil {
		return nil
	}
	return best.MsgTx.Copy()
}

// TxidHeight returns the height of the block confirming the given
// transaction.  It returns zero if the transaction is unconfirmed or
// not present in the store.
func (s *Store) TxidHeight(txid *chainhash.Hash) int64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	rec, ok := s.rows[*txid]
	if !ok || rec.State != StateConfirmed {
		return 0
	}
	return rec.BlockHeight
}

// NtxidHeight returns the greatest confirmed height among all
// transactions carrying the given normalized hash, or zero if none are
// confirmed.  A height of -1 signals that the transaction has malleated
// variants and none of them have confirmed.  If no transaction carries
// the normalized hash at all, an error with code ErrSynchronizing is
// returned, since the watcher simply has not seen it yet.
func (s *Store) NtxidHeight(ntxid *chainhash.Hash) (int64, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	recs := s.ntxidLookupAll(ntxid)
	if len(recs) == 0 {
		return 0, storeError(ErrSynchronizing,
			"transaction is not in the database", nil)
	}

	var height int64
	for _, rec := range recs {
		if rec.State == StateConfirmed && height < rec.BlockHeight {
			height = rec.BlockHeight
		}
	}

	// Signal to the caller that the transaction is both malleated and
	// unconfirmed.
	if len(recs) > 1 && height == 0 {
		height = -1
	}

	return height, nil
}

// HasHistory returns whether any stored transaction pays to the given
// address.  Only outputs are considered: an input alone does not prove
// history of an address.
func (s *Store) HasHistory(addr btcutil.Address) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	encoded := addr.EncodeAddress()
	for _, rec := range s.rows {
		for _, output := range rec.MsgTx.TxOut {
			to, ok := s.extractAddress(output.PkScript)
			if ok && to.EncodeAddress() == encoded {
				return true
			}
		}
	}

	return false
}

// Insert adds a transaction to the store and returns true.  If a
// transaction with the same hash already exists the store is left
// unchanged and Insert returns false.
//
// If other transactions share the new transaction's normalized hash,
// every variant is marked malleated and the new record inherits the
// confirmation state and height of its siblings.
func (s *Store) Insert(tx *wire.MsgTx) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	// Do not stomp existing transactions.
	txid := tx.TxHash()
	if _, ok := s.rows[txid]; ok {
		return false
	}

	ntxid := NormalizedTxHash(tx)

	state := StateUnconfirmed
	var height int64
	malleated := false
	for _, sibling := range s.ntxidLookupAll(&ntxid) {
		if sibling.Hash != txid {
			height = sibling.BlockHeight
			state = sibling.State
			sibling.Malleated = true
			malleated = true
		}
	}

	s.rows[txid] = &TxRecord{
		MsgTx:          *tx.Copy(),
		Hash:           txid,
		NormalizedHash: ntxid,
		State:          state,
		BlockHeight:    height,
		Received:       time.Now(),
		Malleated:      malleated,
	}
	return true
}

// AtHeight records a new chain height reported by the watcher and scans
// for a possible reorganization at that height.
func (s *Store) AtHeight(height int64) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.lastHeight = height
	s.checkFork(height)
}

// Confirmed marks the transaction with the given hash as mined into the
// block at the given height.  Any malleated siblings are confirmed to
// the same height.  The transaction must already be in the store; the
// watcher inserts every transaction before reporting its state.
func (s *Store) Confirmed(txid *chainhash.Hash, height int64) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	rec, ok := s.rows[*txid]
	if !ok {
		panic("txdb: confirmed transaction was never inserted")
	}

	// If the transaction was already confirmed in another block, the
	// chain has silently forked.
	if rec.State == StateConfirmed && rec.BlockHeight != height {
		s.checkFork(rec.BlockHeight)
	}

	siblings := s.ntxidLookupAll(&rec.NormalizedHash)

	rec.State = StateConfirmed
	rec.BlockHeight = height
	rec.MasterConfirm = true

	for _, sibling := range siblings {
		if sibling.Hash == *txid {
			continue
		}
		sibling.State = StateConfirmed
		sibling.BlockHeight = height
		sibling.Malleated = true
		rec.Malleated = true
	}
}

// Unconfirmed marks the transaction with the given hash as no longer
// mined, normally because its block was reorganized away.  If a
// malleated sibling was itself directly confirmed, the record inherits
// that sibling's state instead of dropping back to unconfirmed.  The
// transaction must already be in the store.
func (s *Store) Unconfirmed(txid *chainhash.Hash) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	rec, ok := s.rows[*txid]
	if !ok {
		panic("txdb: unconfirmed transaction was never inserted")
	}

	priorHeight := rec.BlockHeight

	var height int64
	state := StateUnconfirmed
	malleated := rec.Malleated

	if rec.State == StateConfirmed {
		for _, sibling := range s.ntxidLookupAll(&rec.NormalizedHash) {
			if sibling.Hash == *txid {
				continue
			}
			if sibling.MasterConfirm {
				height = sibling.BlockHeight
				state = sibling.State
			} else {
				log.Debugf("Marking malleated variant %v of "+
					"%v unconfirmed", sibling.Hash,
					rec.NormalizedHash)
				sibling.BlockHeight = -1
				sibling.State = StateUnconfirmed
				sibling.MasterConfirm = false
				sibling.Malleated = true
				height = -1
				malleated = true
			}
		}
	}

	rec.BlockHeight = height
	rec.State = state
	rec.Malleated = malleated

	// A transaction dropping out of its block suggests the chain has
	// forked near its old height.  A record that re-inherited a master
	// sibling's confirmation never left its block, so there is nothing
	// to check.
	if state != StateConfirmed {
		rec.MasterConfirm = false
		s.checkFork(priorHeight)
	}
}

// ResetTimestamp updates the received time of the transaction with the
// given hash to the current time, protecting it from the stale
// unconfirmed purge for another timeout period.
func (s *Store) ResetTimestamp(txid *chainhash.Hash) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if rec, ok := s.rows[*txid]; ok {
		rec.Received = time.Now()
	}
}

// ForEachUnconfirmed invokes f with the hash of every transaction that
// is not confirmed.  f runs with the store mutex held.
func (s *Store) ForEachUnconfirmed(f HashFn) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for hash, rec := range s.rows {
		if rec.State != StateConfirmed {
			f(hash)
		}
	}
}

// ForEachForked invokes f with the hash of every confirmed transaction
// flagged for re-verification after a suspected reorganization.  f runs
// with the store mutex held.
func (s *Store) ForEachForked(f HashFn) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for hash, rec := range s.rows {
		if rec.State == StateConfirmed && rec.NeedsCheck {
			f(hash)
		}
	}
}

// Clear removes every transaction and resets the recorded chain height
// to zero.
func (s *Store) Clear() {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.lastHeight = 0
	s.rows = make(map[chainhash.Hash]*TxRecord)
}

// ntxidLookupAll returns every record carrying the given normalized
// hash.  This linear scan is the single point of truth for malleation
// handling; records deliberately do not cache references to their
// siblings.  It must be called with the store mutex held.
func (s *Store) ntxidLookupAll(ntxid *chainhash.Hash) []*TxRecord {
	var recs []*TxRecord
	for _, rec := range s.rows {
		if rec.NormalizedHash == *ntxid {
			recs = append(recs, rec)
		}
	}
	return recs
}

// extractAddress decodes an output script into the single payment
// address it pays, if it is a standard script that pays exactly one.
// It must be called with the store mutex held.
func (s *Store) extractAddress(pkScript []byte) (btcutil.Address, bool) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(
		pkScript, s.chainParams,
	)
	if err != nil || len(addrs) != 1 {
		return nil, false
	}
	return addrs[0], true
}
