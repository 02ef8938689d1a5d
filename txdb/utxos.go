// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// AddressSet is a set of encoded payment addresses owned by the wallet.
type AddressSet map[string]struct{}

// NewAddressSet creates an AddressSet from the given addresses.
func NewAddressSet(addrs ...btcutil.Address) AddressSet {
	set := make(AddressSet, len(addrs))
	for _, addr := range addrs {
		set.Add(addr)
	}
	return set
}

// Add adds an address to the set.
func (s AddressSet) Add(addr btcutil.Address) {
	s[addr.EncodeAddress()] = struct{}{}
}

// contains returns whether the set holds the given address.
func (s AddressSet) contains(addr btcutil.Address) bool {
	_, ok := s[addr.EncodeAddress()]
	return ok
}

// Output describes an unspent transaction output that is safe to spend.
type Output struct {
	// OutPoint identifies the output.
	OutPoint wire.OutPoint

	// Amount is the value of the output.
	Amount btcutil.Amount
}

// safetyChecker knows how to check a transaction for double-spends.  It
// memoizes the recursive graph search, so the more checks one checker
// performs, the faster those checks can potentially become for a fixed
// graph.  A checker is scoped to a single UnspentOutputs call and is
// never retained on the store.
type safetyChecker struct {
	store        *Store
	doubleSpends map[wire.OutPoint]struct{}
	addrs        AddressSet
	visited      map[chainhash.Hash]bool
}

// check returns whether a transaction is safe to spend from.  When
// changeOnly is set, unconfirmed transactions qualify only if the
// wallet controls every input, i.e. they are the wallet's own spends.
func (c *safetyChecker) check(rec *TxRecord, changeOnly bool) bool {
	if changeOnly && rec.State != StateConfirmed {
		for _, txIn := range rec.MsgTx.TxIn {
			addr, ok := c.store.inputAddress(txIn)
			if !ok || !c.addrs.contains(addr) {
				return false
			}
		}
	}

	return c.isSafe(rec.Hash)
}

// isSafe recursively checks the transaction graph for double-spends.
// It returns true if the transaction never sources a double spend.
func (c *safetyChecker) isSafe(txid chainhash.Hash) bool {
	// Just use the previous result if we have been here before.
	if safe, ok := c.visited[txid]; ok {
		return safe
	}

	// We have to assume missing transactions are safe.
	rec, ok := c.store.rows[txid]
	if !ok {
		c.visited[txid] = true
		return true
	}

	// Confirmed transactions are also safe.
	if rec.State == StateConfirmed {
		c.visited[txid] = true
		return true
	}

	// Seed the memo before descending so that a cycle in the graph
	// terminates by reusing the in-progress entry, like a missing
	// ancestor would.
	c.visited[txid] = true

	// Recursively check all the inputs against the double-spend list.
	for _, txIn := range rec.MsgTx.TxIn {
		prevOut := txIn.PreviousOutPoint
		if _, ok := c.doubleSpends[prevOut]; ok {
			c.visited[txid] = false
			return false
		}
		if !c.isSafe(prevOut.Hash) {
			c.visited[txid] = false
			return false
		}
	}

	return true
}

// UnspentOutputs returns every output that pays one of the wallet's
// addresses, is not spent by any stored transaction, and passes the
// double-spend safety analysis.  When changeOnly is set, outputs of
// unconfirmed transactions are only returned if the wallet controls all
// of the transaction's inputs, which admits unconfirmed change while
// rejecting unconfirmed receives.
func (s *Store) UnspentOutputs(addrs AddressSet, changeOnly bool) []Output {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	// Build the sets of spent and double-spent outpoints.
	spends := make(map[wire.OutPoint]struct{})
	doubleSpends := make(map[wire.OutPoint]struct{})
	for _, rec := range s.rows {
		for _, txIn := range rec.MsgTx.TxIn {
			prevOut := txIn.PreviousOutPoint
			if _, ok := spends[prevOut]; ok {
				doubleSpends[prevOut] = struct{}{}
				continue
			}
			spends[prevOut] = struct{}{}
		}
	}

	checker := &safetyChecker{
		store:        s,
		doubleSpends: doubleSpends,
		addrs:        addrs,
		visited:      make(map[chainhash.Hash]bool),
	}

	// Check each output against the spend list.
	var utxos []Output
	for txid, rec := range s.rows {
		for i, output := range rec.MsgTx.TxOut {
			point := wire.OutPoint{Hash: txid, Index: uint32(i)}

			// The output is interesting if it isn't spent,
			// belongs to us, and its transaction passes the
			// safety check.
			if _, spent := spends[point]; spent {
				continue
			}
			addr, ok := s.extractAddress(output.PkScript)
			if !ok || !addrs.contains(addr) {
				continue
			}
			if !checker.check(rec, changeOnly) {
				continue
			}

			utxos = append(utxos, Output{
				OutPoint: point,
				Amount:   btcutil.Amount(output.Value),
			})
		}
	}

	return utxos
}

// inputAddress recovers the address that signed a transaction input
// from its signature script or witness.  It must be called with the
// store mutex held.
func (s *Store) inputAddress(txIn *wire.TxIn) (btcutil.Address, bool) {
	pkScript, err := txscript.ComputePkScript(
		txIn.SignatureScript, txIn.Witness,
	)
	if err != nil {
		return nil, false
	}
	addr, err := pkScript.Address(s.chainParams)
	if err != nil {
		return nil, false
	}
	return addr, true
}
