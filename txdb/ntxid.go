// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// NormalizedTxHash computes the normalized transaction hash (ntxid):
// the double-SHA256 of the transaction serialized with every input
// script blanked.  Because signatures live in the input scripts, the
// normalized hash is invariant under signature malleability, so every
// malleated variant of one logical payment hashes to the same value.
func NormalizedTxHash(tx *wire.MsgTx) chainhash.Hash {
	stripped := tx.Copy()
	for _, txIn := range stripped.TxIn {
		txIn.SignatureScript = nil
		txIn.Witness = nil
	}
	return stripped.TxHash()
}
