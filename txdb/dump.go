// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

import (
	"fmt"
	"io"
)

// Dump writes a human-readable listing of the store to w for
// debugging.
func (s *Store) Dump(w io.Writer) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	fmt.Fprintf(w, "height: %d\n", s.lastHeight)
	for hash, rec := range s.rows {
		fmt.Fprintln(w, "================")
		fmt.Fprintf(w, "hash: %v\n", hash)
		switch rec.State {
		case StateUnconfirmed:
			fmt.Fprintln(w, "state: unconfirmed")
			fmt.Fprintf(w, "timestamp: %d\n", rec.Received.Unix())
		case StateConfirmed:
			fmt.Fprintln(w, "state: confirmed")
			fmt.Fprintf(w, "height: %d\n", rec.BlockHeight)
			if rec.NeedsCheck {
				fmt.Fprintln(w, "needs check.")
			}
		}
		if rec.Malleated {
			fmt.Fprintf(w, "ntxid: %v\n", rec.NormalizedHash)
		}
		for _, txIn := range rec.MsgTx.TxIn {
			if addr, ok := s.inputAddress(txIn); ok {
				fmt.Fprintf(w, "input: %v\n",
					addr.EncodeAddress())
			}
		}
		for _, txOut := range rec.MsgTx.TxOut {
			if addr, ok := s.extractAddress(txOut.PkScript); ok {
				fmt.Fprintf(w, "output: %v %d\n",
					addr.EncodeAddress(), txOut.Value)
			}
		}
	}
}
