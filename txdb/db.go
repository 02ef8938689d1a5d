// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

import (
	"github.com/btcsuite/btcwallet/walletdb"
)

var (
	// txdbNamespaceKey is the top-level walletdb bucket holding the
	// serialized transaction database.
	txdbNamespaceKey = []byte("txdb")

	// databaseKey is the bucket key the serialized database is stored
	// under.
	databaseKey = []byte("database")
)

// SaveDB serializes the store and writes the result into the txdb
// namespace of the given wallet database.
func SaveDB(db walletdb.DB, s *Store) error {
	blob := s.Serialize()
	return walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		ns, err := tx.CreateTopLevelBucket(txdbNamespaceKey)
		if err != nil {
			return err
		}
		return ns.Put(databaseKey, blob)
	})
}

// LoadDB reads a serialized store from the txdb namespace of the given
// wallet database and loads it into s.  A database that was never
// checkpointed leaves s untouched.
func LoadDB(db walletdb.DB, s *Store) error {
	var blob []byte
	err := walletdb.View(db, func(tx walletdb.ReadTx) error {
		ns := tx.ReadBucket(txdbNamespaceKey)
		if ns == nil {
			return nil
		}
		blob = ns.Get(databaseKey)
		return nil
	})
	if err != nil {
		return err
	}
	if blob == nil {
		return nil
	}
	return s.Load(blob)
}
