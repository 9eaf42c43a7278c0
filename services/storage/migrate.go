// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/IvanKorch1289/client-analyze-agent/internal/logging"
)

// legacyThreadPrefix is the flat-namespace key prefix used by an older,
// unified key-value space that predates the three named spaces in §4.2.
const legacyThreadPrefix = "thread:"

// MigrateLegacyThreads copies every entry whose key begins with "thread:"
// out of the legacy flat namespace into the threads space, one time, at
// startup. The key suffix (the part after "thread:") becomes the new
// thread_id. Reads always favor the threads space afterward; this function
// is safe to call on every startup since already-migrated keys are gone
// from the legacy prefix once copied.
func MigrateLegacyThreads(repo *badgerRepository, log *logging.Logger) (migrated int, err error) {
	var legacy []struct {
		key  string
		data []byte
	}
	err = repo.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(legacyThreadPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			legacy = append(legacy, struct {
				key  string
				data []byte
			}{key: string(it.Item().Key()), data: raw})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, entry := range legacy {
		threadID := strings.TrimPrefix(entry.key, legacyThreadPrefix)
		data, derr := decompress(entry.data)
		if derr != nil {
			log.Warn("skipping unreadable legacy thread", "key", entry.key, "error", derr)
			continue
		}
		var t ThreadRecord
		if err := json.Unmarshal(data, &t); err != nil {
			log.Warn("skipping malformed legacy thread", "key", entry.key, "error", err)
			continue
		}
		t.ThreadID = threadID
		if err := repo.SaveThread(context.Background(), t); err != nil {
			return migrated, err
		}
		if err := repo.db.Update(func(txn *badger.Txn) error {
			return txn.Delete([]byte(entry.key))
		}); err != nil {
			return migrated, err
		}
		migrated++
	}
	log.Info("legacy thread migration complete", "migrated", migrated)
	return migrated, nil
}
