// Copyright 2025 OpenFiscal Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"encoding/binary"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommitTimestamp records the timestamp of the last coordinated commit in
// the metadata store. The same timestamp is written to the blob store, and
// the two are compared at open to detect a torn commit.
type CommitTimestamp struct {
	ID        uint `gorm:"primaryKey"`
	Timestamp int64
}

func (CommitTimestamp) TableName() string {
	return "commit_timestamp"
}

type CommitTimestampError struct {
	MetadataTimestamp int64
	BlobTimestamp     int64
}

func (e CommitTimestampError) Error() string {
	return fmt.Sprintf(
		"commit timestamp mismatch: %d (metadata) != %d (blob)",
		e.MetadataTimestamp,
		e.BlobTimestamp,
	)
}

func (d *Database) checkCommitTimestamp() error {
	// Get value from metadata
	var tmpCommitTimestamp CommitTimestamp
	result := d.Metadata().
		Where("id = ?", 1).
		First(&tmpCommitTimestamp)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			// No timestamp in the database
			return nil
		}
		return fmt.Errorf(
			"failed to get metadata commit timestamp: %w",
			result.Error,
		)
	}
	metadataTimestamp := tmpCommitTimestamp.Timestamp
	if metadataTimestamp <= 0 {
		return nil
	}
	// Get value from blob
	var blobTimestamp int64
	err := d.Blob().View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(blobKeyCommitTimestamp))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return errors.New("malformed commit timestamp value")
			}
			blobTimestamp = int64(binary.BigEndian.Uint64(val)) //nolint:gosec
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return CommitTimestampError{
				MetadataTimestamp: metadataTimestamp,
			}
		}
		return fmt.Errorf("failed to get blob commit timestamp: %w", err)
	}
	// Compare values
	if blobTimestamp != metadataTimestamp {
		return CommitTimestampError{
			MetadataTimestamp: metadataTimestamp,
			BlobTimestamp:     blobTimestamp,
		}
	}
	return nil
}

func (d *Database) updateCommitTimestamp(txn *Txn, timestamp int64) error {
	// Update metadata
	if txn.Metadata() != nil {
		tmpCommitTimestamp := CommitTimestamp{
			ID:        1,
			Timestamp: timestamp,
		}
		result := txn.Metadata().
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"timestamp"}),
			}).
			Create(&tmpCommitTimestamp)
		if result.Error != nil {
			return result.Error
		}
	}
	// Update blob
	if txn.Blob() != nil {
		val := make([]byte, 8)
		binary.BigEndian.PutUint64(val, uint64(timestamp)) //nolint:gosec
		if err := txn.Blob().Set([]byte(blobKeyCommitTimestamp), val); err != nil {
			return err
		}
	}
	return nil
}
