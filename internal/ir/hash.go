package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the hash
// algorithm to change without colliding with stored values.
const (
	DomainRevision = "appframe/revision/v1"
	DomainDataKeys = "appframe/datakeys/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RevisionHash computes the content hash of a revision payload.
//
// Revision metadata (author, comments, revision number) is excluded: two
// revisions with identical content hash to the same value, which is how an
// unchanged transaction is detected.
func RevisionHash(typeName string, recordID int64, label, state string, dataKeys, parts IRObject) (string, error) {
	obj := IRObject{
		"type_name": IRString(typeName),
		"record_id": IRInt(recordID),
		"label":     IRString(label),
		"state":     IRString(state),
		"data_keys": orEmpty(dataKeys),
		"parts":     orEmpty(parts),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RevisionHash: %w", err)
	}
	return hashWithDomain(DomainRevision, canonical), nil
}

// DataKeysHash hashes only the data keys of a revision. Used to compare
// revisions across records of the same type (e.g. after a copy).
func DataKeysHash(dataKeys IRObject) (string, error) {
	canonical, err := MarshalCanonical(orEmpty(dataKeys))
	if err != nil {
		return "", fmt.Errorf("DataKeysHash: %w", err)
	}
	return hashWithDomain(DomainDataKeys, canonical), nil
}

// MustRevisionHash is like RevisionHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRevisionHash(typeName string, recordID int64, label, state string, dataKeys, parts IRObject) string {
	h, err := RevisionHash(typeName, recordID, label, state, dataKeys, parts)
	if err != nil {
		panic(err)
	}
	return h
}

func orEmpty(obj IRObject) IRObject {
	if obj == nil {
		return IRObject{}
	}
	return obj
}
