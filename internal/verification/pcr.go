/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package verification

import (
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/model"
	"github.com/SeventhOdyssey71/Satya-sub004/resources"
)

// PCRSet is the known-good measurement of an enclave image.
type PCRSet struct {
	PCR0 []byte
	PCR1 []byte
	PCR2 []byte
}

type pcrFile struct {
	PCR0 string `json:"pcr0"`
	PCR1 string `json:"pcr1"`
	PCR2 string `json:"pcr2"`
}

// ParsePCRSet decodes a JSON object of hex encoded pcr0, pcr1 and pcr2.
func ParsePCRSet(raw []byte) (PCRSet, error) {
	var f pcrFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return PCRSet{}, fmt.Errorf("%w: %v", ErrInvalidPCRSet, err)
	}
	var set PCRSet
	for _, v := range []struct {
		name string
		hex  string
		dst  *[]byte
	}{
		{"pcr0", f.PCR0, &set.PCR0},
		{"pcr1", f.PCR1, &set.PCR1},
		{"pcr2", f.PCR2, &set.PCR2},
	} {
		b, err := hex.DecodeString(v.hex)
		if err != nil || len(b) == 0 {
			return PCRSet{}, fmt.Errorf("%w: %s is not a hex digest", ErrInvalidPCRSet, v.name)
		}
		*v.dst = b
	}
	return set, nil
}

// LoadPCRSet reads the PCR set at path, or the embedded development set when path is empty.
func LoadPCRSet(path string) (PCRSet, error) {
	if path == "" {
		return ParsePCRSet(resources.DefaultPCRs)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return PCRSet{}, fmt.Errorf("read PCR set %s: %w", path, err)
	}
	return ParsePCRSet(raw)
}

// Matches compares every PCR of doc in constant time.
func (s PCRSet) Matches(doc *model.AttestationDocument) bool {
	ok := subtle.ConstantTimeCompare(s.PCR0, doc.PCR0) &
		subtle.ConstantTimeCompare(s.PCR1, doc.PCR1) &
		subtle.ConstantTimeCompare(s.PCR2, doc.PCR2)
	return ok == 1
}
