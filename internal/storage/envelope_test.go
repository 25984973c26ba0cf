/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package storage

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEnvelope_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 1, 4096).Draw(t, "data")
		sealed, err := SealEnvelope(data)
		if err != nil {
			t.Fatalf("SealEnvelope error: %v", err)
		}
		plain, enveloped, err := OpenEnvelope(sealed, nil)
		if err != nil {
			t.Fatalf("OpenEnvelope error: %v", err)
		}
		if !enveloped {
			t.Fatalf("sealed buffer not recognised as envelope")
		}
		if string(plain) != string(data) {
			t.Fatalf("payload mismatch")
		}
	})
}

func TestOpenEnvelope_RawFallback(t *testing.T) {
	badJSON := make([]byte, 4, 64)
	binary.LittleEndian.PutUint32(badJSON, 12)
	badJSON = append(badJSON, []byte("not-json!!!!payload")...)

	missingFields := make([]byte, 4, 64)
	binary.LittleEndian.PutUint32(missingFields, 15)
	missingFields = append(missingFields, []byte(`{"iv_base64":1}`)...)

	cases := map[string][]byte{
		"short":          {1, 2},
		"zero length":    {0, 0, 0, 0, 'a', 'b'},
		"huge length":    {0xff, 0xff, 0, 0, 'a'},
		"truncated":      {50, 0, 0, 0, '{', '}'},
		"plain text":     []byte("hello, this is a plain model card"),
		"bad json":       badJSON,
		"missing fields": missingFields,
	}
	for name, buf := range cases {
		t.Run(name, func(t *testing.T) {
			out, enveloped, err := OpenEnvelope(buf, nil)
			require.Nil(t, err)
			assert.False(t, enveloped)
			assert.Equal(t, buf, out)
		})
	}
}

func TestOpenEnvelope_Tampered(t *testing.T) {
	sealed, err := SealEnvelope([]byte("dataset rows"))
	require.Nil(t, err)
	sealed[len(sealed)-1] ^= 0x01

	_, enveloped, err := OpenEnvelope(sealed, nil)
	assert.True(t, enveloped)
	assert.ErrorIs(t, err, ErrEnvelopeCorrupt)
}
