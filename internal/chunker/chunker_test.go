/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package chunker

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestChunk_RoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 0, 4096).Draw(rt, "data")
		size := rapid.Int64Range(1, 5000).Draw(rt, "chunkSize")

		chunks, err := Chunk(data, size)
		if err != nil {
			rt.Fatalf("Chunk error: %v", err)
		}
		for i, c := range chunks {
			if int64(len(c)) > size {
				rt.Fatalf("chunk %d has %d bytes, limit %d", i, len(c), size)
			}
			if i < len(chunks)-1 && int64(len(c)) != size {
				rt.Fatalf("non-final chunk %d is short: %d", i, len(c))
			}
		}
		if got := Reassemble(chunks); !bytes.Equal(got, data) {
			rt.Fatalf("reassembled data differs")
		}
	})
}

func TestChunk_InvalidSize(t *testing.T) {
	for _, size := range []int64{0, -1} {
		_, err := Chunk([]byte("abc"), size)
		assert.True(t, errors.Is(err, ErrInvalidConfig), "size %d", size)
	}
}

func TestChunk_Shape(t *testing.T) {
	chunks, err := Chunk([]byte("abcdefg"), 3)
	require.Nil(t, err)
	assert.Equal(t, [][]byte{[]byte("abc"), []byte("def"), []byte("g")}, chunks)

	chunks, err = Chunk(nil, 3)
	require.Nil(t, err)
	assert.Empty(t, chunks)
}

func TestOptimalChunkSize(t *testing.T) {
	assert.Equal(t, int64(config.MiB), OptimalChunkSize(0))
	assert.Equal(t, int64(config.MiB), OptimalChunkSize(50*config.MiB))
	assert.Equal(t, int64(2*config.MiB), OptimalChunkSize(200*config.MiB))
	assert.Equal(t, int64(50*config.MiB), OptimalChunkSize(100*1024*config.MiB))
}

func TestManifest_RoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	m := BuildManifest("model.bin", 7, []string{"c0", "c1", "c2"}, 3, now)

	raw, err := EncodeManifest(m)
	require.Nil(t, err)
	assert.Contains(t, string(raw), `"chunkIds":["c0","c1","c2"]`)
	assert.Contains(t, string(raw), `"fileName":"model.bin"`)

	got, err := ParseManifest(raw)
	require.Nil(t, err)
	assert.Equal(t, m, got)
}

func TestManifest_ParseErrors(t *testing.T) {
	cases := map[string]string{
		"not json":       `{"fileName":`,
		"zero chunkSize": `{"fileName":"a","fileSize":3,"chunkIds":["x"],"chunkSize":0}`,
		"count mismatch": `{"fileName":"a","fileSize":7,"chunkIds":["x","y"],"chunkSize":3}`,
		"empty id":       `{"fileName":"a","fileSize":3,"chunkIds":[""],"chunkSize":3}`,
	}
	for name, raw := range cases {
		_, err := ParseManifest([]byte(raw))
		assert.True(t, errors.Is(err, ErrManifestParse), "%s: %v", name, err)
	}
}

func TestVerifyChunks(t *testing.T) {
	m := BuildManifest("a", 7, []string{"c0", "c1", "c2"}, 3, time.Now())
	assert.Nil(t, VerifyChunks(m, [][]byte{[]byte("abc"), []byte("def"), []byte("g")}))

	err := VerifyChunks(m, [][]byte{[]byte("abc"), []byte("def"), []byte("gh")})
	assert.True(t, errors.Is(err, ErrManifestMismatch))

	err = VerifyChunks(m, [][]byte{[]byte("abc")})
	assert.True(t, errors.Is(err, ErrManifestMismatch))
}
