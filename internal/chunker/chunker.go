/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package chunker

import (
	"fmt"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/config"
)

// chunksPerFileTarget bounds manifest length for mid-sized files.
const chunksPerFileTarget = 100

// Chunk splits data into consecutive pieces of chunkSize bytes; the last piece
// may be shorter. The returned chunks alias data.
func Chunk(data []byte, chunkSize int64) ([][]byte, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d", ErrInvalidConfig, chunkSize)
	}
	n := (int64(len(data)) + chunkSize - 1) / chunkSize
	chunks := make([][]byte, 0, n)
	for off := int64(0); off < int64(len(data)); off += chunkSize {
		end := min(off+chunkSize, int64(len(data)))
		chunks = append(chunks, data[off:end:end])
	}
	return chunks, nil
}

// Reassemble concatenates chunks in the given order.
func Reassemble(chunks [][]byte) []byte {
	var total int
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// OptimalChunkSize picks a chunk size between 1 MiB and 50 MiB that grows with totalSize.
func OptimalChunkSize(totalSize int64) int64 {
	return OptimalChunkSizeBounded(totalSize, config.DefaultMinChunkSize, config.DefaultMaxChunkSize)
}

func OptimalChunkSizeBounded(totalSize, floor, ceiling int64) int64 {
	return max(floor, min(totalSize/chunksPerFileTarget, ceiling))
}
