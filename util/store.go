// util/store.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// zstdDecoder is only used through DecodeAll, which is safe for
// concurrent use.
var zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))

// StoreObject saves obj to path as zstd-compressed msgpack. The data
// goes to a temporary file that is then renamed over path, so a crash
// leaves either the old file or the new one.
func StoreObject(path string, obj any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := encodeObject(f, obj); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

func encodeObject(f *os.File, obj any) error {
	zw, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	return errors.Join(msgpack.NewEncoder(zw).Encode(obj), zw.Close())
}

// RetrieveObject loads an object saved by StoreObject and returns the
// time the file was written.
func RetrieveObject(path string, obj any) (time.Time, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	b, err := ReadMaybeCompressed(path)
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), msgpack.Unmarshal(b, obj)
}

// ReadMaybeCompressed reads the file at path; files named *.zst, as
// StoreObject writes them, are decompressed.
func ReadMaybeCompressed(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil || !strings.HasSuffix(path, ".zst") {
		return b, err
	}
	return zstdDecoder.DecodeAll(b, nil)
}
