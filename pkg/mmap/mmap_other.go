//go:build !unix

package mmap

import (
	"io"
	"os"
)

// Platforms without mmap read the file onto the heap.
func mapFile(f *os.File, size int) ([]byte, bool, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, int64(size)), data); err != nil {
		return nil, false, err
	}
	return data, false, nil
}

func unmapFile([]byte) error { return nil }

func advise([]byte, Advice) error { return nil }
