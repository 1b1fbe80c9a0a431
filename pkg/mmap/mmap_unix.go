//go:build unix

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

func mapFile(f *os.File, size int) ([]byte, bool, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func unmapFile(data []byte) error {
	return unix.Munmap(data)
}

func advise(data []byte, a Advice) error {
	var flag int
	switch a {
	case AdviceSequential:
		flag = unix.MADV_SEQUENTIAL
	case AdviceRandom:
		flag = unix.MADV_RANDOM
	case AdviceWillNeed:
		flag = unix.MADV_WILLNEED
	default:
		flag = unix.MADV_NORMAL
	}
	return unix.Madvise(data, flag)
}
