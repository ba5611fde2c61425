//go:build linux

package reactor

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Thin wrappers over the epoll and eventfd syscalls. Signal interruption is
// retried transparently; callers never observe EINTR.

func epollCreate() (int, error) {
	for {
		epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
		if err != unix.EINTR {
			return epfd, err
		}
	}
}

func epollCtl(epfd, op, fd int, ev *unix.EpollEvent) error {
	for {
		err := unix.EpollCtl(epfd, op, fd, ev)
		if err != unix.EINTR {
			return err
		}
	}
}

func epollWait(epfd int, events []unix.EpollEvent, timeoutMs int) (int, error) {
	for {
		n, err := unix.EpollWait(epfd, events, timeoutMs)
		if err != unix.EINTR {
			return n, err
		}
	}
}

func closeFd(fd int) error {
	for {
		err := unix.Close(fd)
		if err != unix.EINTR {
			return err
		}
	}
}

// eventfdWrite adds value to an eventfd counter.
// PERFORMANCE: Native endianness, no binary.LittleEndian overhead.
func eventfdWrite(fd int, value uint64) error {
	buf := (*[8]byte)(unsafe.Pointer(&value))[:]
	for {
		_, err := unix.Write(fd, buf)
		if err != unix.EINTR {
			return err
		}
	}
}

// eventfdRead reads and resets (or, in semaphore mode, decrements) an
// eventfd counter. Returns EAGAIN when the counter is zero.
func eventfdRead(fd int) (uint64, error) {
	var value uint64
	buf := (*[8]byte)(unsafe.Pointer(&value))[:]
	for {
		_, err := unix.Read(fd, buf)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		return value, nil
	}
}
