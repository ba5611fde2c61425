//go:build linux

package reactor_test

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-reactor"
	"golang.org/x/sys/unix"
)

func Example() {
	r, err := reactor.New()
	if err != nil {
		panic(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run()
	}()

	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		panic(err)
	}

	received := make(chan byte, 1)
	reactable := r.Register(p[0], func() {
		var buf [1]byte
		if _, err := unix.Read(p[0], buf[:]); err == nil {
			received <- buf[0]
		}
	}, nil)

	if _, err := unix.Write(p[1], []byte{'A'}); err != nil {
		panic(err)
	}
	fmt.Printf("received %c\n", <-received)

	r.Unregister(reactable)
	r.WaitForUnregisteredReactable(time.Second)

	r.Stop()
	<-done
	r.Close()

	_ = unix.Close(p[0])
	_ = unix.Close(p[1])

	// Output:
	// received A
}
