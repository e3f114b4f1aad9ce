package netLayer

import (
	"testing"
	"time"
)

func TestLoopOrder(t *testing.T) {
	l := NewLoop()
	defer l.Stop()

	got := make(chan int, 100)
	for i := 0; i < 100; i++ {
		i := i
		l.Post(func() { got <- i })
	}
	for i := 0; i < 100; i++ {
		if v := <-got; v != i {
			t.Fatalf("want %d got %d", i, v)
		}
	}
}

func TestLoopPostFromTaskIsDeferred(t *testing.T) {
	l := NewLoop()
	defer l.Stop()

	order := make(chan string, 3)
	l.Post(func() {
		l.Post(func() { order <- "inner" })
		order <- "outer"
	})

	if <-order != "outer" || <-order != "inner" {
		t.FailNow()
	}
}

func TestLoopStop(t *testing.T) {
	l := NewLoop()
	l.Stop()

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.FailNow()
	}
	if l.Post(func() {}) {
		t.FailNow()
	}
}
