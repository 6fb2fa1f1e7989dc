package thread

import (
	"testing"
	"time"

	"github.com/go-quicktest/qt"
)

func TestJoinReturnsResult(t *testing.T) {
	h := Spawn(func() string { return "done" })
	qt.Assert(t, qt.Equals(h.Join(), "done"))
	// Joining again gives the same result.
	qt.Assert(t, qt.Equals(h.Join(), "done"))
}

func TestTryJoin(t *testing.T) {
	release := make(chan struct{})
	h := Spawn(func() int {
		<-release
		return 42
	})
	qt.Check(t, qt.IsFalse(h.TryJoin().Ok))
	close(release)
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("goroutine didn't finish")
	}
	res := h.TryJoin()
	qt.Assert(t, qt.IsTrue(res.Ok))
	qt.Check(t, qt.Equals(res.Value, 42))
	qt.Check(t, qt.Equals(h.Join(), 42))
}

func TestJoinRethrowsPanic(t *testing.T) {
	h := Spawn(func() int { panic("boom") })
	<-h.Done()
	qt.Check(t, qt.PanicMatches(func() { h.Join() }, `joined goroutine panicked: boom`))
}
