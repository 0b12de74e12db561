package logger

import "testing"

func TestNewFallsBackOnUnknownLevel(t *testing.T) {
	l := New("chatty", "console")
	if l == nil {
		t.Fatal("nil logger")
	}
	l.With("sale", "abc").Debug("not emitted at info")
	l.Info("hello", "n", 1)
}

func TestNopIsSilent(t *testing.T) {
	l := Nop().With("k", "v")
	l.Error("ignored")
	if err := l.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
}
