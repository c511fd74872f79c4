package services

import (
	"testing"
)

type memoryKV struct {
	values map[string]bool
	sets   int
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: make(map[string]bool)}
}

func (m *memoryKV) GetBool(key string) (bool, error) { return m.values[key], nil }

func (m *memoryKV) SetBool(key string, value bool) error {
	m.values[key] = value
	m.sets++
	return nil
}

func TestRedirectFiresOnceWhenNoOutputConfigured(t *testing.T) {
	kv := newMemoryKV()
	r := NewDebugRedirector("disp-1", kv, quietLogger(t))

	if !r.Evaluate(false, "") {
		t.Fatal("first evaluation with no output must redirect")
	}
	if r.Evaluate(false, "") {
		t.Error("redirect fired a second time")
	}
}

func TestNoRedirectWhenOutputConfigured(t *testing.T) {
	kv := newMemoryKV()
	r := NewDebugRedirector("disp-1", kv, quietLogger(t))

	if r.Evaluate(false, "http://source/feed") {
		t.Error("must not redirect when an output source exists")
	}
}

func TestPersistedExitSuppressesRedirectForever(t *testing.T) {
	kv := newMemoryKV()
	kv.values["debug_exited:disp-1"] = true

	r := NewDebugRedirector("disp-1", kv, quietLogger(t))
	for i := 0; i < 3; i++ {
		if r.Evaluate(false, "") {
			t.Fatal("redirect fired despite persisted exit flag")
		}
	}
}

func TestExplicitExitPersistsFlag(t *testing.T) {
	kv := newMemoryKV()
	r := NewDebugRedirector("disp-1", kv, quietLogger(t))

	// Operator is in debug mode, then turns it off.
	if r.Evaluate(true, "") {
		t.Error("must not redirect while already in debug mode")
	}
	if r.Evaluate(false, "") {
		t.Error("explicit exit must not redirect")
	}

	if !kv.values["debug_exited:disp-1"] {
		t.Fatal("exit flag was not persisted")
	}

	// A fresh instance simulating a restart honors the stored flag.
	r2 := NewDebugRedirector("disp-1", kv, quietLogger(t))
	if r2.Evaluate(false, "") {
		t.Error("redirect fired after persisted exit")
	}
}

func TestRepeatedDebugRendersHandledOnce(t *testing.T) {
	kv := newMemoryKV()
	r := NewDebugRedirector("disp-1", kv, quietLogger(t))

	for i := 0; i < 3; i++ {
		if r.Evaluate(true, "http://source/feed") {
			t.Fatal("debug mode render must never redirect")
		}
	}
	if kv.sets != 0 {
		t.Errorf("no flag should be written while still in debug mode, got %d writes", kv.sets)
	}
}
