package tracker

import (
	"errors"
	"testing"

	stockwatch "github.com/eugener/stockwatch/internal"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	tr := New("shop-a", nil, WithLogger(discardLogger()))
	if err := reg.Register(tr); err != nil {
		t.Fatal(err)
	}

	got, err := reg.Get("shop-a")
	if err != nil {
		t.Fatal(err)
	}
	if got != tr {
		t.Error("Get returned a different tracker")
	}

	if _, err := reg.Get("missing"); !errors.Is(err, stockwatch.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRegistryDuplicate(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if err := reg.Register(New("dup", nil, WithLogger(discardLogger()))); err != nil {
		t.Fatal(err)
	}
	err := reg.Register(New("dup", nil, WithLogger(discardLogger())))
	if !errors.Is(err, stockwatch.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestRegistryListSorted(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		if err := reg.Register(New(name, nil, WithLogger(discardLogger()))); err != nil {
			t.Fatal(err)
		}
	}

	list := reg.List()
	want := []string{"alpha", "bravo", "charlie"}
	if len(list) != len(want) {
		t.Fatalf("len = %d, want %d", len(list), len(want))
	}
	for i, tr := range list {
		if tr.Name() != want[i] {
			t.Errorf("list[%d] = %q, want %q", i, tr.Name(), want[i])
		}
	}
}
