package editor

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"shiftdesk/internal/wire"
)

func TestIndicesAreNeverReused(t *testing.T) {
	e := New(nil)
	first := e.Add()
	second := e.Add()
	if first.Index() != 1 || second.Index() != 2 {
		t.Fatalf("expected indices 1,2 got %d,%d", first.Index(), second.Index())
	}
	if err := e.Remove(second); err != nil {
		t.Fatalf("remove: %v", err)
	}
	third := e.Add()
	if third.Index() != 3 {
		t.Fatalf("removed index must not be reused, got %d", third.Index())
	}
	for i := 0; i < 7; i++ {
		b := e.Add()
		if i%2 == 0 {
			_ = e.Remove(b)
		}
	}
	if e.HighestIndex() != 10 {
		t.Fatalf("after 10 adds highest index must be 10, got %d", e.HighestIndex())
	}
	if err := e.Remove(second); !errors.Is(err, ErrUnknownBlock) {
		t.Fatalf("removing twice should fail, got %v", err)
	}
}

func TestFieldsKeepGapsThroughFlattening(t *testing.T) {
	e := New(nil)
	for i := 0; i < 4; i++ {
		b := e.Add()
		b.Component = "1000"
		b.Activities = "check"
	}
	if err := e.RemoveIndex(2); err != nil {
		t.Fatalf("remove index 2: %v", err)
	}
	if !reflect.DeepEqual(e.Indices(), []int{1, 3, 4}) {
		t.Fatalf("unexpected indices %v", e.Indices())
	}
	payload, err := wire.Flatten(e.Fields())
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	indices, groups := wire.DecodeIndexed(payload.Values(), wire.EntryPrefixes...)
	if !reflect.DeepEqual(indices, []int{1, 3, 4}) {
		t.Fatalf("expected [1 3 4], got %v", indices)
	}
	for _, idx := range indices {
		if len(groups[idx]) != len(wire.EntryPrefixes) {
			t.Fatalf("index %d has fields %v", idx, groups[idx])
		}
	}
	if _, ok := payload.Get("component_2"); ok {
		t.Fatalf("component_2 must not be sent")
	}
}

func TestValidate(t *testing.T) {
	e := New(func(code string) bool { return code == "1000" })
	b := e.Add()
	if err := e.Validate(); err == nil {
		t.Fatalf("empty component must fail")
	}
	b.Component = "1234"
	b.Activities = "x"
	if err := e.Validate(); err == nil {
		t.Fatalf("unknown component must fail")
	}
	b.Component = "1000"
	b.SC = -1
	if err := e.Validate(); err == nil {
		t.Fatalf("negative counter must fail")
	}
	b.SC = 2
	if err := e.Validate(); err != nil {
		t.Fatalf("valid block rejected: %v", err)
	}
	e.Reset()
	if len(e.Blocks()) != 0 || e.Add().Index() != 2 {
		t.Fatalf("reset must clear blocks but keep the counter")
	}
}

func TestBlockKeys(t *testing.T) {
	e := New(nil)
	e.Add()
	b := e.Add()
	want := []string{"component_2", "activities_2", "sc_2", "usc_2", "acd_2"}
	if !reflect.DeepEqual(b.Keys(), want) {
		t.Fatalf("unexpected keys %v", b.Keys())
	}
}

func TestUpdateIsSerialisedWithSnapshots(t *testing.T) {
	e := New(nil)
	b := e.Add()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= 200; i++ {
			err := e.Update(b.Index(), func(b *Block) error {
				b.Component = "1000"
				b.Activities = "ganti oli"
				b.SC, b.USC, b.ACD = i, i, i
				return nil
			})
			if err != nil {
				t.Errorf("update: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			for _, entry := range e.Entries() {
				if entry.SC != entry.USC || entry.USC != entry.ACD {
					t.Errorf("torn entry %+v", entry)
					return
				}
			}
		}
	}()
	wg.Wait()
	got := e.Entries()[0]
	if got.SC != 200 || got.Component != "1000" {
		t.Fatalf("last update lost: %+v", got)
	}

	fail := errors.New("bad input")
	if err := e.Update(b.Index(), func(*Block) error { return fail }); !errors.Is(err, fail) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if err := e.Update(99, func(*Block) error { return nil }); !errors.Is(err, ErrUnknownBlock) {
		t.Fatalf("expected ErrUnknownBlock, got %v", err)
	}
}
