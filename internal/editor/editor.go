// Package editor manages the repeated activity entries of an activity report
// draft.
//
// Every block receives the value of a counter that starts at 1 and only moves
// forward, so field keys stay unique for the whole life of the editor even
// when blocks are removed and others added later. Removing a block never
// renumbers the survivors; gaps in the indices are expected on submit.
package editor

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"shiftdesk/internal/domain"
	"shiftdesk/internal/wire"
)

var ErrUnknownBlock = errors.New("block not in editor")

// Block is one rendered activity entry. The editor reads the fields under its
// lock, so writes made while other goroutines use the editor go through
// Editor.Update.
type Block struct {
	index int

	Component  string
	Activities string
	SC         int
	USC        int
	ACD        int
}

// Index is fixed at creation time.
func (b *Block) Index() int { return b.index }

// Keys returns the field keys rendered for this block.
func (b *Block) Keys() []string {
	keys := make([]string, 0, len(wire.EntryPrefixes))
	for _, p := range wire.EntryPrefixes {
		keys = append(keys, wire.IndexedKey(p, b.index))
	}
	return keys
}

func (b *Block) entry() domain.ActivityEntry {
	return domain.ActivityEntry{
		Index:      b.index,
		Component:  b.Component,
		Activities: b.Activities,
		SC:         b.SC,
		USC:        b.USC,
		ACD:        b.ACD,
	}
}

// Editor owns the block list and the index counter of one draft.
type Editor struct {
	mu     sync.Mutex
	next   int
	blocks []*Block
	valid  func(code string) bool
}

// New returns an editor whose counter starts at 1. validComponent may be nil.
func New(validComponent func(code string) bool) *Editor {
	return &Editor{next: 1, valid: validComponent}
}

// Add appends a new block using the current counter value, then advances it.
func (e *Editor) Add() *Block {
	e.mu.Lock()
	defer e.mu.Unlock()
	b := &Block{index: e.next}
	e.blocks = append(e.blocks, b)
	e.next++
	return b
}

// Remove deletes exactly b. The counter is left alone.
func (e *Editor) Remove(b *Block) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, cur := range e.blocks {
		if cur == b {
			e.blocks = append(e.blocks[:i], e.blocks[i+1:]...)
			return nil
		}
	}
	return ErrUnknownBlock
}

// RemoveIndex removes the block carrying index.
func (e *Editor) RemoveIndex(index int) error {
	b, ok := e.Block(index)
	if !ok {
		return fmt.Errorf("index %d: %w", index, ErrUnknownBlock)
	}
	return e.Remove(b)
}

// Block looks a rendered block up by index.
func (e *Editor) Block(index int) (*Block, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, b := range e.blocks {
		if b.index == index {
			return b, true
		}
	}
	return nil, false
}

// Update runs fn on the block with the given index while holding the editor
// lock. An error from fn is returned as is.
func (e *Editor) Update(index int, fn func(*Block) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, b := range e.blocks {
		if b.index == index {
			return fn(b)
		}
	}
	return fmt.Errorf("%w: %d", ErrUnknownBlock, index)
}

// Blocks returns the rendered blocks in insertion order.
func (e *Editor) Blocks() []*Block {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Block(nil), e.blocks...)
}

// Indices lists the indices currently rendered.
func (e *Editor) Indices() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]int, 0, len(e.blocks))
	for _, b := range e.blocks {
		out = append(out, b.index)
	}
	return out
}

// HighestIndex is the largest index ever handed out, 0 before the first Add.
func (e *Editor) HighestIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.next - 1
}

// Entries snapshots the rendered blocks as activity entries.
func (e *Editor) Entries() []domain.ActivityEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.ActivityEntry, 0, len(e.blocks))
	for _, b := range e.blocks {
		out = append(out, b.entry())
	}
	return out
}

// Fields reads the form fields off the rendered blocks.
func (e *Editor) Fields() map[string]any {
	out := map[string]any{}
	for _, entry := range e.Entries() {
		for k, v := range wire.EntryFields(entry) {
			out[k] = v
		}
	}
	return out
}

// Validate checks every rendered block the way the form's required and min
// attributes would.
func (e *Editor) Validate() error {
	for _, entry := range e.Entries() {
		if strings.TrimSpace(entry.Component) == "" {
			return fmt.Errorf("%s is required", wire.IndexedKey(wire.EntryComponent, entry.Index))
		}
		if e.valid != nil && !e.valid(entry.Component) {
			return fmt.Errorf("%s: unknown component code %s", wire.IndexedKey(wire.EntryComponent, entry.Index), entry.Component)
		}
		if strings.TrimSpace(entry.Activities) == "" {
			return fmt.Errorf("%s is required", wire.IndexedKey(wire.EntryActivities, entry.Index))
		}
		if entry.SC < 0 || entry.USC < 0 || entry.ACD < 0 {
			return fmt.Errorf("entry %d: counters must not be negative", entry.Index)
		}
	}
	return nil
}

// Reset drops every block. The counter keeps its value.
func (e *Editor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.blocks = nil
}
