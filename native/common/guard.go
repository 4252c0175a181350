package common

import (
	"errors"
	"sync/atomic"
)

var (
	ErrModulePaused  = errors.New("module paused")
	ErrReentrantCall = errors.New("module reentrancy detected")
)

// PauseView exposes the pause switches maintained by the operator surface.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects calls into a paused module.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// CallGuard is a per-engine mutual-exclusion flag held for the scope of a
// single mutating entry point. It blocks reentrant self-invocation: a second
// Enter before Exit fails rather than waiting.
type CallGuard struct {
	busy atomic.Bool
}

// Enter acquires the guard or fails with ErrReentrantCall.
func (g *CallGuard) Enter() error {
	if g == nil {
		return nil
	}
	if !g.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

// Exit releases the guard. Safe to defer immediately after a successful Enter.
func (g *CallGuard) Exit() {
	if g == nil {
		return
	}
	g.busy.Store(false)
}
