package anim

import "time"

// Scheduler defers a function by a fixed delay. The returned cancel func
// stops the callback if it has not fired yet.
//
// Fixed delays stand in for "animation complete" signals from the rendering
// layer; a richer design would await a completion event instead.
type Scheduler interface {
	After(d time.Duration, fn func()) (cancel func())
}

// TimerScheduler runs callbacks on real timers. Post, when set, marshals
// each callback onto the owning event loop so all state stays
// single-threaded; without it callbacks fire on the timer goroutine.
type TimerScheduler struct {
	Post func(fn func())
}

func (s *TimerScheduler) After(d time.Duration, fn func()) func() {
	run := fn
	if s.Post != nil {
		post := s.Post
		run = func() { post(fn) }
	}
	t := time.AfterFunc(d, run)
	return func() { t.Stop() }
}
