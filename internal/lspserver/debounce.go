package lspserver

import (
	"sync"
	"time"
)

// debouncer coalesces inline-completion requests per session (not per
// document), per §4.9: "requests arriving within 1/max_completions_per_second
// of the previous accepted one are coalesced — only the last one in a burst
// proceeds; earlier ones are resolved with empty results." Grounded on the
// teacher's per-URI time.AfterFunc debounce timer in internal/server,
// generalized from a leading-edge accept/reject gate (first request wins)
// to a trailing-edge one: every request waits out the window, and only the
// one that's still the most recently submitted call when the window
// elapses actually proceeds.
type debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	gen      uint64
}

func newDebouncer(perSecond float64) *debouncer {
	d := &debouncer{}
	d.setRate(perSecond)
	return d
}

func (d *debouncer) setRate(perSecond float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if perSecond <= 0 {
		d.interval = 0
		return
	}
	d.interval = time.Duration(float64(time.Second) / perSecond)
}

// Allow registers one completion request and waits out the debounce window,
// reporting whether this request was still the latest one submitted once
// the window elapsed — the trailing edge of an unbroken burst. Every
// request in a burst waits out its own window; whichever one finds no
// later arrival registered by then is the winner, so in an unbroken burst
// only the last submitted request returns true. cancel short-circuits the
// wait and returns false.
func (d *debouncer) Allow(cancel <-chan struct{}) bool {
	d.mu.Lock()
	d.gen++
	my := d.gen
	interval := d.interval
	d.mu.Unlock()

	if interval <= 0 {
		return true
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-cancel:
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return my == d.gen
}

func (d *debouncer) stop() {}
