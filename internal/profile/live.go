package profile

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/profilekeeper/internal/models"
)

// Live follows a record stream and exposes its latest value.
type Live struct {
	cur      atomic.Pointer[models.UserProfile]
	ready    chan struct{}
	done     chan struct{}
	once     sync.Once
	cancel   context.CancelFunc
	decorate func(*models.UserProfile)
}

// newLive consumes updates until the stream closes. cancel stops the
// producer; decorate, if set, is applied to every value before it is stored.
func newLive(updates <-chan models.UserProfile, cancel context.CancelFunc, decorate func(*models.UserProfile)) *Live {
	l := &Live{
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
		cancel:   cancel,
		decorate: decorate,
	}
	go l.run(updates)
	return l
}

func (l *Live) run(updates <-chan models.UserProfile) {
	defer close(l.done)
	for p := range updates {
		if l.decorate != nil {
			l.decorate(&p)
		}
		l.cur.Store(&p)
		l.once.Do(func() { close(l.ready) })
	}
}

// Snapshot returns a copy of the latest value. ok is false until the first
// value arrives.
func (l *Live) Snapshot() (models.UserProfile, bool) {
	p := l.cur.Load()
	if p == nil {
		return models.UserProfile{}, false
	}
	return *p, true
}

// Ready is closed when the first value has arrived.
func (l *Live) Ready() <-chan struct{} { return l.ready }

// Done is closed when the stream has ended.
func (l *Live) Done() <-chan struct{} { return l.done }

// Close stops the subscription and waits for the stream to drain.
func (l *Live) Close() {
	l.cancel()
	<-l.done
}
