// Package scheduler drives the Class-B/C downlink loops: a device-queue
// loop (one tick scans every device with a non-empty application downlink
// queue and a Class-B/C session) and a multicast-queue loop. Both are
// time.Ticker-driven and stop cooperatively on context cancellation,
// following the same ctx-carries-cancellation idiom backend/client.go uses
// for its HTTP round trips. There is no background sweeper for expired
// state: expiry is TTL-only, per the session store's redis TTLs.
package scheduler

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DeviceDispatcher is invoked once per tick for every device due a Class-B
// or Class-C downlink attempt.
type DeviceDispatcher interface {
	DispatchDue(ctx context.Context) error
}

// MulticastDispatcher drains due multicast group downlinks.
type MulticastDispatcher interface {
	DispatchDueMulticast(ctx context.Context) error
}

// Scheduler runs the two ticker loops until Stop is called or its context
// is cancelled.
type Scheduler struct {
	DeviceInterval    time.Duration
	MulticastInterval time.Duration

	Device    DeviceDispatcher
	Multicast MulticastDispatcher

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Scheduler. Intervals of zero disable the corresponding loop.
func New(device DeviceDispatcher, multicast MulticastDispatcher, deviceInterval, multicastInterval time.Duration) *Scheduler {
	return &Scheduler{
		DeviceInterval:    deviceInterval,
		MulticastInterval: multicastInterval,
		Device:            device,
		Multicast:         multicast,
	}
}

// Run starts both ticker loops and blocks until ctx is cancelled or Stop is
// called.
func (s *Scheduler) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	defer close(s.done)

	var wg sync.WaitGroup
	if s.DeviceInterval > 0 && s.Device != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runLoop(ctx, "device-queue", s.DeviceInterval, s.Device.DispatchDue)
		}()
	}
	if s.MulticastInterval > 0 && s.Multicast != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runLoop(ctx, "multicast-queue", s.MulticastInterval, s.Multicast.DispatchDueMulticast)
		}()
	}
	wg.Wait()
}

// Stop cancels both loops and waits for them to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

func (s *Scheduler) runLoop(ctx context.Context, name string, interval time.Duration, dispatch func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := dispatch(ctx); err != nil {
				log.WithError(err).WithField("loop", name).Error("scheduler: dispatch error")
			}
		}
	}
}
