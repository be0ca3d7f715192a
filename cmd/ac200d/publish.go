// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ac200d

import (
	"context"
	"time"

	"github.com/garyburd/redigo/redis"
	"github.com/jpillora/backoff"
	"github.com/platinasystems/ac200/ac200/ephyctl"
	"github.com/platinasystems/ac200/internal/clk"
	"github.com/platinasystems/ac200/internal/reset"
	"github.com/platinasystems/log"
	"github.com/platinasystems/redis/publisher"
)

const (
	Hash     = "ac200"
	KeyReset = "ac200.ephy.reset"
	KeyClock = "ac200.ephy.clock"
)

// Sink stores one published field.
type Sink interface {
	Set(key, value string) error
}

// HashSink sets fields of a hash on a redis server.
type HashSink struct {
	Pool *redis.Pool
	Hash string
}

func (s *HashSink) Set(key, value string) error {
	conn := s.Pool.Get()
	defer conn.Close()
	_, err := conn.Do("HSET", s.Hash, key, value)
	return err
}

// MachineSink publishes to the goes machine redis, whose hash is implied.
type MachineSink struct {
	Pub *publisher.Publisher
}

func (s *MachineSink) Set(key, value string) error {
	_, err := s.Pub.Print(key, ": ", value)
	return err
}

func (s *MachineSink) Close() error { return s.Pub.Close() }

// Publisher copies the EPHY line and clock state to a sink whenever it
// changes.
type Publisher struct {
	Sink     Sink
	Resets   *reset.Registry
	Clocks   *clk.Registry
	Interval time.Duration

	last map[string]string
}

type enabler interface {
	Enabled() (bool, error)
}

// State returns the current published values.
func (p *Publisher) State() map[string]string {
	m := make(map[string]string)
	if rc, err := p.Resets.Get(ephyctl.Name); err == nil {
		if released, err := rc.Status(); err == nil {
			m[KeyReset] = "asserted"
			if released {
				m[KeyReset] = "released"
			}
		}
	}
	if c, err := p.Clocks.Get(ephyctl.GateName); err == nil {
		if e, ok := c.(enabler); ok {
			if on, err := e.Enabled(); err == nil {
				m[KeyClock] = "off"
				if on {
					m[KeyClock] = "on"
				}
			}
		}
	}
	return m
}

// Update writes the values that changed since the last successful update.
func (p *Publisher) Update() error {
	if p.last == nil {
		p.last = make(map[string]string)
	}
	for k, v := range p.State() {
		if p.last[k] == v {
			continue
		}
		if err := p.Sink.Set(k, v); err != nil {
			return err
		}
		p.last[k] = v
	}
	return nil
}

// Run updates every Interval until ctx is done. Failed updates are retried
// with backoff.
func (p *Publisher) Run(ctx context.Context) error {
	b := &backoff.Backoff{
		Min:    p.Interval,
		Max:    60 * time.Second,
		Factor: 2,
		Jitter: false,
	}
	d := p.Interval
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(d):
		}
		if err := p.Update(); err != nil {
			d = b.Duration()
			log.Print("daemon", "err", "ac200d: publish: ", err,
				", retry in ", d)
			continue
		}
		b.Reset()
		d = p.Interval
	}
}
