package main

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeClock advances only when Sleep is called.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return nil
}

type pageCall struct {
	op  string
	arg string
	at  time.Time
}

func (c pageCall) String() string {
	return c.op + ":" + c.arg
}

// fakePage is an in-memory storefront. Elements present by id carry a
// value; class lists map to how many elements carry them.
type fakePage struct {
	clock    Clock
	elements map[string]string
	classes  map[string]int
	calls    []pageCall
	events   map[string][]string
	history  map[string][]string

	existsErr  error
	onNavigate func(p *fakePage, url string)
}

func newFakePage(clock Clock) *fakePage {
	return &fakePage{
		clock:    clock,
		elements: make(map[string]string),
		classes:  make(map[string]int),
		events:   make(map[string][]string),
		history:  make(map[string][]string),
	}
}

// withGiftForm installs every element the default selectors reference.
func (p *fakePage) withGiftForm(dayKeys ...int64) *fakePage {
	sel := DefaultConfig().Selectors
	for _, id := range []string{sel.CustomAmount, sel.Recipients, sel.SenderName, sel.Message, sel.DateInput, sel.AddToCartButton} {
		p.elements[id] = ""
	}
	p.classes[sel.NextMonthClass] = 2
	for _, k := range dayKeys {
		p.classes[fmt.Sprintf(sel.DayControlClass, k)] = 1
	}
	return p
}

func (p *fakePage) clearForm() {
	p.elements = make(map[string]string)
	p.classes = make(map[string]int)
}

func (p *fakePage) record(op, arg string) {
	var at time.Time
	if p.clock != nil {
		at = p.clock.Now()
	}
	p.calls = append(p.calls, pageCall{op: op, arg: arg, at: at})
}

func (p *fakePage) Exists(_ context.Context, id string) (bool, error) {
	p.record("exists", id)
	if p.existsErr != nil {
		return false, p.existsErr
	}
	_, ok := p.elements[id]
	return ok, nil
}

func (p *fakePage) SetValue(_ context.Context, id, value string) error {
	p.record("set", id)
	if _, ok := p.elements[id]; !ok {
		return ErrElementNotFound
	}
	p.elements[id] = value
	p.history[id] = append(p.history[id], value)
	return nil
}

func (p *fakePage) Click(_ context.Context, id string) error {
	p.record("click", id)
	if _, ok := p.elements[id]; !ok {
		return ErrElementNotFound
	}
	return nil
}

func (p *fakePage) DispatchEvents(_ context.Context, id string, events ...string) error {
	p.record("dispatch", id)
	if _, ok := p.elements[id]; !ok {
		return ErrElementNotFound
	}
	p.events[id] = append(p.events[id], events...)
	return nil
}

func (p *fakePage) ClickClass(_ context.Context, class string, index int) error {
	p.record("clickClass", class)
	if p.classes[class] <= index {
		return ErrElementNotFound
	}
	return nil
}

func (p *fakePage) ClickClassChild(_ context.Context, class string) error {
	p.record("clickChild", class)
	if p.classes[class] == 0 {
		return ErrElementNotFound
	}
	return nil
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.record("navigate", url)
	if p.onNavigate != nil {
		p.onNavigate(p, url)
	}
	return nil
}

func (p *fakePage) ops() []string {
	out := make([]string, len(p.calls))
	for i, c := range p.calls {
		out[i] = c.String()
	}
	return out
}

func (p *fakePage) count(op, arg string) int {
	n := 0
	for _, c := range p.calls {
		if c.op == op && c.arg == arg {
			n++
		}
	}
	return n
}

// failingKV fails every call with err.
type failingKV struct{ err error }

func (f failingKV) Get(context.Context, ...string) (map[string]int, error) { return nil, f.err }
func (f failingKV) Set(context.Context, map[string]int) error              { return f.err }
