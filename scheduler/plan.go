package scheduler

import (
	"math/rand/v2"
	"time"

	"github.com/ClipFinance/stargate-bridger/route"
)

// DelayRange is a closed interval a random pause is drawn from.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// Draw returns a uniformly distributed duration in [Min, Max] at millisecond resolution.
func (r DelayRange) Draw() time.Duration {
	lo, hi := r.Min, r.Max
	if hi < lo {
		lo, hi = hi, lo
	}
	span := (hi - lo).Milliseconds()
	if span <= 0 {
		return lo
	}
	return lo + time.Duration(rand.Int64N(span+1))*time.Millisecond
}

// Step is one leg of a plan.
type Step struct {
	Route      route.Route // Where funds move.
	DelayAfter DelayRange  // Pause before the next leg, skipped after the last one.
}

// Plan is the ordered list of legs every wallet runs, Repeat times over.
type Plan struct {
	Name   string
	Steps  []Step
	Repeat int
}

// SinglePlan runs one route once.
func SinglePlan(r route.Route) Plan {
	return Plan{Name: r.Code, Steps: []Step{{Route: r}}, Repeat: 1}
}

// DefaultRotation is Polygon to Avalanche to BSC and back to Polygon.
func DefaultRotation() []Step {
	pa, _ := route.Parse("pa")
	ab, _ := route.Parse("ab")
	bp, _ := route.Parse("bp")
	return []Step{
		{Route: pa, DelayAfter: DelayRange{Min: 1200 * time.Second, Max: 1500 * time.Second}},
		{Route: ab, DelayAfter: DelayRange{Min: 1200 * time.Second, Max: 1500 * time.Second}},
		{Route: bp, DelayAfter: DelayRange{Min: 100 * time.Second, Max: 300 * time.Second}},
	}
}

// legCount is the number of legs a wallet runs for the plan.
func (p Plan) legCount() int {
	repeat := p.Repeat
	if repeat < 1 {
		repeat = 1
	}
	return repeat * len(p.Steps)
}
