package behavior

import "math"

// minLeadSpeed guards the speed-matching rule against a stopped lead vehicle.
const minLeadSpeed = 1e-3

// followCase is what a speed rule sees of the ego and one lead vehicle.
type followCase struct {
	ref  float64
	lead float64
	gap  float64
}

// speedRule is one row of the following policy: when matches holds, decrement is taken off the
// reference speed.
type speedRule struct {
	name      string
	matches   func(cfg Config, c followCase) bool
	decrement func(cfg Config, c followCase) float64
}

// followRules is evaluated in order and the first match wins.
var followRules = []speedRule{
	{
		name: "close",
		matches: func(cfg Config, c followCase) bool {
			return c.gap < cfg.CloseGap
		},
		decrement: func(cfg Config, c followCase) float64 {
			return cfg.SpeedStep
		},
	},
	{
		name: "closing",
		matches: func(cfg Config, c followCase) bool {
			return c.ref-c.lead > cfg.SpeedBand
		},
		decrement: func(cfg Config, c followCase) float64 {
			return cfg.SpeedStep * (math.Abs(c.ref-c.lead) / c.ref) * (cfg.GapScale / c.gap)
		},
	},
	{
		name: "matching",
		matches: func(cfg Config, c followCase) bool {
			return math.Abs(c.ref-c.lead) <= cfg.SpeedBand
		},
		decrement: func(cfg Config, c followCase) float64 {
			if c.lead < minLeadSpeed {
				return cfg.SpeedStep
			}
			return cfg.SpeedStep * (c.ref - c.lead) / c.lead
		},
	},
}

// followDecrement returns the first matching rule's name and decrement for a lead vehicle at the
// given speed and gap ahead. ok is false when no rule applies.
func followDecrement(cfg Config, ref, lead, gap float64) (name string, decrement float64, ok bool) {
	c := followCase{ref: ref, lead: lead, gap: gap}
	for _, rule := range followRules {
		if rule.matches(cfg, c) {
			return rule.name, rule.decrement(cfg, c), true
		}
	}
	return "", 0, false
}
