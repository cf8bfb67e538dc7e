package battle

import "fmt"

// TypeEntry is one (attacking type, defending type) multiplier.
type TypeEntry struct {
	Attack     string
	Defend     string
	Multiplier float64
}

// TypeChart is an immutable attack-vs-defend multiplier table. It is safe
// for concurrent reads.
type TypeChart struct {
	m map[string]map[string]float64
}

// NewTypeChart builds a chart from entries. Every multiplier must be one of
// 0, 0.5, 1 or 2.
func NewTypeChart(entries []TypeEntry) (*TypeChart, error) {
	c := &TypeChart{m: make(map[string]map[string]float64)}
	for _, e := range entries {
		if e.Attack == "" || e.Defend == "" {
			return nil, fmt.Errorf("typechart: empty type name in entry %+v", e)
		}
		switch e.Multiplier {
		case 0, 0.5, 1, 2:
		default:
			return nil, fmt.Errorf("typechart: invalid multiplier %v for %s→%s", e.Multiplier, e.Attack, e.Defend)
		}
		row, ok := c.m[e.Attack]
		if !ok {
			row = make(map[string]float64)
			c.m[e.Attack] = row
		}
		row[e.Defend] = e.Multiplier
	}
	return c, nil
}

// Multiplier returns the product of the per-pair multipliers for each
// defending type present. An empty defend2 means a single-typed defender.
// Unknown or empty names are neutral.
func (c *TypeChart) Multiplier(attack, defend1, defend2 string) float64 {
	return c.pair(attack, defend1) * c.pair(attack, defend2)
}

func (c *TypeChart) pair(attack, defend string) float64 {
	if c == nil || attack == "" || defend == "" {
		return 1.0
	}
	if v, ok := c.m[attack][defend]; ok {
		return v
	}
	return 1.0
}

// Len reports the number of explicit entries in the chart.
func (c *TypeChart) Len() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, row := range c.m {
		n += len(row)
	}
	return n
}
