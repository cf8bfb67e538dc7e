package battle

// DamageConfig holds the tunable constants of the damage formula.
type DamageConfig struct {
	Level       int     // fixed battle level, independent of creature level
	VarianceMin float64 // lower bound of the random factor
	VarianceMax float64 // upper bound of the random factor
	STAB        float64 // same-type bonus

	PenaltyStep int // drowsiness penalty percent per count
	PenaltyMax  int // drowsiness penalty cap, percent
}

// DefaultDamageConfig returns level 50, variance 0.85–1.0, STAB 1.5 and a
// drowsiness penalty of 10% per count capped at 50%.
func DefaultDamageConfig() DamageConfig {
	return DamageConfig{
		Level:       50,
		VarianceMin: 0.85,
		VarianceMax: 1.0,
		STAB:        1.5,
		PenaltyStep: 10,
		PenaltyMax:  50,
	}
}

// DamageResult is the breakdown of one damage computation.
type DamageResult struct {
	Damage        int     `json:"damage"`
	Base          float64 `json:"base"`
	STAB          float64 `json:"stab"`
	Effectiveness float64 `json:"effectiveness"`
	Roll          float64 `json:"roll"`
	Penalty       int     `json:"penalty_percent,omitempty"`
}

// Calculator computes damage using an injected type chart.
type Calculator struct {
	Chart  *TypeChart
	Config DamageConfig
}

// NewCalculator returns a calculator; zero-valued config fields fall back to
// DefaultDamageConfig. A negative PenaltyStep disables the drowsiness
// penalty and a negative PenaltyMax leaves it uncapped.
func NewCalculator(chart *TypeChart, cfg DamageConfig) *Calculator {
	def := DefaultDamageConfig()
	if cfg.Level <= 0 {
		cfg.Level = def.Level
	}
	if cfg.VarianceMax <= 0 {
		cfg.VarianceMin, cfg.VarianceMax = def.VarianceMin, def.VarianceMax
	}
	if cfg.VarianceMin > cfg.VarianceMax {
		cfg.VarianceMin, cfg.VarianceMax = cfg.VarianceMax, cfg.VarianceMin
	}
	if cfg.STAB <= 0 {
		cfg.STAB = def.STAB
	}
	if cfg.PenaltyStep == 0 {
		cfg.PenaltyStep = def.PenaltyStep
	}
	if cfg.PenaltyMax == 0 {
		cfg.PenaltyMax = def.PenaltyMax
	}
	return &Calculator{Chart: chart, Config: cfg}
}

// Damage resolves the type multiplier from the chart and computes one hit,
// including the attacker's drowsiness penalty.
func (c *Calculator) Damage(attacker, defender Combatant, move MoveDef, rng Rand) DamageResult {
	mult := c.Chart.Multiplier(move.Type, defender.Type1, defender.Type2)
	res := ComputeDamage(attacker, defender, move, mult, c.Config, rng)
	if res.Damage > 0 {
		res.Damage, res.Penalty = ApplyDrowsiness(res.Damage, attacker.Drowsiness, c.Config)
	}
	return res
}

// ComputeDamage is the damage formula:
//
//	base = ((2*level/5 + 2) * power * atk / def) / 50 + 2
//	damage = max(1, int(base * stab * typeMultiplier * roll))
//
// Moves that are not damage-eligible deal 0. Zero attack or defense stats
// count as 1. A damage-eligible move deals at least 1, immune targets
// included, so every battle terminates.
func ComputeDamage(attacker, defender Combatant, move MoveDef, typeMultiplier float64, cfg DamageConfig, rng Rand) DamageResult {
	res := DamageResult{STAB: 1.0, Effectiveness: typeMultiplier}
	if !move.DamageEligible() {
		return res
	}

	var atk, def int
	switch move.Category {
	case CategoryPhysical:
		atk, def = attacker.Stats.Attack, defender.Stats.Defense
	case CategorySpecial:
		atk, def = attacker.Stats.SpAttack, defender.Stats.SpDefense
	}
	if atk <= 0 {
		atk = 1
	}
	if def <= 0 {
		def = 1
	}

	level := float64(cfg.Level)
	power := float64(move.PowerValue())
	res.Base = (((2*level/5+2)*power*float64(atk)/float64(def))/50 + 2)

	if attacker.HasType(move.Type) {
		res.STAB = cfg.STAB
	}
	res.Roll = roll(cfg, rng)

	dmg := int(res.Base * res.STAB * typeMultiplier * res.Roll)
	if dmg < 1 {
		dmg = 1
	}
	res.Damage = dmg
	return res
}

func roll(cfg DamageConfig, rng Rand) float64 {
	if rng == nil || cfg.VarianceMax <= cfg.VarianceMin {
		return cfg.VarianceMax
	}
	return cfg.VarianceMin + rng.Float64()*(cfg.VarianceMax-cfg.VarianceMin)
}

// ApplyDrowsiness reduces dmg by step% per drowsiness count, capped at max%.
// The result stays at least 1. It returns the reduced damage and the
// penalty percent applied.
func ApplyDrowsiness(dmg, count int, cfg DamageConfig) (int, int) {
	if count <= 0 || cfg.PenaltyStep <= 0 {
		return dmg, 0
	}
	pct := count * cfg.PenaltyStep
	if cfg.PenaltyMax > 0 && pct > cfg.PenaltyMax {
		pct = cfg.PenaltyMax
	}
	if pct > 100 {
		pct = 100
	}
	out := int(float64(dmg) * (1.0 - float64(pct)/100.0))
	if out < 1 {
		out = 1
	}
	return out, pct
}
