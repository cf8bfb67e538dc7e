package battle

// Category is a move's damage class.
type Category string

const (
	CategoryPhysical Category = "physical"
	CategorySpecial  Category = "special"
	CategoryStatus   Category = "status"
)

// Stats is a species' base stat block.
type Stats struct {
	HP        int `json:"hp"`
	Attack    int `json:"attack"`
	Defense   int `json:"defense"`
	SpAttack  int `json:"sp_attack"`
	SpDefense int `json:"sp_defense"`
	Speed     int `json:"speed"`
}

// Combatant is the view of one side the damage formula needs.
type Combatant struct {
	Stats Stats
	Type1 string
	Type2 string // empty = single type
	// Drowsiness is the owning user's drowsiness count; it weakens the
	// combatant's attacks.
	Drowsiness int
}

// HasType reports whether t is one of the combatant's types.
func (c Combatant) HasType(t string) bool {
	return t != "" && (t == c.Type1 || t == c.Type2)
}

// MoveDef is read-only move reference data.
type MoveDef struct {
	ID       int64    `json:"move_id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Type     string   `json:"type"`
	Power    *int     `json:"power"`
	PP       *int     `json:"pp"`
	Accuracy *int     `json:"accuracy,omitempty"`
}

// PowerValue returns the move's power, 0 when unset.
func (m MoveDef) PowerValue() int {
	if m.Power == nil {
		return 0
	}
	return *m.Power
}

// MaxPP returns the move's PP budget, or def when the move has none.
func (m MoveDef) MaxPP(def int) int {
	if m.PP == nil || *m.PP <= 0 {
		return def
	}
	return *m.PP
}

// DamageEligible reports whether the move can deal direct damage:
// positive power and a non-status category.
func (m MoveDef) DamageEligible() bool {
	if m.Category == CategoryStatus {
		return false
	}
	if m.Category != CategoryPhysical && m.Category != CategorySpecial {
		return false
	}
	return m.PowerValue() > 0
}

// IntPtr is a helper for building optional move fields.
func IntPtr(v int) *int { return &v }
