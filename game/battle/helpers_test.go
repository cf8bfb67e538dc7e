package battle

// fixedRand returns constant values so tests can pin the random factor.
type fixedRand struct {
	f float64
	i int
}

func (r fixedRand) Intn(n int) int { return r.i % n }

func (r fixedRand) Float64() float64 { return r.f }

func move(id int64, cat Category, typ string, power int) MoveDef {
	m := MoveDef{ID: id, Name: "move", Category: cat, Type: typ, PP: IntPtr(5)}
	if power >= 0 {
		m.Power = IntPtr(power)
	}
	return m
}
