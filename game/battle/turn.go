package battle

// Side identifies one of the two participants.
type Side int

const (
	SideA Side = iota
	SideB
)

func (s Side) String() string {
	if s == SideB {
		return "b"
	}
	return "a"
}

// FirstTurn decides which side acts first: higher base speed wins, equal
// speed is a coin flip on rng.
func FirstTurn(speedA, speedB int, rng Rand) Side {
	switch {
	case speedA > speedB:
		return SideA
	case speedB > speedA:
		return SideB
	}
	if rng.Intn(2) == 0 {
		return SideA
	}
	return SideB
}
