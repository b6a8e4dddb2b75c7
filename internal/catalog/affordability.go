package catalog

import "fmt"

// Affordability is the outcome of evaluating a balance against an item price.
// Unknown is distinct from NotAffordable: it means the question could not be
// evaluated yet (no balance loaded or no item selected).
type Affordability int

const (
	Unknown Affordability = iota
	Affordable
	NotAffordable
)

func (a Affordability) String() string {
	switch a {
	case Affordable:
		return "affordable"
	case NotAffordable:
		return "not_affordable"
	default:
		return "unknown"
	}
}

// MarshalText renders the variant as its string code.
func (a Affordability) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses a string code produced by MarshalText.
func (a *Affordability) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unknown":
		*a = Unknown
	case "affordable":
		*a = Affordable
	case "not_affordable":
		*a = NotAffordable
	default:
		return fmt.Errorf("unknown affordability %q", string(text))
	}
	return nil
}
