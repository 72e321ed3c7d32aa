package services

// Badge is a display label derived purely from a reputation threshold.
type Badge struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

var (
	badgeGold   = Badge{Name: "gold", Color: "#FFD700"}
	badgeSilver = Badge{Name: "silver", Color: "#C0C0C0"}
	badgeBronze = Badge{Name: "bronze", Color: "#CD7F32"}
)

// BadgeFor maps a reputation value to its badge tier.
// Zero or negative reputation earns no badge.
func BadgeFor(reputation int) *Badge {
	switch {
	case reputation >= 100:
		b := badgeGold
		return &b
	case reputation >= 50:
		b := badgeSilver
		return &b
	case reputation >= 1:
		b := badgeBronze
		return &b
	default:
		return nil
	}
}
