package types

// SideType is the direction of our exposure, not the venue order side.
type SideType string

const (
	SideTypeLong  SideType = "long"
	SideTypeShort SideType = "short"
)

// Reverse returns the opposite direction. The whole engine trades against the
// observed signal stream, so this is applied to every inbound open directive.
func (s SideType) Reverse() SideType {
	if s == SideTypeLong {
		return SideTypeShort
	}
	return SideTypeLong
}

func (s SideType) String() string {
	return string(s)
}

// OrderSide is the venue-facing order side.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// EntryOrderSide maps a position direction to the order side that opens it.
func (s SideType) EntryOrderSide() OrderSide {
	if s == SideTypeLong {
		return OrderSideBuy
	}
	return OrderSideSell
}

// ExitOrderSide maps a position direction to the order side that closes it.
func (s SideType) ExitOrderSide() OrderSide {
	if s == SideTypeLong {
		return OrderSideSell
	}
	return OrderSideBuy
}
