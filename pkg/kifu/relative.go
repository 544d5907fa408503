package kifu

// A token is a movement word, a side word, or a side word after a
// movement word. Side words pick among the candidates that survive the
// movement word; they never look at the destination.
type relativeParts struct {
	move Relative
	side Relative
}

var relativeSplit = map[Relative]relativeParts{
	RelativeLeft:          {RelativeNone, RelativeLeft},
	RelativeRight:         {RelativeNone, RelativeRight},
	RelativeStraight:      {RelativeStraight, RelativeNone},
	RelativeUp:            {RelativeUp, RelativeNone},
	RelativeSideways:      {RelativeSideways, RelativeNone},
	RelativeDown:          {RelativeDown, RelativeNone},
	RelativeLeftUp:        {RelativeUp, RelativeLeft},
	RelativeLeftSideways:  {RelativeSideways, RelativeLeft},
	RelativeLeftDown:      {RelativeDown, RelativeLeft},
	RelativeRightUp:       {RelativeUp, RelativeRight},
	RelativeRightSideways: {RelativeSideways, RelativeRight},
	RelativeRightDown:     {RelativeDown, RelativeRight},
}

// movesAs reports whether from -> to by color is the movement word r.
// Straight (直) is a move straight forward.
func movesAs(r Relative, from, to Square, c Color) bool {
	switch r {
	case RelativeUp:
		return from.relRank(c) > to.relRank(c)
	case RelativeDown:
		return from.relRank(c) < to.relRank(c)
	case RelativeSideways:
		return from.Rank == to.Rank
	case RelativeStraight:
		return from.File == to.File && from.relRank(c) > to.relRank(c)
	}
	return true
}

// FilterRelative keeps the candidates that token r selects for a move to
// to. Left and right are seen from the mover, so files are mirrored for
// White: 左 keeps the candidates on the mover's leftmost file.
func FilterRelative(candidates []Square, to Square, c Color, r Relative) []Square {
	parts, ok := relativeSplit[r]
	if !ok {
		return append([]Square(nil), candidates...)
	}
	var kept []Square
	for _, sq := range candidates {
		if movesAs(parts.move, sq, to, c) {
			kept = append(kept, sq)
		}
	}
	if parts.side == RelativeNone || len(kept) == 0 {
		return kept
	}
	edge := kept[0].relFile(c)
	for _, sq := range kept[1:] {
		f := sq.relFile(c)
		if (parts.side == RelativeLeft && f > edge) || (parts.side == RelativeRight && f < edge) {
			edge = f
		}
	}
	var side []Square
	for _, sq := range kept {
		if sq.relFile(c) == edge {
			side = append(side, sq)
		}
	}
	return side
}

// relativeSearchOrder is tried front to back: a movement word alone,
// then 直, then a side word alone, then the combined forms.
var relativeSearchOrder = []Relative{
	RelativeUp, RelativeDown, RelativeSideways,
	RelativeStraight, RelativeLeft, RelativeRight,
	RelativeLeftUp, RelativeLeftSideways, RelativeLeftDown,
	RelativeRightUp, RelativeRightSideways, RelativeRightDown,
}

// ChooseRelative picks the first token that selects exactly from among
// candidates. It reports false when no single token can.
func ChooseRelative(candidates []Square, from, to Square, c Color) (Relative, bool) {
	for _, r := range relativeSearchOrder {
		kept := FilterRelative(candidates, to, c, r)
		if len(kept) == 1 && kept[0] == from {
			return r, true
		}
	}
	return RelativeNone, false
}
