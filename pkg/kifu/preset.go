package kifu

var hirateState = func() State {
	var s State
	back := [9]Kind{Lance, Knight, Silver, Gold, King, Gold, Silver, Knight, Lance}
	for file := 1; file <= 9; file++ {
		s.Board[file-1][0] = Piece{Color: White, Kind: back[file-1]}
		s.Board[file-1][2] = Piece{Color: White, Kind: Pawn}
		s.Board[file-1][6] = Piece{Color: Black, Kind: Pawn}
		s.Board[file-1][8] = Piece{Color: Black, Kind: back[file-1]}
	}
	s.Board[1][1] = Piece{Color: White, Kind: Bishop}
	s.Board[7][1] = Piece{Color: White, Kind: Rook}
	s.Board[7][7] = Piece{Color: Black, Kind: Bishop}
	s.Board[1][7] = Piece{Color: Black, Kind: Rook}
	return s
}()

// presetRemovals lists the White pieces taken off the standard layout
// for each handicap.
var presetRemovals = map[Preset][]Square{
	PresetKY:   {{1, 1}},
	PresetKYR:  {{9, 1}},
	PresetKA:   {{2, 2}},
	PresetHI:   {{8, 2}},
	PresetHIKY: {{8, 2}, {1, 1}},
	Preset2:    {{8, 2}, {2, 2}},
	Preset3:    {{8, 2}, {2, 2}, {1, 1}},
	Preset4:    {{8, 2}, {2, 2}, {9, 1}, {1, 1}},
	Preset5:    {{8, 2}, {2, 2}, {9, 1}, {1, 1}, {8, 1}},
	Preset5L:   {{8, 2}, {2, 2}, {9, 1}, {1, 1}, {2, 1}},
	Preset6:    {{8, 2}, {2, 2}, {9, 1}, {1, 1}, {8, 1}, {2, 1}},
	Preset7L:   {{8, 2}, {2, 2}, {9, 1}, {1, 1}, {8, 1}, {2, 1}, {3, 1}},
	Preset7R:   {{8, 2}, {2, 2}, {9, 1}, {1, 1}, {8, 1}, {2, 1}, {7, 1}},
	Preset8:    {{8, 2}, {2, 2}, {9, 1}, {1, 1}, {8, 1}, {2, 1}, {7, 1}, {3, 1}},
	Preset10:   {{8, 2}, {2, 2}, {9, 1}, {1, 1}, {8, 1}, {2, 1}, {7, 1}, {3, 1}, {6, 1}, {4, 1}},
}

// presetOrder is the order in which explicit data is matched back to a
// named preset.
var presetOrder = []Preset{
	PresetHirate, PresetKY, PresetKYR, PresetKA, PresetHI, PresetHIKY,
	Preset2, Preset3, Preset4, Preset5, Preset5L, Preset6, Preset7L, Preset7R, Preset8, Preset10,
}

func presetState(p Preset) (State, error) {
	switch p {
	case PresetHirate:
		return hirateState, nil
	case PresetKY, PresetKYR, PresetKA, PresetHI, PresetHIKY, Preset2, Preset3, Preset4,
		Preset5, Preset5L, Preset6, Preset7L, Preset7R, Preset8, Preset10:
		s := hirateState
		for _, sq := range presetRemovals[p] {
			s.Board[sq.File-1][sq.Rank-1] = Piece{}
		}
		s.Color = White
		return s, nil
	case PresetOther:
		return State{}, convertErrorf("initial", "preset OTHER requires explicit data")
	}
	return State{}, convertErrorf("initial", "unsupported preset %s", p)
}

// PresetRemovals returns the squares emptied by a handicap preset.
func PresetRemovals(p Preset) []Square {
	return append([]Square(nil), presetRemovals[p]...)
}

func matchPreset(s *State) (Preset, bool) {
	for _, p := range presetOrder {
		ps, err := presetState(p)
		if err != nil {
			continue
		}
		if ps == *s {
			return p, true
		}
	}
	return PresetOther, false
}
