package kifu

import "fmt"

// Normalize derives every field a notation may leave out (origin,
// definitive piece kind, promotion, capture, same-square flag, relative
// token, cumulative time) by replaying the record from its initial
// position. Forks replay from the position before their anchor step.
// The record is modified in place; on error its contents are unspecified
// and the caller should discard it.
func Normalize(rec *Record) error {
	if rec.Header == nil {
		rec.Header = map[string]string{}
	}
	if len(rec.Moves) == 0 {
		rec.Moves = []Step{{}}
	}
	normalizeInitial(rec)
	pos, err := PositionFromInitial(rec.Initial)
	if err != nil {
		return err
	}
	nestSiblingForks(rec.Moves[1:])
	return normalizeSteps(rec.Moves[1:], pos, [2]int{}, 1)
}

// nestSiblingForks keeps at most one fork per step. A later fork of the
// same step moves under the first step of the last fork chained from the
// earlier one, which is how consecutive 変化 blocks with the same anchor
// read back. Empty forks are dropped.
func nestSiblingForks(steps []Step) {
	for i := range steps {
		var forks [][]Step
		for _, f := range steps[i].Forks {
			if len(f) > 0 {
				nestSiblingForks(f)
				forks = append(forks, f)
			}
		}
		for j := 1; j < len(forks); j++ {
			tail := forks[j-1]
			for len(tail[0].Forks) > 0 {
				tail = tail[0].Forks[0]
			}
			tail[0].Forks = [][]Step{forks[j]}
		}
		if len(forks) > 1 {
			forks = forks[:1]
		}
		steps[i].Forks = forks
	}
}

func normalizeInitial(rec *Record) {
	if rec.Initial == nil {
		rec.Initial = &Initial{Preset: PresetHirate}
		return
	}
	if rec.Initial.Data == nil {
		return
	}
	if p, ok := matchPreset(rec.Initial.Data); ok {
		rec.Initial = &Initial{Preset: p}
		return
	}
	rec.Initial.Preset = PresetOther
}

// normalizeSteps walks one branch. pos and totals are values, so each
// fork works on its own copy of the branch point.
func normalizeSteps(steps []Step, pos Position, totals [2]int, firstPly int) error {
	for i := range steps {
		step := &steps[i]
		ply := firstPly + i
		for f := range step.Forks {
			if err := normalizeSteps(step.Forks[f], pos, totals, ply); err != nil {
				return err
			}
		}
		side := pos.SideToMove()
		if step.Time != nil {
			totals[side] += step.Time.Now.Seconds()
			step.Time.Total = ClockFromSeconds(totals[side], true)
		}
		if step.Move == nil {
			break
		}
		if err := normalizeMove(step.Move, &pos, ply); err != nil {
			return err
		}
	}
	return nil
}

func normalizeMove(m *Move, pos *Position, ply int) error {
	color := pos.SideToMove()
	m.Color = color
	if m.Same {
		last, ok := pos.LastMove()
		if !ok {
			return &NormalizeError{Kind: NoPreviousMove, Ply: ply}
		}
		m.To = last.To
	}
	if !m.To.Valid() {
		return &NormalizeError{Kind: InvalidSquare, Ply: ply, Square: m.To}
	}
	if m.From != nil && !m.From.Valid() {
		return &NormalizeError{Kind: InvalidSquare, Ply: ply, Square: *m.From}
	}
	if !m.Piece.Valid() {
		return &NormalizeError{Kind: MoveApplicationFailed, Ply: ply, Square: m.To,
			Err: fmt.Errorf("invalid piece kind %d", uint8(m.Piece))}
	}

	from, drop, err := resolveOrigin(m, pos, color, ply)
	if err != nil {
		return err
	}

	if drop {
		m.From = nil
		m.Same = false
		m.Promote = nil
	} else {
		piece, ok := pos.PieceAt(from)
		if !ok || piece.Color != color {
			return &NormalizeError{Kind: NoPieceAt, Ply: ply, Square: from}
		}
		toKind := m.Piece
		if m.Promotes() {
			toKind = m.Piece.Promoted()
		}
		m.From = squarePtr(from)
		m.Piece = piece.Kind
		last, ok := pos.LastMove()
		m.Same = ok && last.To == m.To
		if piece.Kind.Promotable() && (inPromotionZone(from, color) || inPromotionZone(m.To, color)) {
			m.Promote = boolPtr(piece.Kind != toKind)
		} else {
			m.Promote = nil
		}
	}

	rel, err := canonicalRelative(pos, m, from, drop, ply)
	if err != nil {
		return err
	}
	m.Relative = rel

	captured, err := pos.MakeMove(PieceMove{
		From:    from,
		To:      m.To,
		Kind:    m.Piece,
		Promote: m.Promotes(),
		Drop:    drop,
	})
	if err != nil {
		return &NormalizeError{Kind: MoveApplicationFailed, Ply: ply, Square: m.To, Err: err}
	}
	m.Capture = captured.Kind
	return nil
}

// resolveOrigin finds the origin of a move written without one. A drop
// token, or no candidate at all, makes it a drop.
func resolveOrigin(m *Move, pos *Position, color Color, ply int) (Square, bool, error) {
	if m.From != nil {
		return *m.From, false, nil
	}
	if m.Relative == RelativeDrop {
		return Square{}, true, nil
	}
	candidates := Candidates(pos, m.To, Piece{Color: color, Kind: m.Piece})
	switch len(candidates) {
	case 0:
		return Square{}, true, nil
	case 1:
		return candidates[0], false, nil
	}
	if m.Relative == RelativeNone {
		return Square{}, false, &NormalizeError{Kind: AmbiguousOrigin, Ply: ply, Square: m.To, Candidates: candidates}
	}
	kept := FilterRelative(candidates, m.To, color, m.Relative)
	if len(kept) != 1 {
		return Square{}, false, &NormalizeError{Kind: AmbiguousOrigin, Ply: ply, Square: m.To, Candidates: candidates}
	}
	return kept[0], false, nil
}

// canonicalRelative computes the token written in compact notation for
// the already resolved move, before it is applied to pos.
func canonicalRelative(pos *Position, m *Move, from Square, drop bool, ply int) (Relative, error) {
	candidates := Candidates(pos, m.To, Piece{Color: m.Color, Kind: m.Piece})
	if drop {
		if len(candidates) > 0 {
			return RelativeDrop, nil
		}
		return RelativeNone, nil
	}
	if len(candidates) < 2 {
		return RelativeNone, nil
	}
	rel, ok := ChooseRelative(candidates, from, m.To, m.Color)
	if !ok {
		return RelativeNone, &NormalizeError{Kind: AmbiguousOrigin, Ply: ply, Square: m.To, Candidates: candidates}
	}
	return rel, nil
}
