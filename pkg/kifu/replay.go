package kifu

import (
	"fmt"
	"strings"
)

// PieceMove converts a normalized move into the board's form.
func (m *Move) PieceMove() PieceMove {
	if m.From == nil {
		return PieceMove{To: m.To, Kind: m.Piece, Drop: true}
	}
	return PieceMove{From: *m.From, To: m.To, Kind: m.Piece, Promote: m.Promotes()}
}

// MainLine returns the moves of the main line up to the first special step.
func (r *Record) MainLine() []*Move {
	var moves []*Move
	for i := 1; i < len(r.Moves); i++ {
		if r.Moves[i].Move == nil {
			break
		}
		moves = append(moves, r.Moves[i].Move)
	}
	return moves
}

// Replay returns the position after the first ply moves of the main
// line of a normalized record. Replay(r, 0) is the initial position.
func Replay(r *Record, ply int) (Position, error) {
	pos, err := PositionFromInitial(r.Initial)
	if err != nil {
		return Position{}, err
	}
	moves := r.MainLine()
	if ply < 0 || ply > len(moves) {
		return Position{}, fmt.Errorf("ply out of range: %d", ply)
	}
	for i := 0; i < ply; i++ {
		if _, err := pos.MakeMove(moves[i].PieceMove()); err != nil {
			return Position{}, fmt.Errorf("move %d: %w", i+1, err)
		}
	}
	return pos, nil
}

// SFENAt is the SFEN of the position after ply moves of the main line.
func SFENAt(r *Record, ply int) (string, error) {
	pos, err := Replay(r, ply)
	if err != nil {
		return "", err
	}
	return pos.SFEN(ply + 1), nil
}

// RenderUSI formats the main line as "sfen <initial> moves <usi>...".
func RenderUSI(r *Record) (string, error) {
	pos, err := PositionFromInitial(r.Initial)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("sfen ")
	b.WriteString(pos.SFEN(1))
	moves := r.MainLine()
	if len(moves) > 0 {
		b.WriteString(" moves")
		for _, m := range moves {
			b.WriteByte(' ')
			b.WriteString(m.PieceMove().USI())
		}
	}
	return b.String(), nil
}
