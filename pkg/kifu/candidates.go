package kifu

import "sort"

type offset struct {
	file int
	rank int
}

// Offsets are from origin to destination for Black; a negative rank
// moves toward rank 1. White uses the negation.
var (
	goldSteps   = []offset{{0, -1}, {-1, -1}, {1, -1}, {-1, 0}, {1, 0}, {0, 1}}
	silverSteps = []offset{{0, -1}, {-1, -1}, {1, -1}, {-1, 1}, {1, 1}}
	kingSteps   = []offset{{0, -1}, {-1, -1}, {1, -1}, {-1, 0}, {1, 0}, {0, 1}, {-1, 1}, {1, 1}}
	orthoSteps  = []offset{{0, -1}, {-1, 0}, {1, 0}, {0, 1}}
	diagSteps   = []offset{{-1, -1}, {1, -1}, {-1, 1}, {1, 1}}
)

func pieceSteps(k Kind) []offset {
	switch k {
	case Pawn:
		return []offset{{0, -1}}
	case Knight:
		return []offset{{-1, -2}, {1, -2}}
	case Silver:
		return silverSteps
	case Gold, ProPawn, ProLance, ProKnight, ProSilver:
		return goldSteps
	case King:
		return kingSteps
	case Horse:
		return orthoSteps
	case Dragon:
		return diagSteps
	case KindNone, Lance, Bishop, Rook:
		return nil
	}
	return nil
}

func pieceRays(k Kind) []offset {
	switch k {
	case Lance:
		return []offset{{0, -1}}
	case Bishop, Horse:
		return diagSteps
	case Rook, Dragon:
		return orthoSteps
	case KindNone, Pawn, Knight, Silver, Gold, King, ProPawn, ProLance, ProKnight, ProSilver:
		return nil
	}
	return nil
}

func orient(o offset, c Color) offset {
	if c == White {
		return offset{-o.file, -o.rank}
	}
	return o
}

// Candidates returns the squares holding exactly piece from which a
// geometrically legal move reaches to. Check and pins are not considered.
// The result is sorted by file, then rank.
func Candidates(pos *Position, to Square, piece Piece) []Square {
	if !to.Valid() || !piece.Kind.Valid() {
		return nil
	}
	var found []Square
	for _, step := range pieceSteps(piece.Kind) {
		o := orient(step, piece.Color)
		from := Square{File: to.File - o.file, Rank: to.Rank - o.rank}
		if p, ok := pos.PieceAt(from); ok && p == piece {
			found = append(found, from)
		}
	}
	for _, ray := range pieceRays(piece.Kind) {
		o := orient(ray, piece.Color)
		from := Square{File: to.File - o.file, Rank: to.Rank - o.rank}
		for from.Valid() {
			if p, ok := pos.PieceAt(from); ok {
				if p == piece {
					found = append(found, from)
				}
				break
			}
			from = Square{File: from.File - o.file, Rank: from.Rank - o.rank}
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].File != found[j].File {
			return found[i].File < found[j].File
		}
		return found[i].Rank < found[j].Rank
	})
	return found
}
