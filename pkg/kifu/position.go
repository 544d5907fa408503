package kifu

import (
	"errors"
	"fmt"
	"strings"
)

// PieceMove is a fully resolved move as the board applies it.
// From is ignored for drops; Kind is the dropped kind for drops.
type PieceMove struct {
	From    Square
	To      Square
	Kind    Kind
	Promote bool
	Drop    bool
}

// USI formats the move as "7g7f", "2b3c+" or "P*5e".
func (m PieceMove) USI() string {
	if m.Drop {
		return fmt.Sprintf("%s*%s", sfenLetter(m.Kind), usiSquare(m.To))
	}
	s := usiSquare(m.From) + usiSquare(m.To)
	if m.Promote {
		s += "+"
	}
	return s
}

func usiSquare(s Square) string {
	return fmt.Sprintf("%d%c", s.File, rankToLetter(s.Rank))
}

func rankToLetter(rank int) byte {
	return byte('a' + rank - 1)
}

// Position is a board, two hands and the side to move. It holds no
// pointers, so assignment copies it.
type Position struct {
	board   [9][9]Piece
	hands   [2]Hand
	turn    Color
	last    PieceMove
	hasLast bool
}

func Empty() Position {
	return Position{}
}

// Startpos returns the standard 40-piece layout with Black to move.
func Startpos() Position {
	var p Position
	p.loadState(&hirateState)
	return p
}

func (p Position) Clone() Position {
	return p
}

func (p *Position) PieceAt(s Square) (Piece, bool) {
	if !s.Valid() {
		return Piece{}, false
	}
	piece := p.board[s.Rank-1][s.File-1]
	return piece, !piece.Empty()
}

// SetPiece places piece on s. A piece with KindNone clears the square.
func (p *Position) SetPiece(s Square, piece Piece) {
	if !s.Valid() {
		return
	}
	p.board[s.Rank-1][s.File-1] = piece
}

func (p *Position) HandOf(c Color) Hand {
	return p.hands[c]
}

func (p *Position) SetHand(c Color, h Hand) {
	p.hands[c] = h
}

func (p *Position) SideToMove() Color {
	return p.turn
}

func (p *Position) SetSideToMove(c Color) {
	p.turn = c
}

// LastMove returns the most recently applied move.
func (p *Position) LastMove() (PieceMove, bool) {
	return p.last, p.hasLast
}

// MakeMove applies m for the side to move and returns the captured
// piece, if any.
func (p *Position) MakeMove(m PieceMove) (Piece, error) {
	if !m.To.Valid() {
		return Piece{}, fmt.Errorf("%w: destination %s off board", ErrIllegalMove, m.To)
	}
	target, occupied := p.PieceAt(m.To)
	if m.Drop {
		return Piece{}, p.applyDrop(m, occupied)
	}
	if !m.From.Valid() {
		return Piece{}, fmt.Errorf("%w: origin %s off board", ErrIllegalMove, m.From)
	}
	piece, ok := p.PieceAt(m.From)
	if !ok {
		return Piece{}, fmt.Errorf("%w: no piece at %s", ErrIllegalMove, m.From)
	}
	if piece.Color != p.turn {
		return Piece{}, fmt.Errorf("%w: moving opponent piece at %s", ErrIllegalMove, m.From)
	}
	if occupied && target.Color == p.turn {
		return Piece{}, fmt.Errorf("%w: capturing own piece at %s", ErrIllegalMove, m.To)
	}
	moved := piece
	if m.Promote {
		if !piece.Kind.Promotable() {
			return Piece{}, fmt.Errorf("%w: %s cannot promote", ErrIllegalMove, piece.Kind)
		}
		moved.Kind = piece.Kind.Promoted()
	}
	if occupied {
		p.hands[p.turn].Add(target.Kind.Unpromoted(), 1)
	}
	p.SetPiece(m.From, Piece{})
	p.SetPiece(m.To, moved)
	p.advance(m)
	if occupied {
		return target, nil
	}
	return Piece{}, nil
}

func (p *Position) applyDrop(m PieceMove, occupied bool) error {
	if occupied {
		return fmt.Errorf("%w: drop destination %s occupied", ErrIllegalMove, m.To)
	}
	hand := &p.hands[p.turn]
	if hand.Count(m.Kind) == 0 {
		return fmt.Errorf("%w: no %s in hand", ErrIllegalMove, m.Kind)
	}
	hand.Add(m.Kind, -1)
	p.SetPiece(m.To, Piece{Color: p.turn, Kind: m.Kind})
	p.advance(m)
	return nil
}

func (p *Position) advance(m PieceMove) {
	p.last = m
	p.hasLast = true
	p.turn = p.turn.Opponent()
}

// State returns the position as the record's explicit initial data.
func (p *Position) State() State {
	s := State{Color: p.turn, Hands: p.hands}
	for rank := 1; rank <= 9; rank++ {
		for file := 1; file <= 9; file++ {
			s.Board[file-1][rank-1] = p.board[rank-1][file-1]
		}
	}
	return s
}

func (p *Position) loadState(s *State) {
	for rank := 1; rank <= 9; rank++ {
		for file := 1; file <= 9; file++ {
			p.board[rank-1][file-1] = s.Board[file-1][rank-1]
		}
	}
	p.hands = s.Hands
	p.turn = s.Color
}

// PositionFromState builds a position from explicit initial data.
func PositionFromState(s *State) Position {
	var p Position
	p.loadState(s)
	return p
}

// PositionFromInitial builds the starting position of a record. A nil
// initial means the standard layout.
func PositionFromInitial(init *Initial) (Position, error) {
	if init == nil {
		return Startpos(), nil
	}
	if init.Data != nil {
		return PositionFromState(init.Data), nil
	}
	state, err := presetState(init.Preset)
	if err != nil {
		return Position{}, err
	}
	return PositionFromState(&state), nil
}

// SFEN renders the position with the given move number.
func (p *Position) SFEN(moveNumber int) string {
	rows := make([]string, 0, 9)
	for rank := 1; rank <= 9; rank++ {
		rows = append(rows, p.rankToSFEN(rank))
	}
	turn := "b"
	if p.turn == White {
		turn = "w"
	}
	hand := buildHands(p.hands[Black], p.hands[White])
	if hand == "" {
		hand = "-"
	}
	return fmt.Sprintf("%s %s %s %d", strings.Join(rows, "/"), turn, hand, moveNumber)
}

func (p *Position) rankToSFEN(rank int) string {
	var b strings.Builder
	empty := 0
	flushEmpty := func() {
		if empty > 0 {
			fmt.Fprintf(&b, "%d", empty)
			empty = 0
		}
	}
	for file := 9; file >= 1; file-- {
		piece := p.board[rank-1][file-1]
		if piece.Empty() {
			empty++
			continue
		}
		flushEmpty()
		text := sfenLetter(piece.Kind)
		if piece.Color == White {
			text = strings.ToLower(text)
		}
		b.WriteString(text)
	}
	flushEmpty()
	return b.String()
}

func sfenLetter(k Kind) string {
	if k.IsPromoted() {
		return "+" + sfenLetter(k.Unpromoted())
	}
	switch k {
	case Pawn:
		return "P"
	case Lance:
		return "L"
	case Knight:
		return "N"
	case Silver:
		return "S"
	case Gold:
		return "G"
	case Bishop:
		return "B"
	case Rook:
		return "R"
	case King:
		return "K"
	case KindNone, ProPawn, ProLance, ProKnight, ProSilver, Horse, Dragon:
	}
	return "?"
}

func sfenKind(r rune) (Kind, bool) {
	switch r {
	case 'P':
		return Pawn, true
	case 'L':
		return Lance, true
	case 'N':
		return Knight, true
	case 'S':
		return Silver, true
	case 'G':
		return Gold, true
	case 'B':
		return Bishop, true
	case 'R':
		return Rook, true
	case 'K':
		return King, true
	default:
		return KindNone, false
	}
}

func buildHands(black, white Hand) string {
	var b strings.Builder
	order := []Kind{Rook, Bishop, Gold, Silver, Knight, Lance, Pawn}
	for i, hand := range []Hand{black, white} {
		for _, k := range order {
			count := hand.Count(k)
			if count == 0 {
				continue
			}
			if count > 1 {
				fmt.Fprintf(&b, "%d", count)
			}
			letter := sfenLetter(k)
			if i == 1 {
				letter = strings.ToLower(letter)
			}
			b.WriteString(letter)
		}
	}
	return b.String()
}

// ParseSFEN reads the board, turn and hand fields of an SFEN string.
// The move number, if present, is ignored.
func ParseSFEN(sfen string) (Position, error) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(sfen), "sfen "))
	if len(fields) < 3 {
		return Position{}, fmt.Errorf("invalid sfen: %s", sfen)
	}
	var pos Position
	switch fields[1] {
	case "b":
		pos.turn = Black
	case "w":
		pos.turn = White
	default:
		return Position{}, fmt.Errorf("invalid sfen turn: %s", fields[1])
	}
	if err := parseBoardSFEN(fields[0], &pos); err != nil {
		return Position{}, err
	}
	if err := parseHandsSFEN(fields[2], &pos); err != nil {
		return Position{}, err
	}
	return pos, nil
}

func parseBoardSFEN(board string, pos *Position) error {
	ranks := strings.Split(board, "/")
	if len(ranks) != 9 {
		return fmt.Errorf("invalid board ranks: %d", len(ranks))
	}
	for rankIndex, rankText := range ranks {
		file := 9
		runes := []rune(rankText)
		for i := 0; i < len(runes); i++ {
			r := runes[i]
			if r >= '1' && r <= '9' {
				file -= int(r - '0')
				continue
			}
			promoted := false
			if r == '+' {
				promoted = true
				i++
				if i >= len(runes) {
					return errors.New("dangling promotion marker")
				}
				r = runes[i]
			}
			color := Black
			if r >= 'a' && r <= 'z' {
				color = White
				r -= 'a' - 'A'
			}
			kind, ok := sfenKind(r)
			if !ok {
				return fmt.Errorf("unknown sfen piece %c", r)
			}
			if promoted {
				if !kind.Promotable() {
					return fmt.Errorf("sfen piece %c cannot promote", r)
				}
				kind = kind.Promoted()
			}
			if file < 1 {
				return errors.New("too many files in rank")
			}
			pos.board[rankIndex][file-1] = Piece{Color: color, Kind: kind}
			file--
		}
		if file != 0 {
			return fmt.Errorf("rank %d does not have 9 files", rankIndex+1)
		}
	}
	return nil
}

func parseHandsSFEN(hand string, pos *Position) error {
	if hand == "-" {
		return nil
	}
	count := 0
	for _, r := range hand {
		if r >= '0' && r <= '9' {
			count = count*10 + int(r-'0')
			continue
		}
		if count == 0 {
			count = 1
		}
		color := Black
		if r >= 'a' && r <= 'z' {
			color = White
			r -= 'a' - 'A'
		}
		kind, ok := sfenKind(r)
		if !ok || kind == King {
			return fmt.Errorf("unknown hand piece %c", r)
		}
		pos.hands[color].Add(kind, count)
		count = 0
	}
	if count != 0 {
		return errors.New("trailing hand count")
	}
	return nil
}
