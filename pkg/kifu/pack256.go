package kifu

import (
	"errors"
	"fmt"
)

// Packed256 is a position in exactly 256 bits: side to move, both king
// squares, a Huffman code per remaining square and one per hand piece.
// Only positions holding the full 40-piece set fit.
type Packed256 struct {
	Words [4]uint64
}

var errBitsExhausted = errors.New("256-bit stream exhausted")

// huffman is the code of a base kind on the board. A hand piece drops the
// first bit of its board code.
type huffman struct {
	code uint64
	n    int
}

var boardHuffman = map[Kind]huffman{
	KindNone: {0b0, 1},
	Pawn:     {0b01, 2},
	Lance:    {0b0011, 4},
	Knight:   {0b1011, 4},
	Silver:   {0b0111, 4},
	Gold:     {0b01111, 5},
	Bishop:   {0b011111, 6},
	Rook:     {0b111111, 6},
}

func handHuffman(k Kind) huffman {
	h := boardHuffman[k]
	return huffman{code: h.code >> 1, n: h.n - 1}
}

// bitStream reads or writes LSB first. The first error sticks and every
// later call is a no-op.
type bitStream struct {
	words [4]uint64
	pos   int
	err   error
}

func (s *bitStream) put(v uint64, n int) {
	for i := 0; i < n && s.err == nil; i++ {
		if s.pos >= 256 {
			s.err = errBitsExhausted
			return
		}
		if (v>>i)&1 != 0 {
			s.words[s.pos/64] |= 1 << uint(s.pos%64)
		}
		s.pos++
	}
}

func (s *bitStream) get(n int) uint64 {
	var v uint64
	for i := 0; i < n && s.err == nil; i++ {
		if s.pos >= 256 {
			s.err = errBitsExhausted
			return 0
		}
		v |= (s.words[s.pos/64] >> uint(s.pos%64) & 1) << i
		s.pos++
	}
	return v
}

func (s *bitStream) flag(b bool) {
	if b {
		s.put(1, 1)
	} else {
		s.put(0, 1)
	}
}

// decode reads bits until they form a board code, or a hand code when
// hand is set.
func (s *bitStream) decode(hand bool) Kind {
	var v uint64
	for n := 1; n <= 6 && s.err == nil; n++ {
		v |= s.get(1) << (n - 1)
		for k, h := range boardHuffman {
			if hand {
				if k == KindNone {
					continue
				}
				h = handHuffman(k)
			}
			if h.n == n && h.code == v {
				return k
			}
		}
	}
	if s.err == nil {
		s.err = errors.New("invalid huffman code")
	}
	return KindNone
}

// unpackIndex maps 0..80 to squares, rank major.
func unpackIndex(i int) Square { return Square{File: i%9 + 1, Rank: i/9 + 1} }

func colorBit(c Color) bool { return c == White }

func bitColor(b uint64) Color { return Color(b) }

func PackPosition256(pos *Position) (Packed256, error) {
	kings := [2]int{-1, -1}
	for i := 0; i < 81; i++ {
		if p, ok := pos.PieceAt(unpackIndex(i)); ok && p.Kind == King {
			if kings[p.Color] != -1 {
				return Packed256{}, fmt.Errorf("more than one %s king", p.Color)
			}
			kings[p.Color] = i
		}
	}
	if kings[Black] == -1 || kings[White] == -1 {
		return Packed256{}, errors.New("both kings are required")
	}

	s := &bitStream{}
	s.flag(colorBit(pos.SideToMove()))
	s.put(uint64(kings[Black]), 7)
	s.put(uint64(kings[White]), 7)
	for i := 0; i < 81; i++ {
		if i == kings[Black] || i == kings[White] {
			continue
		}
		p, ok := pos.PieceAt(unpackIndex(i))
		if !ok {
			h := boardHuffman[KindNone]
			s.put(h.code, h.n)
			continue
		}
		base := p.Kind.Unpromoted()
		h := boardHuffman[base]
		s.put(h.code, h.n)
		s.flag(colorBit(p.Color))
		if base.Promotable() {
			s.flag(p.Kind.IsPromoted())
		}
	}
	for _, c := range []Color{Black, White} {
		hand := pos.HandOf(c)
		for _, k := range handKinds {
			h := handHuffman(k)
			for n := hand.Count(k); n > 0; n-- {
				s.put(h.code, h.n)
				s.flag(colorBit(c))
				if k.Promotable() {
					s.flag(false)
				}
			}
		}
	}
	if s.err != nil {
		return Packed256{}, s.err
	}
	if s.pos != 256 {
		return Packed256{}, fmt.Errorf("packed position is %d bits, not 256", s.pos)
	}
	return Packed256{Words: s.words}, nil
}

func UnpackPosition256(p Packed256) (Position, error) {
	s := &bitStream{words: p.Words}
	var pos Position
	pos.SetSideToMove(bitColor(s.get(1)))

	bk, wk := int(s.get(7)), int(s.get(7))
	if bk >= 81 || wk >= 81 || bk == wk {
		return Position{}, fmt.Errorf("bad king squares %d and %d", bk, wk)
	}
	pos.SetPiece(unpackIndex(bk), Piece{Color: Black, Kind: King})
	pos.SetPiece(unpackIndex(wk), Piece{Color: White, Kind: King})

	for i := 0; i < 81 && s.err == nil; i++ {
		if i == bk || i == wk {
			continue
		}
		k := s.decode(false)
		if k == KindNone {
			continue
		}
		c := bitColor(s.get(1))
		if k.Promotable() && s.get(1) == 1 {
			k = k.Promoted()
		}
		pos.SetPiece(unpackIndex(i), Piece{Color: c, Kind: k})
	}

	var hands [2]Hand
	for s.pos < 256 && s.err == nil {
		k := s.decode(true)
		c := bitColor(s.get(1))
		if k.Promotable() && s.get(1) != 0 {
			return Position{}, fmt.Errorf("promoted %s in hand", k)
		}
		if s.err == nil {
			hands[c].Add(k, 1)
		}
	}
	if s.err != nil {
		return Position{}, s.err
	}
	pos.SetHand(Black, hands[Black])
	pos.SetHand(White, hands[White])
	return pos, nil
}
