package kifu_test

import (
	"errors"
	"reflect"
	"testing"

	"kifuconv/pkg/kifu"
)

func TestNormalizeFirstPawnMove(t *testing.T) {
	rec := kifu.NewRecord()
	rec.Moves = append(rec.Moves, kifu.Step{Move: &kifu.Move{Color: kifu.White, To: sq(2, 6), Piece: kifu.Pawn}})
	mustNormalize(t, rec)

	m := rec.Moves[1].Move
	if m.Color != kifu.Black {
		t.Fatalf("unexpected color: %s", m.Color)
	}
	if m.From == nil || *m.From != sq(2, 7) {
		t.Fatalf("unexpected origin: %v", m.From)
	}
	if m.To != sq(2, 6) || m.Piece != kifu.Pawn {
		t.Fatalf("unexpected move: %+v", *m)
	}
	if m.Promote != nil || m.Capture != kifu.KindNone || m.Same || m.Relative != kifu.RelativeNone {
		t.Fatalf("unexpected derived fields: %+v", *m)
	}
	if rec.Initial == nil || rec.Initial.Preset != kifu.PresetHirate {
		t.Fatalf("unexpected initial: %+v", rec.Initial)
	}
}

func TestNormalizeSilverChoice(t *testing.T) {
	pos := kifu.Empty()
	pos.SetPiece(sq(5, 1), kifu.Piece{Color: kifu.White, Kind: kifu.King})
	pos.SetPiece(sq(9, 9), kifu.Piece{Color: kifu.Black, Kind: kifu.King})
	pos.SetPiece(sq(3, 9), kifu.Piece{Color: kifu.Black, Kind: kifu.Silver})
	pos.SetPiece(sq(5, 9), kifu.Piece{Color: kifu.Black, Kind: kifu.Silver})
	state := pos.State()

	for _, tc := range []struct {
		rel  kifu.Relative
		from kifu.Square
	}{
		{kifu.RelativeRight, sq(3, 9)},
		{kifu.RelativeLeft, sq(5, 9)},
	} {
		rec := kifu.NewRecord()
		data := state
		rec.Initial = &kifu.Initial{Preset: kifu.PresetOther, Data: &data}
		rec.Moves = append(rec.Moves, kifu.Step{Move: &kifu.Move{To: sq(4, 8), Piece: kifu.Silver, Relative: tc.rel}})
		mustNormalize(t, rec)
		m := rec.Moves[1].Move
		if m.From == nil || *m.From != tc.from {
			t.Fatalf("%s: unexpected origin %v", tc.rel, m.From)
		}
		if m.Relative != tc.rel {
			t.Fatalf("%s: token rewritten to %s", tc.rel, m.Relative)
		}
	}
}

func TestNormalizeDragonSideWords(t *testing.T) {
	pos := kifu.Empty()
	pos.SetPiece(sq(1, 1), kifu.Piece{Color: kifu.White, Kind: kifu.King})
	pos.SetPiece(sq(9, 9), kifu.Piece{Color: kifu.Black, Kind: kifu.King})
	pos.SetPiece(sq(5, 1), kifu.Piece{Color: kifu.Black, Kind: kifu.Dragon})
	pos.SetPiece(sq(4, 4), kifu.Piece{Color: kifu.Black, Kind: kifu.Dragon})
	state := pos.State()

	for _, tc := range []struct {
		name string
		move kifu.Move
		from kifu.Square
		rel  kifu.Relative
	}{
		{"explicit origin on the file", kifu.Move{From: squarePtr(sq(5, 1)), To: sq(5, 5), Piece: kifu.Dragon}, sq(5, 1), kifu.RelativeLeft},
		{"explicit origin off the file", kifu.Move{From: squarePtr(sq(4, 4)), To: sq(5, 5), Piece: kifu.Dragon}, sq(4, 4), kifu.RelativeRight},
		{"left", kifu.Move{To: sq(5, 5), Piece: kifu.Dragon, Relative: kifu.RelativeLeft}, sq(5, 1), kifu.RelativeLeft},
		{"right", kifu.Move{To: sq(5, 5), Piece: kifu.Dragon, Relative: kifu.RelativeRight}, sq(4, 4), kifu.RelativeRight},
	} {
		rec := kifu.NewRecord()
		data := state
		rec.Initial = &kifu.Initial{Preset: kifu.PresetOther, Data: &data}
		move := tc.move
		rec.Moves = append(rec.Moves, kifu.Step{Move: &move})
		if err := kifu.Normalize(rec); err != nil {
			t.Fatalf("%s: failed to normalize: %v", tc.name, err)
		}
		m := rec.Moves[1].Move
		if m.From == nil || *m.From != tc.from || m.Relative != tc.rel {
			t.Fatalf("%s: unexpected move %+v", tc.name, *m)
		}
	}
}

func TestNormalizeErrors(t *testing.T) {
	cases := []struct {
		name  string
		move  kifu.Move
		kind  kifu.NormalizeErrorKind
		check func(t *testing.T, err *kifu.NormalizeError)
	}{
		{
			name: "same without previous move",
			move: kifu.Move{Same: true, Piece: kifu.Pawn},
			kind: kifu.NoPreviousMove,
		},
		{
			name: "empty origin",
			move: kifu.Move{From: squarePtr(sq(5, 5)), To: sq(5, 4), Piece: kifu.Pawn},
			kind: kifu.NoPieceAt,
			check: func(t *testing.T, err *kifu.NormalizeError) {
				if err.Square != sq(5, 5) {
					t.Fatalf("unexpected square: %s", err.Square)
				}
			},
		},
		{
			name: "opponent piece at origin",
			move: kifu.Move{From: squarePtr(sq(3, 3)), To: sq(3, 4), Piece: kifu.Pawn},
			kind: kifu.NoPieceAt,
		},
		{
			name: "two golds",
			move: kifu.Move{To: sq(5, 8), Piece: kifu.Gold},
			kind: kifu.AmbiguousOrigin,
			check: func(t *testing.T, err *kifu.NormalizeError) {
				want := []kifu.Square{sq(4, 9), sq(6, 9)}
				if !reflect.DeepEqual(err.Candidates, want) {
					t.Fatalf("unexpected candidates: %v", err.Candidates)
				}
			},
		},
		{
			name: "token matching both golds",
			move: kifu.Move{To: sq(5, 8), Piece: kifu.Gold, Relative: kifu.RelativeUp},
			kind: kifu.AmbiguousOrigin,
		},
		{
			name: "destination off board",
			move: kifu.Move{To: sq(5, 10), Piece: kifu.Pawn},
			kind: kifu.InvalidSquare,
		},
		{
			name: "drop without hand",
			move: kifu.Move{To: sq(5, 5), Piece: kifu.Gold, Relative: kifu.RelativeDrop},
			kind: kifu.MoveApplicationFailed,
			check: func(t *testing.T, err *kifu.NormalizeError) {
				if !errors.Is(err, kifu.ErrIllegalMove) {
					t.Fatalf("cause is not ErrIllegalMove: %v", err)
				}
			},
		},
	}
	for _, tc := range cases {
		rec := kifu.NewRecord()
		move := tc.move
		rec.Moves = append(rec.Moves, kifu.Step{Move: &move})
		err := kifu.Normalize(rec)
		var nerr *kifu.NormalizeError
		if !errors.As(err, &nerr) {
			t.Fatalf("%s: expected NormalizeError, got %v", tc.name, err)
		}
		if nerr.Kind != tc.kind || nerr.Ply != 1 {
			t.Fatalf("%s: unexpected error %v", tc.name, nerr)
		}
		if tc.check != nil {
			tc.check(t, nerr)
		}
	}
}

func TestNormalizeResolvesWithToken(t *testing.T) {
	rec := kifu.NewRecord()
	rec.Moves = append(rec.Moves, kifu.Step{Move: &kifu.Move{To: sq(5, 8), Piece: kifu.Gold, Relative: kifu.RelativeRight}})
	mustNormalize(t, rec)
	m := rec.Moves[1].Move
	if m.From == nil || *m.From != sq(4, 9) {
		t.Fatalf("unexpected origin: %v", m.From)
	}
	if m.Relative != kifu.RelativeRight {
		t.Fatalf("unexpected token: %s", m.Relative)
	}
}

func TestNormalizeErrorInForkAbortsRecord(t *testing.T) {
	text := "▲７六歩\n△３四歩\n▲２二角成\n\n変化：2手\n△８四歩\n▲２二角成\n"
	rec, err := kifu.ParseKI2(text)
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	err = kifu.Normalize(rec)
	var nerr *kifu.NormalizeError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected NormalizeError, got %v", err)
	}
	if nerr.Kind != kifu.MoveApplicationFailed || nerr.Ply != 3 {
		t.Fatalf("unexpected error: %v", nerr)
	}
}

func TestForkReplaysFromBranchPoint(t *testing.T) {
	text := "▲７六歩\n△３四歩\n▲２二角成\n\n変化：2手\n△８四歩\n▲７七角\n"
	rec, err := kifu.ParseKI2(text)
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	mustNormalize(t, rec)
	main := rec.Moves[3].Move
	if main.From == nil || *main.From != sq(8, 8) || !main.Promotes() || main.Capture != kifu.Bishop {
		t.Fatalf("unexpected main line move: %+v", *main)
	}
	forks := rec.Moves[2].Forks
	if len(forks) != 1 || len(forks[0]) != 2 {
		t.Fatalf("unexpected forks: %+v", forks)
	}
	first := forks[0][0].Move
	if first.Color != kifu.White || first.From == nil || *first.From != sq(8, 3) {
		t.Fatalf("unexpected fork move: %+v", *first)
	}
	second := forks[0][1].Move
	if second.Color != kifu.Black || second.From == nil || *second.From != sq(8, 8) || second.Capture != kifu.KindNone {
		t.Fatalf("unexpected fork reply: %+v", *second)
	}
}

func TestNormalizeTimeTotals(t *testing.T) {
	text := `手合割：平手
手数----指手---------消費時間--
   1 ７六歩(77)   ( 0:10/00:00:00)
   2 ３四歩(33)   ( 0:20/00:00:00)
   3 ２六歩(27)   ( 0:30/00:00:00)
   4 ８四歩(83)   (65:00/00:00:00)

変化：3手
   3 ６八銀(79)   ( 0:05/00:00:00)
`
	rec, err := kifu.ParseKIF(text)
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	mustNormalize(t, rec)
	wantTotals := []int{10, 20, 40, 20 + 65*60}
	for i, want := range wantTotals {
		tm := rec.Moves[i+1].Time
		if tm == nil || tm.Total.Seconds() != want || tm.Total.H == nil {
			t.Fatalf("ply %d: unexpected total %+v, want %d", i+1, tm, want)
		}
	}
	now := rec.Moves[4].Time.Now
	if now.H == nil || *now.H != 1 || now.M != 5 {
		t.Fatalf("elapsed minutes should spill into hours: %+v", now)
	}
	fork := rec.Moves[3].Forks[0][0].Time
	if fork.Total.Seconds() != 15 {
		t.Fatalf("fork total should start from the branch point: %+v", fork.Total)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	for _, name := range []string{"aigakari.kif", "forks.kif", "aigakari.ki2", "aigakari.csa"} {
		rec := loadFixture(t, name)
		before := jkfString(t, rec)
		mustNormalize(t, rec)
		if after := jkfString(t, rec); after != before {
			t.Fatalf("%s: second normalize changed the record:\n%s\n---\n%s", name, before, after)
		}
	}
}

func TestNormalizeDerivedFieldsMatchReplay(t *testing.T) {
	for _, name := range []string{"aigakari.kif", "forks.kif"} {
		rec := loadFixture(t, name)
		walkMoves(t, rec, func(m *kifu.Move, before kifu.Position) {
			zone := m.From != nil && (promotionRank(m.From.Rank, m.Color) || promotionRank(m.To.Rank, m.Color))
			if want := zone && m.Piece.Promotable(); (m.Promote != nil) != want {
				t.Fatalf("%s: promote presence for %+v: got %v want %v", name, *m, m.Promote != nil, want)
			}
			pos := before.Clone()
			captured, err := pos.MakeMove(m.PieceMove())
			if err != nil {
				t.Fatalf("%s: failed to replay %+v: %v", name, *m, err)
			}
			if captured.Kind != m.Capture {
				t.Fatalf("%s: capture %s, board removed %s", name, m.Capture, captured.Kind)
			}
			if m.From != nil {
				piece, _ := before.PieceAt(*m.From)
				if piece.Kind != m.Piece || piece.Color != m.Color {
					t.Fatalf("%s: origin holds %+v for %+v", name, piece, *m)
				}
			}
			if m.Same {
				last, ok := before.LastMove()
				if !ok || last.To != m.To {
					t.Fatalf("%s: same flag on %+v", name, *m)
				}
			}
		})
	}
}

func TestNormalizeCollapsesExplicitPreset(t *testing.T) {
	pos := kifu.Startpos()
	pos.SetPiece(sq(8, 2), kifu.Piece{})
	pos.SetPiece(sq(2, 2), kifu.Piece{})
	pos.SetSideToMove(kifu.White)
	state := pos.State()
	rec := kifu.NewRecord()
	rec.Initial = &kifu.Initial{Preset: kifu.PresetOther, Data: &state}
	rec.Moves = append(rec.Moves, kifu.Step{Move: &kifu.Move{To: sq(5, 2), Piece: kifu.King}})
	mustNormalize(t, rec)
	if rec.Initial.Preset != kifu.Preset2 || rec.Initial.Data != nil {
		t.Fatalf("unexpected initial: %+v", rec.Initial)
	}
	if m := rec.Moves[1].Move; m.Color != kifu.White || *m.From != sq(5, 1) {
		t.Fatalf("unexpected move: %+v", *m)
	}
}

func TestNormalizeDropToken(t *testing.T) {
	pos, err := kifu.ParseSFEN("4k4/9/9/9/9/9/9/4G4/4K4 b G 1")
	if err != nil {
		t.Fatalf("failed to parse sfen: %v", err)
	}
	state := pos.State()
	rec := kifu.NewRecord()
	rec.Initial = &kifu.Initial{Preset: kifu.PresetOther, Data: &state}
	rec.Moves = append(rec.Moves,
		kifu.Step{Move: &kifu.Move{To: sq(5, 7), Piece: kifu.Gold, Relative: kifu.RelativeDrop}},
		kifu.Step{Move: &kifu.Move{To: sq(5, 2), Piece: kifu.King}},
		kifu.Step{Move: &kifu.Move{To: sq(1, 1), Piece: kifu.Pawn, Relative: kifu.RelativeDrop}},
	)
	err = kifu.Normalize(rec)
	var nerr *kifu.NormalizeError
	if !errors.As(err, &nerr) || nerr.Kind != kifu.MoveApplicationFailed || nerr.Ply != 3 {
		t.Fatalf("expected a failed pawn drop at ply 3, got %v", err)
	}
	drop := rec.Moves[1].Move
	if drop.From != nil || drop.Relative != kifu.RelativeDrop || drop.Promote != nil {
		t.Fatalf("a drop next to a gold that could move there keeps its token: %+v", *drop)
	}
}

func TestNormalizePlainDropHasNoToken(t *testing.T) {
	pos, err := kifu.ParseSFEN("4k4/9/9/9/9/9/9/9/4K4 b G 1")
	if err != nil {
		t.Fatalf("failed to parse sfen: %v", err)
	}
	state := pos.State()
	rec := kifu.NewRecord()
	rec.Initial = &kifu.Initial{Preset: kifu.PresetOther, Data: &state}
	rec.Moves = append(rec.Moves, kifu.Step{Move: &kifu.Move{To: sq(5, 5), Piece: kifu.Gold}})
	mustNormalize(t, rec)
	if m := rec.Moves[1].Move; m.From != nil || m.Relative != kifu.RelativeNone {
		t.Fatalf("unexpected drop: %+v", *m)
	}
}

func promotionRank(rank int, c kifu.Color) bool {
	if c == kifu.White {
		return rank >= 7
	}
	return rank <= 3
}

func squarePtr(s kifu.Square) *kifu.Square {
	return &s
}
