package kifu_test

import (
	"errors"
	"testing"

	"kifuconv/pkg/kifu"
)

func TestKI2MatchesKIF(t *testing.T) {
	kif := loadFixture(t, "aigakari.kif")
	stripTimes(kif.Moves)
	ki2 := loadFixture(t, "aigakari.ki2")

	if got, want := jkfString(t, ki2), jkfString(t, kif); got != want {
		t.Fatalf("ki2 and kif records differ:\n%s\n---\n%s", got, want)
	}
}

func TestKI2RelativeToken(t *testing.T) {
	rec, err := kifu.ParseKI2("▲５八金右\n△３四歩\n▲４九玉\n")
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	mustNormalize(t, rec)
	m := rec.Moves[1].Move
	if m.From == nil || *m.From != sq(4, 9) || m.Relative != kifu.RelativeRight {
		t.Fatalf("unexpected move: %+v", *m)
	}
	if king := rec.Moves[3].Move; *king.From != sq(5, 9) {
		t.Fatalf("expected king candidates only from 59, got %+v", *king)
	}

	rec, err = kifu.ParseKI2("▲５八金\n")
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	var nerr *kifu.NormalizeError
	if err := kifu.Normalize(rec); !errors.As(err, &nerr) || nerr.Kind != kifu.AmbiguousOrigin {
		t.Fatalf("expected ambiguous origin, got %v", err)
	}
}

func TestKI2Terminal(t *testing.T) {
	cases := []struct {
		text string
		want kifu.Special
	}{
		{"▲７六歩\nまで1手で中断\n", kifu.SpecialChudan},
		{"▲７六歩\nまで1手で千日手\n", kifu.SpecialSennichite},
		{"▲７六歩\nまで1手で時間切れにより先手の勝ち\n", kifu.SpecialTimeUp},
		{"▲７六歩\nまで1手で先手の勝ち\n", kifu.SpecialToryo},
		{"▲７六歩\nまで1手で持将棋\n", kifu.SpecialJishogi},
	}
	for _, tc := range cases {
		rec, err := kifu.ParseKI2(tc.text)
		if err != nil {
			t.Fatalf("failed to parse %q: %v", tc.text, err)
		}
		if len(rec.Moves) != 3 || rec.Moves[2].Special != tc.want {
			t.Fatalf("%q: unexpected steps %+v", tc.text, rec.Moves)
		}
	}
}

func TestKI2ParseErrors(t *testing.T) {
	cases := []struct {
		name string
		text string
		line int
	}{
		{"drop with promotion", "▲５五角成打\n", 1},
		{"drop with relative", "▲７六歩\n△５五角右打\n", 2},
		{"garbage between moves", "▲７六歩 ３四歩\n", 1},
		{"unknown result", "▲７六歩\nまで1手で謎\n", 2},
		{"move after the end", "▲７六歩\nまで1手で中断\n△３四歩\n", 3},
	}
	for _, tc := range cases {
		_, err := kifu.ParseKI2(tc.text)
		var perr *kifu.ParseError
		if !errors.As(err, &perr) {
			t.Fatalf("%s: expected ParseError, got %v", tc.name, err)
		}
		if perr.Format != "ki2" || perr.Line != tc.line {
			t.Fatalf("%s: unexpected error %v", tc.name, perr)
		}
	}
}
