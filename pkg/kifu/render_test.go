package kifu_test

import (
	"strings"
	"testing"

	"kifuconv/pkg/kifu"
)

func reparse(t *testing.T, text string, format kifu.Format) *kifu.Record {
	t.Helper()
	rec, err := kifu.Parse(text, format)
	if err != nil {
		t.Fatalf("failed to parse rendered %s: %v\n%s", format, err, text)
	}
	return mustNormalize(t, rec)
}

func TestRenderKIFRoundTrip(t *testing.T) {
	for _, name := range []string{"aigakari.kif", "forks.kif", "aigakari.csa"} {
		rec := loadFixture(t, name)
		text, err := kifu.RenderKIF(rec)
		if err != nil {
			t.Fatalf("%s: failed to render: %v", name, err)
		}
		back := reparse(t, text, kifu.FormatKIF)
		if got, want := jkfString(t, back), jkfString(t, rec); got != want {
			t.Fatalf("%s: kif round trip changed the record:\n%s", name, text)
		}
	}
}

func TestRenderKIFMoveText(t *testing.T) {
	rec := loadFixture(t, "aigakari.kif")
	text, err := kifu.RenderKIF(rec)
	if err != nil {
		t.Fatalf("failed to render: %v", err)
	}
	for _, want := range []string{
		"手合割：平手\n",
		"先手：先手太郎\n",
		"   8 同　歩(23)",
		"  11 ２二飛成(24)",
		"( 1:00/00:01:15)",
		"  13 投了",
		"*歩を取る\n",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("rendered kif lacks %q:\n%s", want, text)
		}
	}
}

func TestRenderKI2RoundTrip(t *testing.T) {
	for _, name := range []string{"aigakari.kif", "forks.kif"} {
		rec := loadFixture(t, name)
		stripTimes(rec.Moves)
		text, err := kifu.RenderKI2(rec)
		if err != nil {
			t.Fatalf("%s: failed to render: %v", name, err)
		}
		back := reparse(t, text, kifu.FormatKI2)
		if got, want := jkfString(t, back), jkfString(t, rec); got != want {
			t.Fatalf("%s: ki2 round trip changed the record:\n%s", name, text)
		}
	}
}

func TestRenderKI2RelativeWords(t *testing.T) {
	rec, err := kifu.ParseKIF("   1 ５八金(49)\n   2 ３四歩(33)\n   3 ７八金(69)\n   4 ４四歩(43)\n   5 ６八金(58)\n")
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	mustNormalize(t, rec)
	text, err := kifu.RenderKI2(rec)
	if err != nil {
		t.Fatalf("failed to render: %v", err)
	}
	for _, want := range []string{"▲５八金右\n", "▲７八金\n", "▲６八金右\n"} {
		if !strings.Contains(text, want) {
			t.Fatalf("rendered ki2 lacks %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "手合割") {
		t.Fatalf("ki2 should omit the standard handicap line:\n%s", text)
	}
}

func TestRenderCSARoundTrip(t *testing.T) {
	for _, name := range []string{"aigakari.csa", "aigakari.kif"} {
		rec := loadFixture(t, name)
		text, err := kifu.RenderCSA(rec)
		if err != nil {
			t.Fatalf("%s: failed to render: %v", name, err)
		}
		back := reparse(t, text, kifu.FormatCSA)
		if got, want := jkfString(t, back), jkfString(t, rec); got != want {
			t.Fatalf("%s: csa round trip changed the record:\n%s", name, text)
		}
	}
}

func TestRenderCSADropsForks(t *testing.T) {
	rec := loadFixture(t, "forks.kif")
	text, err := kifu.RenderCSA(rec)
	if err != nil {
		t.Fatalf("failed to render: %v", err)
	}
	back := reparse(t, text, kifu.FormatCSA)
	if len(back.Moves) != len(rec.Moves) {
		t.Fatalf("unexpected main line length: %d", len(back.Moves))
	}
	for i, step := range back.Moves {
		if len(step.Forks) != 0 {
			t.Fatalf("unexpected fork at move %d", i)
		}
	}
	if !strings.Contains(text, "-2277UM\n") {
		t.Fatalf("promotion should be written as the promoted kind:\n%s", text)
	}
}

func TestRenderCSAHandicap(t *testing.T) {
	rec, err := kifu.ParseKIF("手合割：二枚落ち\n   1 ５二玉(51)\n")
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	mustNormalize(t, rec)
	text, err := kifu.RenderCSA(rec)
	if err != nil {
		t.Fatalf("failed to render: %v", err)
	}
	if !strings.Contains(text, "PI82HI22KA\n-\n-5152OU\n") {
		t.Fatalf("unexpected csa:\n%s", text)
	}
}

func TestRenderJKFRoundTrip(t *testing.T) {
	for _, name := range []string{"aigakari.kif", "forks.kif", "aigakari.csa"} {
		rec := loadFixture(t, name)
		data := jkfString(t, rec)
		back, err := kifu.ParseJKF([]byte(data))
		if err != nil {
			t.Fatalf("%s: failed to parse jkf: %v", name, err)
		}
		if got := jkfString(t, back); got != data {
			t.Fatalf("%s: jkf round trip changed the record:\n%s\n---\n%s", name, data, got)
		}
	}
}

func TestRenderUSI(t *testing.T) {
	rec := loadFixture(t, "aigakari.kif")
	line, err := kifu.RenderUSI(rec)
	if err != nil {
		t.Fatalf("failed to render: %v", err)
	}
	want := "sfen lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSGKGSNL b - 1 moves " +
		"2g2f 8c8d 2f2e 8d8e 6i7h 4a3b 2e2d 2c2d 2h2d 5a5b 2d2b+ 3a2b"
	if line != want {
		t.Fatalf("unexpected usi: got %s want %s", line, want)
	}
}

func TestRenderSiblingForksRoundTrip(t *testing.T) {
	data := `{
  "header": {},
  "moves": [
    {},
    {"move": {"to": {"x": 7, "y": 6}, "piece": "FU"}},
    {"move": {"to": {"x": 3, "y": 4}, "piece": "FU"}, "forks": [
      [{"move": {"to": {"x": 8, "y": 4}, "piece": "FU"}}],
      [{"move": {"to": {"x": 4, "y": 4}, "piece": "FU"}}, {"move": {"to": {"x": 2, "y": 6}, "piece": "FU"}}]
    ]},
    {"move": {"to": {"x": 2, "y": 6}, "piece": "FU"}}
  ]
}`
	rec, err := kifu.ParseJKF([]byte(data))
	if err != nil {
		t.Fatalf("failed to parse jkf: %v", err)
	}
	mustNormalize(t, rec)
	forks := rec.Moves[2].Forks
	if len(forks) != 1 || forks[0][0].Move.To != sq(8, 4) {
		t.Fatalf("unexpected forks at move 2: %+v", forks)
	}
	nested := forks[0][0].Forks
	if len(nested) != 1 || len(nested[0]) != 2 || nested[0][0].Move.To != sq(4, 4) {
		t.Fatalf("second fork should follow the first one: %+v", nested)
	}

	want := jkfString(t, rec)
	kif, err := kifu.RenderKIF(rec)
	if err != nil {
		t.Fatalf("failed to render kif: %v", err)
	}
	if strings.Count(kif, "変化：2手") != 2 {
		t.Fatalf("expected two variation blocks:\n%s", kif)
	}
	if got := jkfString(t, reparse(t, kif, kifu.FormatKIF)); got != want {
		t.Fatalf("kif round trip changed the record:\n%s", kif)
	}
	ki2, err := kifu.RenderKI2(rec)
	if err != nil {
		t.Fatalf("failed to render ki2: %v", err)
	}
	if got := jkfString(t, reparse(t, ki2, kifu.FormatKI2)); got != want {
		t.Fatalf("ki2 round trip changed the record:\n%s", ki2)
	}
}
