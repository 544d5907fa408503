package kifu_test

import (
	"errors"
	"strings"
	"testing"

	"kifuconv/pkg/kifu"
)

func TestParseJKFMinimal(t *testing.T) {
	data := `{
  "header": {"先手": "A"},
  "moves": [
    {"comments": ["start"]},
    {"move": {"to": {"x": 7, "y": 6}, "piece": "FU"}},
    {"move": {"to": {"x": 3, "y": 4}, "piece": "FU"}, "time": {"now": {"m": 0, "s": 3}, "total": {"h": 0, "m": 0, "s": 0}}},
    {"special": "TORYO"}
  ]
}`
	rec, err := kifu.ParseJKF([]byte(data))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	mustNormalize(t, rec)
	if rec.Header["先手"] != "A" || rec.Moves[0].Comments[0] != "start" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	m := rec.Moves[2].Move
	if m.Color != kifu.White || m.From == nil || *m.From != sq(3, 3) {
		t.Fatalf("unexpected move: %+v", *m)
	}
	if rec.Moves[2].Time.Total.Seconds() != 3 {
		t.Fatalf("unexpected total: %+v", rec.Moves[2].Time.Total)
	}
	if rec.Moves[3].Special != kifu.SpecialToryo {
		t.Fatalf("unexpected special: %s", rec.Moves[3].Special)
	}
	out := jkfString(t, rec)
	for _, want := range []string{`"preset": "HIRATE"`, `"piece": "FU"`, `"special": "TORYO"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("rendered jkf lacks %s:\n%s", want, out)
		}
	}
}

func TestParseJKFErrors(t *testing.T) {
	cases := []struct {
		field string
		data  string
	}{
		{"json", `{"moves": [`},
		{"color", `{"moves": [{}, {"move": {"color": 2, "to": {"x": 7, "y": 6}, "piece": "FU"}}]}`},
		{"piece", `{"moves": [{}, {"move": {"to": {"x": 7, "y": 6}, "piece": "XX"}}]}`},
		{"preset", `{"initial": {"preset": "NINE"}, "moves": [{}]}`},
		{"initial", `{"initial": {"preset": "OTHER"}, "moves": [{}]}`},
		{"to", `{"moves": [{}, {"move": {"to": {"x": 10, "y": 6}, "piece": "FU"}}]}`},
		{"time", `{"moves": [{}, {"move": {"to": {"x": 7, "y": 6}, "piece": "FU"}, "time": {"now": {"m": 300, "s": 0}, "total": {"m": 0, "s": 0}}}]}`},
		{"hands", `{"initial": {"preset": "OTHER", "data": {"color": 0, "board": [], "hands": [{"FU": 19}, {}]}}, "moves": [{}]}`},
		{"special", `{"moves": [{}, {"special": "RESIGN"}]}`},
		{"relative", `{"moves": [{}, {"move": {"to": {"x": 7, "y": 6}, "piece": "FU", "relative": "Q"}}]}`},
		{"moves", `{"moves": [{}, {}]}`},
		{"moves", `{"moves": []}`},
	}
	for _, tc := range cases {
		_, err := kifu.ParseJKF([]byte(tc.data))
		var cerr *kifu.ConvertError
		if !errors.As(err, &cerr) || cerr.Field != tc.field {
			t.Fatalf("%s: expected ConvertError, got %v", tc.field, err)
		}
	}
}

func TestRenderJKFRejectsInvalidKind(t *testing.T) {
	rec := kifu.NewRecord()
	rec.Moves = append(rec.Moves, kifu.Step{Move: &kifu.Move{To: sq(7, 6), Piece: kifu.Kind(99)}})
	_, err := kifu.RenderJKF(rec)
	var cerr *kifu.ConvertError
	if !errors.As(err, &cerr) || cerr.Field != "piece" {
		t.Fatalf("expected ConvertError, got %v", err)
	}
}
