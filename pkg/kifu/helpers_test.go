package kifu_test

import (
	"path/filepath"
	"testing"

	"kifuconv/pkg/kifu"
)

func loadFixture(t *testing.T, name string) *kifu.Record {
	t.Helper()
	rec, err := kifu.LoadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to load %s: %v", name, err)
	}
	return rec
}

func jkfString(t *testing.T, rec *kifu.Record) string {
	t.Helper()
	data, err := kifu.RenderJKF(rec)
	if err != nil {
		t.Fatalf("failed to render jkf: %v", err)
	}
	return string(data)
}

func mustNormalize(t *testing.T, rec *kifu.Record) *kifu.Record {
	t.Helper()
	if err := kifu.Normalize(rec); err != nil {
		t.Fatalf("failed to normalize: %v", err)
	}
	return rec
}

// stripTimes drops every time field, for grammars that cannot carry one.
func stripTimes(steps []kifu.Step) {
	for i := range steps {
		steps[i].Time = nil
		for _, fork := range steps[i].Forks {
			stripTimes(fork)
		}
	}
}

// walkMoves calls fn for every move in the tree with the position it is
// played from.
func walkMoves(t *testing.T, rec *kifu.Record, fn func(m *kifu.Move, before kifu.Position)) {
	t.Helper()
	pos, err := kifu.PositionFromInitial(rec.Initial)
	if err != nil {
		t.Fatalf("failed to build initial position: %v", err)
	}
	var walk func(steps []kifu.Step, pos kifu.Position)
	walk = func(steps []kifu.Step, pos kifu.Position) {
		for i := range steps {
			for _, fork := range steps[i].Forks {
				walk(fork, pos)
			}
			m := steps[i].Move
			if m == nil {
				return
			}
			fn(m, pos)
			if _, err := pos.MakeMove(m.PieceMove()); err != nil {
				t.Fatalf("failed to replay %+v: %v", *m, err)
			}
		}
	}
	walk(rec.Moves[1:], pos)
}

func sq(file, rank int) kifu.Square {
	return kifu.Square{File: file, Rank: rank}
}
