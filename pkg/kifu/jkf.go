package kifu

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// JKF is the JSON form of a record: header, initial and moves, field for
// field. Colors are 0 and 1; kinds, relative tokens, specials and presets
// are written by name.

func (c *Color) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err != nil || (n != 0 && n != 1) {
		return convertErrorf("color", "invalid color %s", data)
	}
	*c = Color(n)
	return nil
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, convertErrorf("piece", "invalid kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	v, ok := KindFromName(string(text))
	if !ok {
		return convertErrorf("piece", "unknown kind %q", text)
	}
	*k = v
	return nil
}

func (r Relative) MarshalText() ([]byte, error) {
	if r != RelativeNone && !r.Valid() {
		return nil, convertErrorf("relative", "invalid relative %d", uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Relative) UnmarshalText(text []byte) error {
	for v := RelativeLeft; v <= RelativeDrop; v++ {
		if v.String() == string(text) {
			*r = v
			return nil
		}
	}
	return convertErrorf("relative", "unknown relative %q", text)
}

func (s Special) MarshalText() ([]byte, error) {
	if s != SpecialNone && !s.Valid() {
		return nil, convertErrorf("special", "invalid special %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Special) UnmarshalText(text []byte) error {
	v, ok := SpecialFromName(string(text))
	if !ok {
		return convertErrorf("special", "unknown special %q", text)
	}
	*s = v
	return nil
}

func (p Preset) MarshalText() ([]byte, error) {
	if p > PresetOther {
		return nil, convertErrorf("preset", "invalid preset %d", uint8(p))
	}
	return []byte(p.String()), nil
}

func (p *Preset) UnmarshalText(text []byte) error {
	v, ok := PresetFromName(string(text))
	if !ok {
		return convertErrorf("preset", "unsupported preset %q", text)
	}
	*p = v
	return nil
}

type jkfPiece struct {
	Color *Color `json:"color,omitempty"`
	Kind  *Kind  `json:"kind,omitempty"`
}

// An empty square is written as {}.
func (p Piece) MarshalJSON() ([]byte, error) {
	if p.Empty() {
		return []byte("{}"), nil
	}
	c, k := p.Color, p.Kind
	return json.Marshal(jkfPiece{Color: &c, Kind: &k})
}

func (p *Piece) UnmarshalJSON(data []byte) error {
	var v jkfPiece
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch {
	case v.Color == nil && v.Kind == nil:
		*p = Piece{}
	case v.Color == nil || v.Kind == nil:
		return convertErrorf("board", "piece needs both color and kind")
	default:
		*p = Piece{Color: *v.Color, Kind: *v.Kind}
	}
	return nil
}

type jkfHand struct {
	FU int `json:"FU"`
	KY int `json:"KY"`
	KE int `json:"KE"`
	GI int `json:"GI"`
	KI int `json:"KI"`
	KA int `json:"KA"`
	HI int `json:"HI"`
}

func (h Hand) MarshalJSON() ([]byte, error) {
	return json.Marshal(jkfHand{FU: h[0], KY: h[1], KE: h[2], GI: h[3], KI: h[4], KA: h[5], HI: h[6]})
}

func (h *Hand) UnmarshalJSON(data []byte) error {
	var v jkfHand
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*h = Hand{v.FU, v.KY, v.KE, v.GI, v.KI, v.KA, v.HI}
	return nil
}

// ParseJKF decodes a JKF document and checks that every value fits the
// canonical record.
func ParseJKF(data []byte) (*Record, error) {
	var rec Record
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&rec); err != nil {
		var ce *ConvertError
		if errors.As(err, &ce) {
			return nil, ce
		}
		return nil, &ConvertError{Field: "json", Msg: err.Error()}
	}
	if err := validateRecord(&rec); err != nil {
		return nil, err
	}
	if rec.Header == nil {
		rec.Header = map[string]string{}
	}
	return &rec, nil
}

// RenderJKF encodes a record as indented JKF.
func RenderJKF(rec *Record) ([]byte, error) {
	out := *rec
	if out.Header == nil {
		out.Header = map[string]string{}
	}
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		var ce *ConvertError
		if errors.As(err, &ce) {
			return nil, ce
		}
		return nil, fmt.Errorf("render jkf: %w", err)
	}
	return append(data, '\n'), nil
}

func validateRecord(rec *Record) error {
	if len(rec.Moves) == 0 {
		return convertErrorf("moves", "missing the step before the first move")
	}
	if rec.Initial != nil {
		if rec.Initial.Preset == PresetOther && rec.Initial.Data == nil {
			return convertErrorf("initial", "preset OTHER requires data")
		}
		if d := rec.Initial.Data; d != nil {
			for _, h := range d.Hands {
				for i, n := range h {
					if n < 0 || n > standardSet[i] {
						return convertErrorf("hands", "%s count %d out of range", handKinds[i], n)
					}
				}
			}
		}
	}
	if err := validateClock(rec.Moves[0].Time); err != nil {
		return err
	}
	return validateSteps(rec.Moves[1:], 1)
}

func validateSteps(steps []Step, firstPly int) error {
	for i := range steps {
		step := &steps[i]
		ply := firstPly + i
		if step.Move == nil && step.Special == SpecialNone {
			return convertErrorf("moves", "step %d has neither move nor special", ply)
		}
		if m := step.Move; m != nil {
			if !m.Same && !m.To.Valid() {
				return convertErrorf("to", "step %d: square %s out of range", ply, m.To)
			}
			if m.From != nil && !m.From.Valid() {
				return convertErrorf("from", "step %d: square %s out of range", ply, *m.From)
			}
			if !m.Piece.Valid() {
				return convertErrorf("piece", "step %d: missing piece", ply)
			}
		}
		if err := validateClock(step.Time); err != nil {
			return convertErrorf("time", "step %d: %s", ply, err.Msg)
		}
		for _, fork := range step.Forks {
			if err := validateSteps(fork, ply); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateClock(t *StepTime) *ConvertError {
	if t == nil {
		return nil
	}
	for _, c := range []Clock{t.Now, t.Total} {
		vals := []int{c.M, c.S}
		if c.H != nil {
			vals = append(vals, *c.H)
		}
		for _, v := range vals {
			if v < 0 || v > 255 {
				return convertErrorf("time", "value %d out of range", v)
			}
		}
	}
	return nil
}
