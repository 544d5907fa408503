package kifu

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

type HeaderEntry struct {
	Key   string `parquet:"name=key, type=BYTE_ARRAY, convertedtype=UTF8"`
	Value string `parquet:"name=value, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// StepRow is one step of the variation tree. Branch 0 is the main line;
// a fork branch starts at ply Anchor of branch Parent. Squares are
// file*10+rank with 0 for none; Promote is -1 when not applicable and
// hours are -1 when absent.
type StepRow struct {
	Branch   int32    `parquet:"name=branch, type=INT32"`
	Parent   int32    `parquet:"name=parent, type=INT32"`
	Anchor   int32    `parquet:"name=anchor, type=INT32"`
	Index    int32    `parquet:"name=index, type=INT32"`
	Color    int32    `parquet:"name=color, type=INT32"`
	From     int32    `parquet:"name=from, type=INT32"`
	To       int32    `parquet:"name=to, type=INT32"`
	Piece    string   `parquet:"name=piece, type=BYTE_ARRAY, convertedtype=UTF8"`
	Same     bool     `parquet:"name=same, type=BOOLEAN"`
	Promote  int32    `parquet:"name=promote, type=INT32"`
	Capture  string   `parquet:"name=capture, type=BYTE_ARRAY, convertedtype=UTF8"`
	Relative string   `parquet:"name=relative, type=BYTE_ARRAY, convertedtype=UTF8"`
	Special  string   `parquet:"name=special, type=BYTE_ARRAY, convertedtype=UTF8"`
	Comments []string `parquet:"name=comments, type=LIST, valuetype=BYTE_ARRAY, valueconvertedtype=UTF8"`
	HasTime  bool     `parquet:"name=has_time, type=BOOLEAN"`
	NowH     int32    `parquet:"name=now_h, type=INT32"`
	NowM     int32    `parquet:"name=now_m, type=INT32"`
	NowS     int32    `parquet:"name=now_s, type=INT32"`
	TotalH   int32    `parquet:"name=total_h, type=INT32"`
	TotalM   int32    `parquet:"name=total_m, type=INT32"`
	TotalS   int32    `parquet:"name=total_s, type=INT32"`
	Packed   []int64  `parquet:"name=packed, type=LIST, valuetype=INT64"`
}

// RecordRow is one game in a parquet dataset.
type RecordRow struct {
	GameID      string        `parquet:"name=game_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Header      []HeaderEntry `parquet:"name=header, type=LIST"`
	Preset      string        `parquet:"name=preset, type=BYTE_ARRAY, convertedtype=UTF8"`
	InitialSFEN string        `parquet:"name=initial_sfen, type=BYTE_ARRAY, convertedtype=UTF8"`
	MoveCount   int32         `parquet:"name=move_count, type=INT32"`
	Steps       []StepRow     `parquet:"name=steps, type=LIST"`
}

type ParquetSchema struct {
	Name   string         `json:"name"`
	Fields []ParquetField `json:"fields"`
}

type ParquetField struct {
	Name     string      `json:"name"`
	Type     interface{} `json:"type"`
	Nullable bool        `json:"nullable"`
}

//go:embed schema/record_schema.json
var recordSchemaJSON []byte

// RecordToRow flattens a normalized record. Each step carries the packed
// position after it, left empty when the position lacks the full set.
func RecordToRow(gameID string, rec *Record) (RecordRow, error) {
	pos, err := PositionFromInitial(rec.Initial)
	if err != nil {
		return RecordRow{}, err
	}
	row := RecordRow{
		GameID:      gameID,
		Preset:      PresetHirate.String(),
		InitialSFEN: pos.SFEN(1),
		MoveCount:   int32(len(rec.MainLine())),
	}
	if rec.Initial != nil {
		row.Preset = rec.Initial.Preset.String()
	}
	keys := make([]string, 0, len(rec.Header))
	for k := range rec.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		row.Header = append(row.Header, HeaderEntry{Key: k, Value: rec.Header[k]})
	}
	if len(rec.Moves) == 0 {
		return row, nil
	}
	b := &rowBuilder{}
	b.rows = append(b.rows, stepToRow(&rec.Moves[0], 0, -1, 0, 0, &pos))
	if err := b.branch(rec.Moves[1:], 0, -1, 0, 1, pos); err != nil {
		return RecordRow{}, err
	}
	row.Steps = b.rows
	return row, nil
}

type rowBuilder struct {
	rows []StepRow
	last int32
}

func (b *rowBuilder) branch(steps []Step, id, parent, anchor int32, firstPly int, pos Position) error {
	for i := range steps {
		step := &steps[i]
		ply := firstPly + i
		for _, fork := range step.Forks {
			b.last++
			if err := b.branch(fork, b.last, id, int32(ply), ply, pos); err != nil {
				return err
			}
		}
		if step.Move != nil {
			if _, err := pos.MakeMove(step.Move.PieceMove()); err != nil {
				return fmt.Errorf("ply %d: %w", ply, err)
			}
		}
		b.rows = append(b.rows, stepToRow(step, id, parent, anchor, ply, &pos))
		if step.Move == nil {
			break
		}
	}
	return nil
}

func squareCode(s *Square) int32 {
	if s == nil {
		return 0
	}
	return int32(s.File*10 + s.Rank)
}

func hoursCode(h *int) int32 {
	if h == nil {
		return -1
	}
	return int32(*h)
}

func stepToRow(step *Step, id, parent, anchor int32, ply int, pos *Position) StepRow {
	r := StepRow{
		Branch:   id,
		Parent:   parent,
		Anchor:   anchor,
		Index:    int32(ply),
		Promote:  -1,
		Special:  step.Special.String(),
		Comments: step.Comments,
		NowH:     -1,
		TotalH:   -1,
	}
	if m := step.Move; m != nil {
		r.Color = int32(m.Color)
		r.From = squareCode(m.From)
		r.To = squareCode(&m.To)
		r.Piece = m.Piece.String()
		r.Same = m.Same
		if m.Promote != nil {
			r.Promote = 0
			if *m.Promote {
				r.Promote = 1
			}
		}
		r.Capture = m.Capture.String()
		r.Relative = m.Relative.String()
	}
	if t := step.Time; t != nil {
		r.HasTime = true
		r.NowH, r.NowM, r.NowS = hoursCode(t.Now.H), int32(t.Now.M), int32(t.Now.S)
		r.TotalH, r.TotalM, r.TotalS = hoursCode(t.Total.H), int32(t.Total.M), int32(t.Total.S)
	}
	if packed, err := PackPosition256(pos); err == nil {
		for _, w := range packed.Words {
			r.Packed = append(r.Packed, int64(w))
		}
	}
	return r
}

// RowToRecord rebuilds the record a row was made from.
func RowToRecord(row RecordRow) (*Record, error) {
	rec := NewRecord()
	for _, h := range row.Header {
		rec.Header[h.Key] = h.Value
	}
	preset, ok := PresetFromName(row.Preset)
	if !ok {
		return nil, convertErrorf("preset", "unsupported preset %q", row.Preset)
	}
	rec.Initial = &Initial{Preset: preset}
	if preset == PresetOther {
		pos, err := ParseSFEN(row.InitialSFEN)
		if err != nil {
			return nil, convertErrorf("initial_sfen", "%v", err)
		}
		state := pos.State()
		rec.Initial.Data = &state
	}
	if len(row.Steps) == 0 {
		return rec, nil
	}

	rows := append([]StepRow(nil), row.Steps...)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Branch != rows[j].Branch {
			return rows[i].Branch < rows[j].Branch
		}
		return rows[i].Index < rows[j].Index
	})
	branches := map[int32][]Step{}
	first := map[int32]StepRow{}
	var ids []int32
	for _, r := range rows {
		steps, seen := branches[r.Branch]
		if !seen {
			ids = append(ids, r.Branch)
			first[r.Branch] = r
		}
		start := first[r.Branch].Index
		if r.Index != start+int32(len(steps)) {
			return nil, convertErrorf("steps", "branch %d: missing ply before %d", r.Branch, r.Index)
		}
		step, err := rowToStep(r)
		if err != nil {
			return nil, err
		}
		branches[r.Branch] = append(steps, step)
	}
	if ids[0] != 0 || first[0].Index != 0 {
		return nil, convertErrorf("steps", "missing main line")
	}
	for _, id := range ids[1:] {
		meta := first[id]
		parent, ok := branches[meta.Parent]
		if !ok || meta.Parent >= id {
			return nil, convertErrorf("steps", "branch %d: unknown parent %d", id, meta.Parent)
		}
		idx := meta.Anchor - first[meta.Parent].Index
		if meta.Index != meta.Anchor || idx < 0 || int(idx) >= len(parent) {
			return nil, convertErrorf("steps", "branch %d: anchor %d out of range", id, meta.Anchor)
		}
		parent[idx].Forks = append(parent[idx].Forks, branches[id])
	}
	rec.Moves = branches[0]
	return rec, nil
}

func decodeSquare(field string, code int32) (*Square, error) {
	if code == 0 {
		return nil, nil
	}
	s := Square{File: int(code / 10), Rank: int(code % 10)}
	if !s.Valid() {
		return nil, convertErrorf(field, "square %d out of range", code)
	}
	return &s, nil
}

func decodeHours(field string, h int32) (*int, error) {
	switch {
	case h == -1:
		return nil, nil
	case h < 0 || h > 255:
		return nil, convertErrorf(field, "hours %d out of range", h)
	}
	v := int(h)
	return &v, nil
}

func rowToStep(r StepRow) (Step, error) {
	step := Step{Comments: r.Comments}
	if r.Special != "" {
		sp, ok := SpecialFromName(r.Special)
		if !ok {
			return Step{}, convertErrorf("special", "unknown special %q", r.Special)
		}
		step.Special = sp
	}
	if r.Piece != "" {
		mv, err := rowToMove(r)
		if err != nil {
			return Step{}, err
		}
		step.Move = mv
	}
	if r.HasTime {
		nowH, err := decodeHours("now_h", r.NowH)
		if err != nil {
			return Step{}, err
		}
		totalH, err := decodeHours("total_h", r.TotalH)
		if err != nil {
			return Step{}, err
		}
		step.Time = &StepTime{
			Now:   Clock{H: nowH, M: int(r.NowM), S: int(r.NowS)},
			Total: Clock{H: totalH, M: int(r.TotalM), S: int(r.TotalS)},
		}
		if err := validateClock(step.Time); err != nil {
			return Step{}, err
		}
	}
	return step, nil
}

func rowToMove(r StepRow) (*Move, error) {
	if r.Color != 0 && r.Color != 1 {
		return nil, convertErrorf("color", "invalid color %d", r.Color)
	}
	piece, ok := KindFromName(r.Piece)
	if !ok {
		return nil, convertErrorf("piece", "unknown kind %q", r.Piece)
	}
	mv := &Move{Color: Color(r.Color), Piece: piece, Same: r.Same}
	from, err := decodeSquare("from", r.From)
	if err != nil {
		return nil, err
	}
	mv.From = from
	to, err := decodeSquare("to", r.To)
	if err != nil {
		return nil, err
	}
	if to == nil {
		return nil, convertErrorf("to", "missing destination")
	}
	mv.To = *to
	switch r.Promote {
	case -1:
	case 0, 1:
		mv.Promote = boolPtr(r.Promote == 1)
	default:
		return nil, convertErrorf("promote", "invalid value %d", r.Promote)
	}
	if r.Capture != "" {
		if mv.Capture, ok = KindFromName(r.Capture); !ok {
			return nil, convertErrorf("capture", "unknown kind %q", r.Capture)
		}
	}
	if r.Relative != "" {
		if err := mv.Relative.UnmarshalText([]byte(r.Relative)); err != nil {
			return nil, err
		}
	}
	return mv, nil
}

// WriteParquet writes every row received on rows to a SNAPPY compressed
// parquet file.
func WriteParquet(path string, rows <-chan RecordRow, parallel int64) error {
	// rows is drained on every return so senders never block.
	defer func() {
		for range rows {
		}
	}()
	schema, err := loadParquetSchema()
	if err != nil {
		return err
	}
	if err := validateSchema(schema, RecordRow{}, StepRow{}); err != nil {
		return err
	}

	fileWriter, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	defer fileWriter.Close()

	parquetWriter, err := writer.NewParquetWriter(fileWriter, new(RecordRow), parallel)
	if err != nil {
		return err
	}
	parquetWriter.CompressionType = parquet.CompressionCodec_SNAPPY

	for row := range rows {
		if err := parquetWriter.Write(row); err != nil {
			return err
		}
	}
	if err := parquetWriter.WriteStop(); err != nil {
		return err
	}
	return fileWriter.Close()
}

// ReadParquet loads every row of a dataset written by WriteParquet.
func ReadParquet(path string, parallel int64) ([]RecordRow, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, err
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(RecordRow), parallel)
	if err != nil {
		return nil, err
	}
	defer pr.ReadStop()

	const chunk = 1024
	total := int(pr.GetNumRows())
	rows := make([]RecordRow, 0, total)
	for len(rows) < total {
		batch := make([]RecordRow, min(chunk, total-len(rows)))
		if err := pr.Read(&batch); err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", path, len(rows), err)
		}
		rows = append(rows, batch...)
	}
	return rows, nil
}

func loadParquetSchema() (ParquetSchema, error) {
	var schema ParquetSchema
	if err := json.Unmarshal(recordSchemaJSON, &schema); err != nil {
		return ParquetSchema{}, fmt.Errorf("embedded parquet schema: %w", err)
	}
	return schema, nil
}

// validateSchema checks the record struct against the schema's top-level
// fields and the step struct against the fields of its "steps" list.
func validateSchema(schema ParquetSchema, record, step any) error {
	var top, steps []string
	for _, field := range schema.Fields {
		top = append(top, field.Name)
		if field.Name != "steps" {
			continue
		}
		typ, _ := field.Type.(map[string]interface{})
		list, _ := typ["list"].(map[string]interface{})
		for name := range list {
			steps = append(steps, name)
		}
	}
	if err := sameColumns("record", top, parquetColumns(reflect.TypeOf(record))); err != nil {
		return err
	}
	return sameColumns("steps", steps, parquetColumns(reflect.TypeOf(step)))
}

// parquetColumns lists the name= of every tagged field of t.
func parquetColumns(t reflect.Type) []string {
	var names []string
	for i := 0; i < t.NumField(); i++ {
		for _, part := range strings.Split(t.Field(i).Tag.Get("parquet"), ",") {
			if name, ok := strings.CutPrefix(strings.TrimSpace(part), "name="); ok {
				names = append(names, name)
				break
			}
		}
	}
	return names
}

func sameColumns(what string, want, got []string) error {
	missing := subtract(want, got)
	extra := subtract(got, want)
	if len(missing)+len(extra) > 0 {
		return fmt.Errorf("parquet schema mismatch in %s: missing=%v extra=%v", what, missing, extra)
	}
	return nil
}

// subtract returns the sorted names of a that are not in b.
func subtract(a, b []string) []string {
	seen := make(map[string]bool, len(b))
	for _, name := range b {
		seen[name] = true
	}
	var out []string
	for _, name := range a {
		if !seen[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
