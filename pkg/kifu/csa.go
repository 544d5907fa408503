package kifu

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// csaHeaderKeys maps CSA $ keys to header keys. Other $ keys are kept
// under their own name.
var csaHeaderKeys = []struct {
	csa string
	key string
}{
	{"EVENT", "棋戦"},
	{"SITE", "場所"},
	{"START_TIME", "開始日時"},
	{"END_TIME", "終了日時"},
	{"TIME_LIMIT", "持ち時間"},
	{"OPENING", "戦型"},
}

var csaRawKeyRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// Piece totals of a full set, kings excluded, indexed like Hand.
var standardSet = Hand{18, 4, 4, 4, 4, 2, 2}

type csaPlacement struct {
	color Color
	sq    Square
	kind  Kind
}

// csaInitial collects the three ways a CSA file can describe the
// starting position before they are reconciled.
type csaInitial struct {
	seen       bool
	bulk       *[9][9]Piece
	pi         bool
	removals   []Square
	placements []csaPlacement
	hands      [2]Hand
	all        [2]bool
	allLine    int
	turn       Color
}

type csaParser struct {
	rec     *Record
	init    csaInitial
	started bool
	ended   bool
}

// ParseCSA reads a CSA transcript. Lines may hold several statements
// separated by commas; "'" lines are comments and "'*" lines attach a
// comment to the preceding step.
func ParseCSA(text string) (*Record, error) {
	p := &csaParser{rec: NewRecord()}
	for i, line := range splitLines(text) {
		lineNo := i + 1
		if strings.HasPrefix(line, "'") {
			if strings.HasPrefix(line, "'*") {
				last := &p.rec.Moves[len(p.rec.Moves)-1]
				last.Comments = append(last.Comments, strings.TrimPrefix(line, "'*"))
			}
			continue
		}
		col := 1
		for _, stmt := range strings.Split(line, ",") {
			c := newCursor("csa", lineNo, strings.TrimRight(stmt, " \t"))
			if err := p.statement(c, col); err != nil {
				return nil, err
			}
			col += len([]rune(stmt)) + 1
		}
	}
	if p.init.seen {
		data, err := p.init.state()
		if err != nil {
			return nil, err
		}
		p.rec.Initial = &Initial{Preset: PresetOther, Data: data}
	}
	return p.rec, nil
}

func (p *csaParser) statement(c *cursor, col int) error {
	fail := func(msg string) error {
		return &ParseError{Format: "csa", Line: c.line, Column: col + c.pos, Msg: msg}
	}
	stmt := string(c.runes)
	switch {
	case stmt == "":
		return nil
	case strings.HasPrefix(stmt, "V"):
		return nil
	case strings.HasPrefix(stmt, "N+"):
		p.rec.Header["先手"] = stmt[2:]
	case strings.HasPrefix(stmt, "N-"):
		p.rec.Header["後手"] = stmt[2:]
	case strings.HasPrefix(stmt, "$"):
		key, value, ok := strings.Cut(stmt[1:], ":")
		if !ok {
			return fail("expected $KEY:value")
		}
		for _, k := range csaHeaderKeys {
			if k.csa == key {
				key = k.key
				break
			}
		}
		p.rec.Header[key] = value
	case strings.HasPrefix(stmt, "PI"):
		c.pos = 2
		return p.parsePI(c, fail)
	case len(stmt) >= 2 && stmt[0] == 'P' && stmt[1] >= '1' && stmt[1] <= '9':
		return p.parseRow(stmt, fail)
	case strings.HasPrefix(stmt, "P+"), strings.HasPrefix(stmt, "P-"):
		c.pos = 2
		return p.parsePlacements(c, fail)
	case stmt == "+" || stmt == "-":
		if p.started {
			return fail("side to move after the first move")
		}
		p.init.seen = true
		p.init.turn = Black
		if stmt == "-" {
			p.init.turn = White
		}
	case stmt[0] == '+' || stmt[0] == '-':
		return p.parseMove(stmt, fail)
	case stmt[0] == '%':
		sp, ok := SpecialFromName(stmt[1:])
		if !ok {
			return fail("unknown special " + stmt)
		}
		if p.ended {
			return fail("move after the end of the game")
		}
		p.started, p.ended = true, true
		p.rec.Moves = append(p.rec.Moves, Step{Special: sp})
	case stmt[0] == 'T':
		sec, err := strconv.Atoi(stmt[1:])
		if err != nil || sec < 0 {
			return fail("invalid time " + stmt)
		}
		if len(p.rec.Moves) < 2 {
			return fail("time before the first move")
		}
		last := &p.rec.Moves[len(p.rec.Moves)-1]
		last.Time = &StepTime{Now: ClockFromSeconds(sec, false)}
	default:
		return fail("unknown statement " + stmt)
	}
	return nil
}

func csaSquare(s string) (Square, bool) {
	if len(s) != 2 || s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return Square{}, false
	}
	return Square{File: int(s[0] - '0'), Rank: int(s[1] - '0')}, true
}

// parsePI reads "PI82HI22KA": the standard layout minus the listed pieces.
func (p *csaParser) parsePI(c *cursor, fail func(string) error) error {
	p.init.seen = true
	p.init.pi = true
	rest := c.rest()
	for len(rest) >= 4 {
		sq, ok := csaSquare(rest[:2])
		if !ok || !sq.Valid() {
			return fail("invalid square in PI")
		}
		kind, ok := KindFromName(rest[2:4])
		if !ok || hirateState.PieceAt(sq).Kind != kind {
			return fail("PI removes a piece that is not there")
		}
		p.init.removals = append(p.init.removals, sq)
		rest = rest[4:]
		c.pos += 4
	}
	if rest != "" {
		return fail("trailing text in PI")
	}
	return nil
}

// parseRow reads one rank of the bulk grid: "P1-KY-KE * ..." from file 9
// to file 1.
func (p *csaParser) parseRow(stmt string, fail func(string) error) error {
	p.init.seen = true
	if p.init.bulk == nil {
		p.init.bulk = &[9][9]Piece{}
	}
	rank := int(stmt[1] - '0')
	cells := stmt[2:]
	for len(cells) < 27 {
		cells += " "
	}
	for i := 0; i < 9; i++ {
		cell := cells[i*3 : i*3+3]
		if cell == " * " || cell == "   " {
			continue
		}
		color := Black
		switch cell[0] {
		case '+':
		case '-':
			color = White
		default:
			return fail("invalid cell " + cell)
		}
		kind, ok := KindFromName(cell[1:])
		if !ok {
			return fail("invalid cell " + cell)
		}
		p.init.bulk[8-i][rank-1] = Piece{Color: color, Kind: kind}
	}
	return nil
}

// parsePlacements reads "P+00HI00KA" or "P-00AL". Square 00 is the hand.
func (p *csaParser) parsePlacements(c *cursor, fail func(string) error) error {
	p.init.seen = true
	color := Black
	if c.runes[1] == '-' {
		color = White
	}
	rest := c.rest()
	for len(rest) >= 4 {
		sq, ok := csaSquare(rest[:2])
		if !ok {
			return fail("invalid square")
		}
		name := rest[2:4]
		switch {
		case sq.File == 0 && sq.Rank == 0 && name == "AL":
			p.init.all[color] = true
			p.init.allLine = c.line
		case sq.File == 0 && sq.Rank == 0:
			kind, ok := KindFromName(name)
			if !ok || handIndex(kind) < 0 {
				return fail("invalid hand piece " + name)
			}
			p.init.hands[color].Add(kind, 1)
		default:
			kind, ok := KindFromName(name)
			if !ok || !sq.Valid() {
				return fail("invalid placement " + rest[:4])
			}
			p.init.placements = append(p.init.placements, csaPlacement{color: color, sq: sq, kind: kind})
		}
		rest = rest[4:]
		c.pos += 4
	}
	if rest != "" {
		return fail("trailing text in placement")
	}
	return nil
}

// parseMove reads "+7776FU". The piece is the kind after the move and
// 00 marks a drop.
func (p *csaParser) parseMove(stmt string, fail func(string) error) error {
	if len(stmt) != 7 {
		return fail("invalid move " + stmt)
	}
	if p.ended {
		return fail("move after the end of the game")
	}
	color := Black
	if stmt[0] == '-' {
		color = White
	}
	from, ok1 := csaSquare(stmt[1:3])
	to, ok2 := csaSquare(stmt[3:5])
	kind, ok3 := KindFromName(stmt[5:7])
	if !ok1 || !ok2 || !ok3 || !to.Valid() {
		return fail("invalid move " + stmt)
	}
	mv := &Move{Color: color, To: to, Piece: kind}
	if from != (Square{}) {
		if !from.Valid() {
			return fail("invalid origin in " + stmt)
		}
		mv.From = squarePtr(from)
	} else {
		mv.Relative = RelativeDrop
	}
	p.started = true
	p.rec.Moves = append(p.rec.Moves, Step{Move: mv})
	return nil
}

// state reconciles the grid, PI and placement forms. Pieces on the board
// are counted before AL grants the rest of the set to a hand.
func (ci *csaInitial) state() (*State, error) {
	var s State
	switch {
	case ci.bulk != nil:
		s.Board = *ci.bulk
	case ci.pi || len(ci.placements) == 0:
		s.Board = hirateState.Board
		for _, sq := range ci.removals {
			s.Board[sq.File-1][sq.Rank-1] = Piece{}
		}
	}
	for _, pl := range ci.placements {
		s.Board[pl.sq.File-1][pl.sq.Rank-1] = Piece{Color: pl.color, Kind: pl.kind}
	}
	s.Hands = ci.hands
	s.Color = ci.turn

	remaining := standardSet
	for file := 0; file < 9; file++ {
		for rank := 0; rank < 9; rank++ {
			if k := s.Board[file][rank].Kind.Unpromoted(); handIndex(k) >= 0 {
				remaining[handIndex(k)]--
			}
		}
	}
	for _, h := range ci.hands {
		for i := range remaining {
			remaining[i] -= h[i]
		}
	}
	for i, n := range remaining {
		if n < 0 {
			return nil, &ParseError{Format: "csa", Line: ci.allLine, Msg: fmt.Sprintf("too many %s pieces", handKinds[i])}
		}
	}
	for _, color := range []Color{Black, White} {
		if ci.all[color] {
			for i := range remaining {
				s.Hands[color][i] += remaining[i]
				remaining[i] = 0
			}
		}
	}
	return &s, nil
}

// RenderCSA formats the main line of a normalized record. CSA has no
// variations, so forks are not written.
func RenderCSA(rec *Record) (string, error) {
	var b strings.Builder
	b.WriteString("V2.2\n")
	writeCSAHeader(&b, rec.Header)
	if err := writeCSAInitial(&b, rec.Initial); err != nil {
		return "", err
	}
	if len(rec.Moves) == 0 {
		return b.String(), nil
	}
	writeCSAComments(&b, rec.Moves[0].Comments)
	for i, step := range rec.Moves[1:] {
		switch {
		case step.Move != nil:
			m := step.Move
			b.WriteString(csaColor(m.Color))
			if m.From == nil {
				b.WriteString("00")
			} else {
				b.WriteString(m.From.String())
			}
			b.WriteString(m.To.String())
			kind := m.Piece
			if m.Promotes() {
				kind = kind.Promoted()
			}
			b.WriteString(kind.String())
		case step.Special != SpecialNone:
			b.WriteString("%" + step.Special.String())
		default:
			return "", convertErrorf("moves", "step %d has neither move nor special", i+1)
		}
		b.WriteByte('\n')
		if step.Time != nil {
			fmt.Fprintf(&b, "T%d\n", step.Time.Now.Seconds())
		}
		writeCSAComments(&b, step.Comments)
		if step.Move == nil {
			break
		}
	}
	return b.String(), nil
}

func csaColor(c Color) string {
	if c == White {
		return "-"
	}
	return "+"
}

func writeCSAComments(b *strings.Builder, comments []string) {
	for _, comment := range comments {
		b.WriteString("'*" + comment + "\n")
	}
}

func writeCSAHeader(b *strings.Builder, header map[string]string) {
	if s, ok := header["先手"]; ok {
		b.WriteString("N+" + s + "\n")
	} else if s, ok := header["下手"]; ok {
		b.WriteString("N+" + s + "\n")
	}
	if s, ok := header["後手"]; ok {
		b.WriteString("N-" + s + "\n")
	} else if s, ok := header["上手"]; ok {
		b.WriteString("N-" + s + "\n")
	}
	for _, k := range csaHeaderKeys {
		if s, ok := header[k.key]; ok {
			b.WriteString("$" + k.csa + ":" + s + "\n")
		}
	}
	var raw []string
	for k := range header {
		if csaRawKeyRe.MatchString(k) {
			raw = append(raw, k)
		}
	}
	sort.Strings(raw)
	for _, k := range raw {
		b.WriteString("$" + k + ":" + header[k] + "\n")
	}
}

func writeCSAInitial(b *strings.Builder, init *Initial) error {
	if init == nil {
		b.WriteString("PI\n+\n")
		return nil
	}
	if init.Data == nil {
		if init.Preset == PresetOther {
			return convertErrorf("initial", "preset OTHER requires explicit data")
		}
		b.WriteString("PI")
		for _, sq := range presetRemovals[init.Preset] {
			b.WriteString(sq.String() + hirateState.PieceAt(sq).Kind.String())
		}
		b.WriteByte('\n')
		if init.Preset == PresetHirate {
			b.WriteString("+\n")
		} else {
			b.WriteString("-\n")
		}
		return nil
	}
	data := init.Data
	for rank := 1; rank <= 9; rank++ {
		fmt.Fprintf(b, "P%d", rank)
		for file := 9; file >= 1; file-- {
			p := data.Board[file-1][rank-1]
			if p.Empty() {
				b.WriteString(" * ")
				continue
			}
			b.WriteString(csaColor(p.Color) + p.Kind.String())
		}
		b.WriteByte('\n')
	}
	for _, color := range []Color{Black, White} {
		hand := data.Hands[color]
		if hand.Empty() {
			continue
		}
		b.WriteString("P" + csaColor(color))
		for _, k := range []Kind{Rook, Bishop, Gold, Silver, Knight, Lance, Pawn} {
			for n := hand.Count(k); n > 0; n-- {
				b.WriteString("00" + k.String())
			}
		}
		b.WriteByte('\n')
	}
	b.WriteString(csaColor(data.Color) + "\n")
	return nil
}
