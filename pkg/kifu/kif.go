package kifu

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var kifMoveLineRe = regexp.MustCompile(`^\s*(\d+)\s+`)
var kifTimeRe = regexp.MustCompile(`^\(\s*(\d+):(\d+)\s*/\s*(\d+):(\d+):(\d+)\s*\)`)

var kakinokiSpecials = []struct {
	text    string
	special Special
}{
	{"投了", SpecialToryo},
	{"中断", SpecialChudan},
	{"千日手", SpecialSennichite},
	{"切れ負け", SpecialTimeUp},
	{"反則負け", SpecialIllegalMove},
	{"反則勝ち", SpecialIllegalActionBlack},
	{"持将棋", SpecialJishogi},
	{"入玉勝ち", SpecialKachi},
	{"詰み", SpecialTsumi},
	{"不詰", SpecialFuzumi},
	{"引き分け", SpecialHikiwake},
	{"待った", SpecialMatta},
	{"エラー", SpecialError},
}

func kakinokiSpecialWord(s Special) string {
	if s == SpecialIllegalActionWhite {
		s = SpecialIllegalActionBlack
	}
	for _, sp := range kakinokiSpecials {
		if sp.special == s {
			return sp.text
		}
	}
	return "中断"
}

// illegalActionBy returns the special for a 反則勝ち at a step where mover
// is to move: the other side committed the illegal action.
func illegalActionBy(mover Color) Special {
	if mover == Black {
		return SpecialIllegalActionWhite
	}
	return SpecialIllegalActionBlack
}

// kakinokiParser accumulates the main line and the variation blocks of a
// KIF or KI2 file.
type kakinokiParser struct {
	format  string
	head    *kakinokiHeader
	main    []Step
	blocks  []forkBlock
	inFork  bool
	next    int
	ended   bool
	first   Color
	started bool
}

// cur returns the branch being filled: the main line or the latest block.
func (p *kakinokiParser) cur() *[]Step {
	if p.inFork {
		return &p.blocks[len(p.blocks)-1].steps
	}
	return &p.main
}

func (p *kakinokiParser) start() {
	if p.started {
		return
	}
	p.started = true
	p.first = p.head.firstMover()
	p.main = []Step{{Comments: p.head.comments}}
	p.next = 1
}

func (p *kakinokiParser) beginFork(anchor, line int) {
	p.start()
	p.blocks = append(p.blocks, forkBlock{anchor: anchor, line: line})
	p.inFork = true
	p.next = anchor
	p.ended = false
}

func (p *kakinokiParser) comment(c *cursor, text string) *ParseError {
	steps := p.cur()
	if len(*steps) == 0 {
		return c.errorf("comment before the first move of a variation")
	}
	last := &(*steps)[len(*steps)-1]
	last.Comments = append(last.Comments, text)
	return nil
}

func (p *kakinokiParser) push(c *cursor, step Step) *ParseError {
	if p.ended {
		return c.errorf("move after the end of the game")
	}
	steps := p.cur()
	*steps = append(*steps, step)
	p.next++
	if step.Move == nil {
		p.ended = true
	}
	return nil
}

func (p *kakinokiParser) record() (*Record, error) {
	p.start()
	if err := mergeForks(p.format, p.main, p.blocks); err != nil {
		return nil, err
	}
	return &Record{Header: p.head.header, Initial: p.head.initial(), Moves: p.main}, nil
}

// ParseKIF reads a verbose Kakinoki transcript. The record still has to
// go through Normalize.
func ParseKIF(text string) (*Record, error) {
	lines := splitLines(text)
	p := &kakinokiParser{format: "kif", head: newKakinokiHeader("kif")}
	for i := 0; i < len(lines); {
		line := lines[i]
		lineNo := i + 1
		if anchor, ok, err := parseForkHeader(p.format, lineNo, line); ok {
			if err != nil {
				return nil, err
			}
			p.beginFork(anchor, lineNo)
			i++
			continue
		}
		if m := kifMoveLineRe.FindStringSubmatchIndex(line); m != nil {
			p.start()
			if err := p.parseKIFLine(line, lineNo, m); err != nil {
				return nil, err
			}
			i++
			continue
		}
		if p.started {
			if strings.HasPrefix(line, "*") || strings.HasPrefix(line, "&") {
				if err := p.comment(newCursor(p.format, lineNo, line), commentText(line)); err != nil {
					return nil, err
				}
			}
			i++
			continue
		}
		next, err := p.head.parseLine(lines, i)
		if err != nil {
			return nil, err
		}
		if next == i {
			next++
		}
		i = next
	}
	return p.record()
}

func (p *kakinokiParser) parseKIFLine(line string, lineNo int, m []int) error {
	idx, err := strconv.Atoi(line[m[2]:m[3]])
	if err != nil {
		return &ParseError{Format: p.format, Line: lineNo, Column: 1, Msg: "invalid move number"}
	}
	c := newCursor(p.format, lineNo, line)
	c.pos = utf8.RuneCountInString(line[:m[1]])
	if idx != p.next {
		c.pos = utf8.RuneCountInString(line[:m[2]])
		return c.errorf("expected move " + strconv.Itoa(p.next) + ", got " + strconv.Itoa(idx))
	}
	mover := colorAt(p.first, idx)

	var step Step
	if sp, ok := parseKakinokiSpecial(c, mover); ok {
		step.Special = sp
	} else {
		mv, perr := parseKIFMove(c)
		if perr != nil {
			return perr
		}
		mv.Color = mover
		step.Move = mv
	}
	c.skipSpaces()
	if !c.eof() {
		t, ok := parseKIFTime(c)
		if !ok {
			return c.errorf("unexpected text after move")
		}
		step.Time = t
	}
	if perr := p.push(c, step); perr != nil {
		return perr
	}
	return nil
}

func parseKakinokiSpecial(c *cursor, mover Color) (Special, bool) {
	for _, sp := range kakinokiSpecials {
		if c.consume(sp.text) {
			if sp.special == SpecialIllegalActionBlack {
				return illegalActionBy(mover), true
			}
			return sp.special, true
		}
	}
	return SpecialNone, false
}

// parseKIFMove reads "７六歩(77)", "同　銀(68)", "２二角成(88)" or "５五角打".
func parseKIFMove(c *cursor) (*Move, *ParseError) {
	mv := &Move{}
	if c.consume("同") {
		mv.Same = true
		c.skipSpaces()
	} else {
		to, ok := c.square()
		if !ok {
			return nil, c.errorf("expected destination square")
		}
		mv.To = to
	}
	kind, ok := c.kind()
	if !ok {
		return nil, c.errorf("expected piece")
	}
	mv.Piece = kind
	if c.consume("不成") {
		mv.Promote = boolPtr(false)
	} else if c.consume("成") {
		mv.Promote = boolPtr(true)
	}
	switch {
	case c.consume("打"):
		mv.Relative = RelativeDrop
	case c.consume("("):
		if len(c.runes)-c.pos < 3 {
			return nil, c.errorf("expected origin square")
		}
		file, ok1 := parseFileRune(c.runes[c.pos])
		rank, ok2 := parseFileRune(c.runes[c.pos+1])
		if !ok1 || !ok2 {
			return nil, c.errorf("expected origin square")
		}
		c.pos += 2
		if !c.consume(")") {
			return nil, c.errorf("expected )")
		}
		mv.From = squarePtr(Square{File: file, Rank: rank})
	default:
		return nil, c.errorf("expected origin square or 打")
	}
	return mv, nil
}

// parseKIFTime reads "( 0:12/00:01:05)". Minutes of 60 or more in the
// elapsed part spill into hours.
func parseKIFTime(c *cursor) (*StepTime, bool) {
	m := kifTimeRe.FindStringSubmatch(c.rest())
	if m == nil {
		return nil, false
	}
	c.pos += utf8.RuneCountInString(m[0])
	n := make([]int, 5)
	for i := range n {
		n[i], _ = strconv.Atoi(m[i+1])
	}
	now := Clock{M: n[0], S: n[1]}
	if n[0] >= 60 {
		h := n[0] / 60
		now = Clock{H: &h, M: n[0] % 60, S: n[1]}
	}
	th := n[2]
	return &StepTime{Now: now, Total: Clock{H: &th, M: n[3], S: n[4]}}, true
}

func splitLines(text string) []string {
	text = strings.TrimPrefix(text, "\ufeff")
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], "\r")
	}
	return lines
}

// RenderKIF formats a normalized record as a verbose Kakinoki transcript.
func RenderKIF(rec *Record) (string, error) {
	var b strings.Builder
	writeKakinokiHeader(&b, rec.Header)
	writeKakinokiInitial(&b, rec.Initial, false)
	b.WriteString("手数----指手---------消費時間--\n")
	if len(rec.Moves) == 0 {
		return b.String(), nil
	}
	writeComments(&b, rec.Moves[0].Comments)
	if err := writeKIFBranch(&b, rec.Moves[1:], 1); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeKIFBranch(b *strings.Builder, steps []Step, firstPly int) error {
	for i, step := range steps {
		ply := firstPly + i
		var text string
		switch {
		case step.Move != nil:
			text = kifMoveText(step.Move)
		case step.Special != SpecialNone:
			text = kakinokiSpecialWord(step.Special)
		default:
			return convertErrorf("moves", "step %d has neither move nor special", ply)
		}
		fmt.Fprintf(b, "%4d %s", ply, text)
		if step.Time != nil {
			b.WriteString(strings.Repeat(" ", max(1, 13-displayWidth(text))))
			b.WriteString(kifTimeText(step.Time))
		}
		b.WriteByte('\n')
		writeComments(b, step.Comments)
		if step.Move == nil {
			break
		}
	}
	for _, f := range forksDescending(steps, firstPly) {
		fmt.Fprintf(b, "\n変化：%d手\n", f.ply)
		if err := writeKIFBranch(b, f.steps, f.ply); err != nil {
			return err
		}
	}
	return nil
}

func kifMoveText(m *Move) string {
	var b strings.Builder
	if m.Same {
		b.WriteString("同　")
	} else {
		b.WriteString(zenkakuSquare(m.To))
	}
	b.WriteString(moveGlyph(m.Piece))
	if m.Promote != nil {
		if *m.Promote {
			b.WriteString("成")
		} else {
			b.WriteString("不成")
		}
	}
	if m.From == nil {
		b.WriteString("打")
	} else {
		fmt.Fprintf(&b, "(%d%d)", m.From.File, m.From.Rank)
	}
	return b.String()
}

func kifTimeText(t *StepTime) string {
	nowMin := t.Now.M
	if t.Now.H != nil {
		nowMin += *t.Now.H * 60
	}
	totalH := 0
	if t.Total.H != nil {
		totalH = *t.Total.H
	}
	return fmt.Sprintf("(%2d:%02d/%02d:%02d:%02d)", nowMin, t.Now.S, totalH, t.Total.M, t.Total.S)
}

// displayWidth counts full-width glyphs as two columns.
func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		if r < 0x80 {
			w++
		} else {
			w += 2
		}
	}
	return w
}
