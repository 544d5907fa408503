package kifu

import (
	"fmt"
	"strings"
)

var relativeWords = []struct {
	text string
	rel  Relative
}{
	{"左上", RelativeLeftUp},
	{"左寄", RelativeLeftSideways},
	{"左引", RelativeLeftDown},
	{"右上", RelativeRightUp},
	{"右寄", RelativeRightSideways},
	{"右引", RelativeRightDown},
	{"左", RelativeLeft},
	{"直", RelativeStraight},
	{"右", RelativeRight},
	{"上", RelativeUp},
	{"寄", RelativeSideways},
	{"引", RelativeDown},
	{"打", RelativeDrop},
}

func relativeWord(r Relative) string {
	for _, w := range relativeWords {
		if w.rel == r {
			return w.text
		}
	}
	return ""
}

func isMoveMark(r rune) bool {
	return r == '▲' || r == '△' || r == '☗' || r == '☖'
}

// ParseKI2 reads a compact Kakinoki transcript. Moves carry no origin, so
// the record depends on Normalize for every move.
func ParseKI2(text string) (*Record, error) {
	lines := splitLines(text)
	p := &kakinokiParser{format: "ki2", head: newKakinokiHeader("ki2")}
	for i := 0; i < len(lines); {
		line := lines[i]
		lineNo := i + 1
		trim := strings.TrimLeft(line, " \t")
		if anchor, ok, err := parseForkHeader(p.format, lineNo, line); ok {
			if err != nil {
				return nil, err
			}
			p.beginFork(anchor, lineNo)
			i++
			continue
		}
		if trim != "" && isMoveMark([]rune(trim)[0]) {
			p.start()
			if err := p.parseKI2Line(line, lineNo); err != nil {
				return nil, err
			}
			i++
			continue
		}
		if strings.HasPrefix(trim, "まで") && p.started {
			if err := p.parseTerminal(line, lineNo); err != nil {
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

// parseKI2Line reads every move of a line such as "▲７六歩    △３四歩".
func (p *kakinokiParser) parseKI2Line(line string, lineNo int) error {
	c := newCursor(p.format, lineNo, line)
	for {
		c.skipSpaces()
		if c.eof() {
			return nil
		}
		mark := c.peek()
		if !isMoveMark(mark) {
			return c.errorf("expected ▲ or △")
		}
		c.pos++
		mv, err := parseKI2Move(c)
		if err != nil {
			return err
		}
		mv.Color = Black
		if mark == '△' || mark == '☖' {
			mv.Color = White
		}
		if err := p.push(c, Step{Move: mv}); err != nil {
			return err
		}
	}
}

// parseKI2Move reads "７六歩", "同　銀", "５八金左上", "２二角成" or "５五角打".
func parseKI2Move(c *cursor) (*Move, *ParseError) {
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
	for _, w := range relativeWords {
		if w.rel != RelativeDrop && c.consume(w.text) {
			mv.Relative = w.rel
			break
		}
	}
	if c.consume("不成") {
		mv.Promote = boolPtr(false)
	} else if c.consume("成") {
		mv.Promote = boolPtr(true)
	}
	if c.consume("打") {
		if mv.Relative != RelativeNone || mv.Promote != nil {
			return nil, c.errorf("drop cannot carry a relative or promotion")
		}
		mv.Relative = RelativeDrop
	}
	return mv, nil
}

// parseTerminal reads "まで64手で後手の勝ち" and ends the current branch.
func (p *kakinokiParser) parseTerminal(line string, lineNo int) error {
	c := newCursor(p.format, lineNo, strings.TrimLeft(line, " \t"))
	c.consume("まで")
	if _, ok := c.number(); !ok {
		return c.errorf("expected move count")
	}
	if !c.consume("手") {
		return c.errorf("expected 手")
	}
	c.consume("で")
	phrase := c.rest()
	sp, ok := ki2Special(phrase, colorAt(p.first, p.next))
	if !ok {
		return c.errorf("unknown game result " + phrase)
	}
	if err := p.push(c, Step{Special: sp}); err != nil {
		return err
	}
	return nil
}

func ki2Special(phrase string, mover Color) (Special, bool) {
	has := func(s string) bool { return strings.Contains(phrase, s) }
	switch {
	case has("反則行為"):
		if strings.HasPrefix(phrase, "先手") || strings.HasPrefix(phrase, "下手") {
			return SpecialIllegalActionBlack, true
		}
		return SpecialIllegalActionWhite, true
	case has("反則負け"):
		return SpecialIllegalMove, true
	case has("反則勝ち"):
		return illegalActionBy(mover), true
	case has("入玉"):
		return SpecialKachi, true
	case has("切れ"):
		return SpecialTimeUp, true
	case has("千日手"):
		return SpecialSennichite, true
	case has("持将棋"):
		return SpecialJishogi, true
	case has("中断"):
		return SpecialChudan, true
	case has("不詰"):
		return SpecialFuzumi, true
	case has("詰み"):
		return SpecialTsumi, true
	case has("引き分け"):
		return SpecialHikiwake, true
	case has("待った"):
		return SpecialMatta, true
	case has("エラー"):
		return SpecialError, true
	case has("勝ち"):
		return SpecialToryo, true
	}
	return SpecialNone, false
}

// ki2Phrase renders the result of a special step at ply, where mover is
// the side to move.
func ki2Phrase(s Special, mover Color) string {
	winner := sideName(mover.Opponent())
	switch s {
	case SpecialToryo:
		return winner + "の勝ち"
	case SpecialChudan:
		return "中断"
	case SpecialSennichite:
		return "千日手"
	case SpecialTimeUp:
		return "時間切れにより" + winner + "の勝ち"
	case SpecialIllegalMove:
		return sideName(mover) + "の反則負け"
	case SpecialIllegalActionBlack:
		return "先手の反則行為"
	case SpecialIllegalActionWhite:
		return "後手の反則行為"
	case SpecialJishogi:
		return "持将棋"
	case SpecialKachi:
		return "入玉宣言により" + sideName(mover) + "の勝ち"
	case SpecialHikiwake:
		return "引き分け"
	case SpecialMatta:
		return "待った"
	case SpecialTsumi:
		return "詰み"
	case SpecialFuzumi:
		return "不詰"
	case SpecialError:
		return "エラー"
	case SpecialNone:
	}
	return "中断"
}

// RenderKI2 formats a normalized record as a compact transcript. A
// standard initial position is not written.
func RenderKI2(rec *Record) (string, error) {
	var b strings.Builder
	writeKakinokiHeader(&b, rec.Header)
	writeKakinokiInitial(&b, rec.Initial, true)
	if len(rec.Moves) == 0 {
		return b.String(), nil
	}
	writeComments(&b, rec.Moves[0].Comments)
	first := Black
	if pos, err := PositionFromInitial(rec.Initial); err == nil {
		first = pos.SideToMove()
	}
	if err := writeKI2Branch(&b, rec.Moves[1:], 1, first); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeKI2Branch(b *strings.Builder, steps []Step, firstPly int, first Color) error {
	for i, step := range steps {
		ply := firstPly + i
		if step.Move == nil {
			if step.Special == SpecialNone {
				return convertErrorf("moves", "step %d has neither move nor special", ply)
			}
			fmt.Fprintf(b, "まで%d手で%s\n", ply-1, ki2Phrase(step.Special, colorAt(first, ply)))
			writeComments(b, step.Comments)
			break
		}
		mark := "▲"
		if step.Move.Color == White {
			mark = "△"
		}
		b.WriteString(mark + ki2MoveText(step.Move) + "\n")
		writeComments(b, step.Comments)
	}
	for _, f := range forksDescending(steps, firstPly) {
		fmt.Fprintf(b, "\n変化：%d手\n", f.ply)
		if err := writeKI2Branch(b, f.steps, f.ply, first); err != nil {
			return err
		}
	}
	return nil
}

func ki2MoveText(m *Move) string {
	var b strings.Builder
	if m.Same {
		b.WriteString("同　")
	} else {
		b.WriteString(zenkakuSquare(m.To))
	}
	b.WriteString(moveGlyph(m.Piece))
	if m.Relative != RelativeDrop {
		b.WriteString(relativeWord(m.Relative))
	}
	if m.Promote != nil {
		if *m.Promote {
			b.WriteString("成")
		} else {
			b.WriteString("不成")
		}
	}
	if m.Relative == RelativeDrop {
		b.WriteString("打")
	}
	return b.String()
}
