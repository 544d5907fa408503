package kifu

import (
	"sort"
	"strings"
)

// Shared pieces of the two Kakinoki-style grammars (KIF and KI2).

type kindToken struct {
	text string
	kind Kind
}

// Two-glyph spellings come first so that 成香 is never read as 成 + 香.
var kindTokens = []kindToken{
	{"成香", ProLance},
	{"成桂", ProKnight},
	{"成銀", ProSilver},
	{"歩", Pawn},
	{"香", Lance},
	{"桂", Knight},
	{"銀", Silver},
	{"金", Gold},
	{"角", Bishop},
	{"飛", Rook},
	{"玉", King},
	{"王", King},
	{"と", ProPawn},
	{"杏", ProLance},
	{"圭", ProKnight},
	{"全", ProSilver},
	{"馬", Horse},
	{"龍", Dragon},
	{"竜", Dragon},
}

// boardGlyph is the single glyph used for a kind in board diagrams and
// hand lists.
func boardGlyph(k Kind) string {
	switch k {
	case Pawn:
		return "歩"
	case Lance:
		return "香"
	case Knight:
		return "桂"
	case Silver:
		return "銀"
	case Gold:
		return "金"
	case Bishop:
		return "角"
	case Rook:
		return "飛"
	case King:
		return "玉"
	case ProPawn:
		return "と"
	case ProLance:
		return "杏"
	case ProKnight:
		return "圭"
	case ProSilver:
		return "全"
	case Horse:
		return "馬"
	case Dragon:
		return "龍"
	case KindNone:
	}
	return "・"
}

// moveGlyph is the spelling used for a kind in move text.
func moveGlyph(k Kind) string {
	switch k {
	case ProLance:
		return "成香"
	case ProKnight:
		return "成桂"
	case ProSilver:
		return "成銀"
	case KindNone, Pawn, Lance, Knight, Silver, Gold, Bishop, Rook, King, ProPawn, Horse, Dragon:
	}
	return boardGlyph(k)
}

var zenkakuDigits = []rune("１２３４５６７８９")
var kanjiDigits = []rune("一二三四五六七八九")

func parseFileRune(r rune) (int, bool) {
	if r >= '1' && r <= '9' {
		return int(r - '0'), true
	}
	if r >= '１' && r <= '９' {
		return int(r-'１') + 1, true
	}
	return 0, false
}

func parseRankRune(r rune) (int, bool) {
	for i, k := range kanjiDigits {
		if r == k {
			return i + 1, true
		}
	}
	return 0, false
}

// kansuji writes 1..18 the way hand counts are written (十八 for 18).
func kansuji(n int) string {
	if n <= 0 {
		return ""
	}
	var b strings.Builder
	if n >= 10 {
		b.WriteRune('十')
		n -= 10
	}
	if n > 0 {
		b.WriteRune(kanjiDigits[n-1])
	}
	return b.String()
}

func zenkakuSquare(s Square) string {
	return string(zenkakuDigits[s.File-1]) + string(kanjiDigits[s.Rank-1])
}

// cursor scans one line rune by rune and produces positioned errors.
type cursor struct {
	format string
	line   int
	runes  []rune
	pos    int
}

func newCursor(format string, line int, text string) *cursor {
	return &cursor{format: format, line: line, runes: []rune(text)}
}

func (c *cursor) errorf(msg string) *ParseError {
	return &ParseError{Format: c.format, Line: c.line, Column: c.pos + 1, Msg: msg}
}

func (c *cursor) eof() bool {
	return c.pos >= len(c.runes)
}

func (c *cursor) peek() rune {
	if c.eof() {
		return 0
	}
	return c.runes[c.pos]
}

func (c *cursor) rest() string {
	return string(c.runes[c.pos:])
}

func (c *cursor) consume(s string) bool {
	want := []rune(s)
	if len(c.runes)-c.pos < len(want) {
		return false
	}
	for i, r := range want {
		if c.runes[c.pos+i] != r {
			return false
		}
	}
	c.pos += len(want)
	return true
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '　'
}

func (c *cursor) skipSpaces() {
	for !c.eof() && isSpace(c.runes[c.pos]) {
		c.pos++
	}
}

func (c *cursor) kind() (Kind, bool) {
	for _, t := range kindTokens {
		if c.consume(t.text) {
			return t.kind, true
		}
	}
	return KindNone, false
}

// square reads a destination such as ７六 (or 7六).
func (c *cursor) square() (Square, bool) {
	if len(c.runes)-c.pos < 2 {
		return Square{}, false
	}
	file, ok := parseFileRune(c.runes[c.pos])
	if !ok {
		return Square{}, false
	}
	rank, ok := parseRankRune(c.runes[c.pos+1])
	if !ok {
		return Square{}, false
	}
	c.pos += 2
	return Square{File: file, Rank: rank}, true
}

func (c *cursor) number() (int, bool) {
	start := c.pos
	n := 0
	for !c.eof() && c.runes[c.pos] >= '0' && c.runes[c.pos] <= '9' {
		n = n*10 + int(c.runes[c.pos]-'0')
		c.pos++
	}
	return n, c.pos > start
}

// count reads an optional hand count: ASCII digits or kansuji up to 十八.
func (c *cursor) count() (int, bool) {
	if n, ok := c.number(); ok {
		return n, true
	}
	n := 0
	if c.consume("十") {
		n = 10
	}
	if !c.eof() {
		if d, ok := parseRankRune(c.runes[c.pos]); ok {
			n += d
			c.pos++
		}
	}
	return n, n > 0
}

// parseHand reads a hand list such as "角　金三　歩十五" or "なし".
func parseHand(c *cursor) (Hand, error) {
	var h Hand
	c.skipSpaces()
	if c.consume("なし") {
		return h, nil
	}
	for {
		c.skipSpaces()
		if c.eof() {
			return h, nil
		}
		k, ok := c.kind()
		if !ok || handIndex(k) < 0 {
			return Hand{}, c.errorf("unknown hand piece")
		}
		n, ok := c.count()
		if !ok {
			n = 1
		}
		h.Add(k, n)
	}
}

func formatHand(h Hand) string {
	if h.Empty() {
		return "なし"
	}
	var b strings.Builder
	for _, k := range []Kind{Rook, Bishop, Gold, Silver, Knight, Lance, Pawn} {
		n := h.Count(k)
		if n == 0 {
			continue
		}
		b.WriteString(boardGlyph(k))
		if n > 1 {
			b.WriteString(kansuji(n))
		}
		b.WriteRune('　')
	}
	return b.String()
}

var presetLabels = []struct {
	text   string
	preset Preset
}{
	{"平手", PresetHirate},
	{"香落ち", PresetKY},
	{"右香落ち", PresetKYR},
	{"角落ち", PresetKA},
	{"飛車落ち", PresetHI},
	{"飛香落ち", PresetHIKY},
	{"二枚落ち", Preset2},
	{"三枚落ち", Preset3},
	{"四枚落ち", Preset4},
	{"五枚落ち", Preset5},
	{"左五枚落ち", Preset5L},
	{"六枚落ち", Preset6},
	{"左七枚落ち", Preset7L},
	{"右七枚落ち", Preset7R},
	{"八枚落ち", Preset8},
	{"十枚落ち", Preset10},
	{"その他", PresetOther},
}

func presetLabel(p Preset) string {
	for _, l := range presetLabels {
		if l.preset == p {
			return l.text
		}
	}
	return "その他"
}

const (
	boardFileLine = "９ ８ ７ ６ ５ ４ ３ ２ １"
	boardBorder   = "+---------------------------+"
)

// kakinokiHeader collects the lines both grammars share before the moves.
type kakinokiHeader struct {
	format   string
	header   map[string]string
	preset   Preset
	board    *[9][9]Piece
	hands    [2]Hand
	turn     Color
	turnSet  bool
	comments []string
}

func newKakinokiHeader(format string) *kakinokiHeader {
	return &kakinokiHeader{format: format, header: map[string]string{}}
}

// parseLine consumes lines[i] (and, for a board diagram, the lines that
// follow). It returns the index of the next unread line, or i when the
// line is not a header line.
func (h *kakinokiHeader) parseLine(lines []string, i int) (int, error) {
	line := lines[i]
	trim := strings.TrimSpace(line)
	switch {
	case trim == "":
		return i + 1, nil
	case strings.HasPrefix(line, "#"):
		return i + 1, nil
	case strings.HasPrefix(line, "*"), strings.HasPrefix(line, "&"):
		h.comments = append(h.comments, commentText(line))
		return i + 1, nil
	case trim == boardFileLine:
		return h.parseBoard(lines, i)
	case trim == "先手番" || trim == "下手番":
		h.turn, h.turnSet = Black, true
		return i + 1, nil
	case trim == "後手番" || trim == "上手番":
		h.turn, h.turnSet = White, true
		return i + 1, nil
	}
	key, value, ok := strings.Cut(line, "：")
	if !ok || strings.HasPrefix(key, "変化") {
		return i, nil
	}
	c := newCursor(h.format, i+1, line)
	c.pos = len([]rune(key)) + 1
	switch key {
	case "手合割":
		label := strings.TrimFunc(value, isSpace)
		for _, l := range presetLabels {
			if l.text == label {
				h.preset = l.preset
				return i + 1, nil
			}
		}
		return i, c.errorf("unknown handicap " + label)
	case "先手の持駒", "下手の持駒", "後手の持駒", "上手の持駒":
		hand, err := parseHand(c)
		if err != nil {
			return i, err
		}
		color := Black
		if key == "後手の持駒" || key == "上手の持駒" {
			color = White
		}
		h.hands[color] = hand
		return i + 1, nil
	}
	h.header[key] = strings.TrimFunc(value, isSpace)
	return i + 1, nil
}

func (h *kakinokiHeader) parseBoard(lines []string, i int) (int, error) {
	if i+1 >= len(lines) || strings.TrimSpace(lines[i+1]) != boardBorder {
		return i, &ParseError{Format: h.format, Line: i + 2, Msg: "expected board border"}
	}
	var board [9][9]Piece
	for rank := 1; rank <= 9; rank++ {
		n := i + 1 + rank
		if n >= len(lines) {
			return i, &ParseError{Format: h.format, Line: n + 1, Msg: "board ends early"}
		}
		if err := parseBoardRow(h.format, n+1, lines[n], rank, &board); err != nil {
			return i, err
		}
	}
	end := i + 11
	if end >= len(lines) || strings.TrimSpace(lines[end]) != boardBorder {
		return i, &ParseError{Format: h.format, Line: end + 1, Msg: "expected board border"}
	}
	h.board = &board
	return end + 1, nil
}

// parseBoardRow reads "|v香v桂 ・ ...|一". Cells run from file 9 to file 1.
func parseBoardRow(format string, lineNo int, line string, rank int, board *[9][9]Piece) error {
	c := newCursor(format, lineNo, strings.TrimRight(line, " "))
	if !c.consume("|") {
		return c.errorf("expected board row")
	}
	for file := 9; file >= 1; file-- {
		if c.consume(" ・") {
			continue
		}
		color := Black
		switch c.peek() {
		case ' ', '^':
		case 'v':
			color = White
		default:
			return c.errorf("expected board cell")
		}
		c.pos++
		start := c.pos
		k, ok := c.kind()
		if !ok || c.pos-start != 1 {
			c.pos = start
			return c.errorf("unknown board piece")
		}
		board[file-1][rank-1] = Piece{Color: color, Kind: k}
	}
	if !c.consume("|") {
		return c.errorf("expected end of board row")
	}
	if r, ok := parseRankRune(c.peek()); !ok || r != rank {
		return c.errorf("unexpected rank label")
	}
	return nil
}

// initial builds the record's initial position from the collected lines.
func (h *kakinokiHeader) initial() *Initial {
	if h.board == nil {
		return &Initial{Preset: h.preset}
	}
	turn := Black
	if h.turnSet {
		turn = h.turn
	}
	return &Initial{
		Preset: PresetOther,
		Data:   &State{Color: turn, Board: *h.board, Hands: h.hands},
	}
}

func (h *kakinokiHeader) firstMover() Color {
	if h.board != nil {
		if h.turnSet {
			return h.turn
		}
		return Black
	}
	if h.preset == PresetHirate || h.preset == PresetOther {
		return Black
	}
	return White
}

// commentText keeps the & prefix of continuation comments and strips *.
func commentText(line string) string {
	if strings.HasPrefix(line, "*") {
		return strings.TrimPrefix(line, "*")
	}
	return line
}

func writeComments(b *strings.Builder, comments []string) {
	for _, comment := range comments {
		if !strings.HasPrefix(comment, "&") {
			b.WriteByte('*')
		}
		b.WriteString(comment)
		b.WriteByte('\n')
	}
}

// parseForkHeader reads "変化：N手".
func parseForkHeader(format string, lineNo int, line string) (int, bool, error) {
	trim := strings.TrimSpace(line)
	if !strings.HasPrefix(trim, "変化：") {
		return 0, false, nil
	}
	c := newCursor(format, lineNo, trim)
	c.consume("変化：")
	n, ok := c.number()
	if !ok || !c.consume("手") || n < 1 {
		return 0, true, c.errorf("invalid variation header")
	}
	return n, true, nil
}

type forkBlock struct {
	anchor int
	line   int
	steps  []Step
}

// mergeForks rebuilds the variation tree from blocks listed in input
// order. A block belongs to the nearest earlier block whose anchor is
// not after its own; blocks left over hang off the main line.
func mergeForks(format string, main []Step, blocks []forkBlock) error {
	var stack []forkBlock
	for len(blocks) > 0 {
		fork := blocks[len(blocks)-1]
		blocks = blocks[:len(blocks)-1]
		stack = append(stack, fork)
		if len(blocks) == 0 {
			break
		}
		parent := &blocks[len(blocks)-1]
		for len(stack) > 0 && stack[len(stack)-1].anchor >= parent.anchor {
			child := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			idx := child.anchor - parent.anchor
			if idx >= len(parent.steps) {
				return &ParseError{Format: format, Line: child.line, Msg: "variation does not branch from a move"}
			}
			parent.steps[idx].Forks = append(parent.steps[idx].Forks, child.steps)
		}
	}
	for len(stack) > 0 {
		child := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if child.anchor >= len(main) {
			return &ParseError{Format: format, Line: child.line, Msg: "variation does not branch from a move"}
		}
		main[child.anchor].Forks = append(main[child.anchor].Forks, child.steps)
	}
	return nil
}

// forkEntry is one fork to render with the ply it branches at.
type forkEntry struct {
	ply   int
	steps []Step
}

// forksDescending lists the forks of a branch starting at firstPly, later
// anchors first, which is the order mergeForks expects them back in.
func forksDescending(steps []Step, firstPly int) []forkEntry {
	var out []forkEntry
	for i := len(steps) - 1; i >= 0; i-- {
		for _, f := range steps[i].Forks {
			out = append(out, forkEntry{ply: firstPly + i, steps: f})
		}
	}
	return out
}

// headerKeyOrder lists the usual Kakinoki header keys in file order; any
// other key follows in sorted order.
var headerKeyOrder = []string{
	"開始日時", "終了日時", "棋戦", "戦型", "持ち時間", "秒読み", "消費時間", "場所", "掲載",
	"先手", "後手", "下手", "上手",
}

func sortedHeaderKeys(header map[string]string) []string {
	rank := make(map[string]int, len(headerKeyOrder))
	for i, k := range headerKeyOrder {
		rank[k] = i + 1
	}
	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := rank[keys[i]], rank[keys[j]]
		switch {
		case ri > 0 && rj > 0:
			return ri < rj
		case ri > 0:
			return true
		case rj > 0:
			return false
		}
		return keys[i] < keys[j]
	})
	return keys
}

// writeKakinokiInitial renders the handicap line or the board diagram.
func writeKakinokiInitial(b *strings.Builder, init *Initial, omitHirate bool) {
	if init == nil {
		init = &Initial{Preset: PresetHirate}
	}
	if init.Data == nil {
		if omitHirate && init.Preset == PresetHirate {
			return
		}
		b.WriteString("手合割：" + presetLabel(init.Preset) + "\n")
		return
	}
	data := init.Data
	b.WriteString("手合割：その他\n")
	b.WriteString("後手の持駒：" + formatHand(data.Hands[White]) + "\n")
	b.WriteString("  " + boardFileLine + "\n")
	b.WriteString(boardBorder + "\n")
	for rank := 1; rank <= 9; rank++ {
		b.WriteByte('|')
		for file := 9; file >= 1; file-- {
			p := data.Board[file-1][rank-1]
			switch {
			case p.Empty():
				b.WriteString(" ・")
			case p.Color == White:
				b.WriteString("v" + boardGlyph(p.Kind))
			default:
				b.WriteString(" " + boardGlyph(p.Kind))
			}
		}
		b.WriteByte('|')
		b.WriteRune(kanjiDigits[rank-1])
		b.WriteByte('\n')
	}
	b.WriteString(boardBorder + "\n")
	b.WriteString("先手の持駒：" + formatHand(data.Hands[Black]) + "\n")
	if data.Color == White {
		b.WriteString("後手番\n")
	}
}

func writeKakinokiHeader(b *strings.Builder, header map[string]string) {
	for _, k := range sortedHeaderKeys(header) {
		b.WriteString(k + "：" + header[k] + "\n")
	}
}

// colorAt is the side to move at ply n (1-based) of a game whose first
// move is made by first.
func colorAt(first Color, n int) Color {
	if n%2 == 1 {
		return first
	}
	return first.Opponent()
}

func sideName(c Color) string {
	if c == White {
		return "後手"
	}
	return "先手"
}
