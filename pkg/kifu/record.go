package kifu

import "fmt"

type Color uint8

const (
	Black Color = iota
	White
)

func (c Color) Opponent() Color {
	if c == Black {
		return White
	}
	return Black
}

func (c Color) String() string {
	switch c {
	case Black:
		return "black"
	case White:
		return "white"
	default:
		return fmt.Sprintf("color(%d)", uint8(c))
	}
}

// Kind is a piece kind. The zero value means "no piece".
type Kind uint8

const (
	KindNone Kind = iota
	Pawn
	Lance
	Knight
	Silver
	Gold
	Bishop
	Rook
	King
	ProPawn
	ProLance
	ProKnight
	ProSilver
	Horse
	Dragon
)

var kindNames = [...]string{
	KindNone:  "",
	Pawn:      "FU",
	Lance:     "KY",
	Knight:    "KE",
	Silver:    "GI",
	Gold:      "KI",
	Bishop:    "KA",
	Rook:      "HI",
	King:      "OU",
	ProPawn:   "TO",
	ProLance:  "NY",
	ProKnight: "NK",
	ProSilver: "NG",
	Horse:     "UM",
	Dragon:    "RY",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// KindFromName maps a two-letter name (FU, KY, ..., RY) to its kind.
func KindFromName(name string) (Kind, bool) {
	for k := Pawn; k <= Dragon; k++ {
		if kindNames[k] == name {
			return k, true
		}
	}
	return KindNone, false
}

func (k Kind) Valid() bool {
	return k >= Pawn && k <= Dragon
}

// Promotable reports whether k has a promoted form.
func (k Kind) Promotable() bool {
	switch k {
	case Pawn, Lance, Knight, Silver, Bishop, Rook:
		return true
	case KindNone, Gold, King, ProPawn, ProLance, ProKnight, ProSilver, Horse, Dragon:
		return false
	}
	return false
}

func (k Kind) IsPromoted() bool {
	switch k {
	case ProPawn, ProLance, ProKnight, ProSilver, Horse, Dragon:
		return true
	case KindNone, Pawn, Lance, Knight, Silver, Gold, Bishop, Rook, King:
		return false
	}
	return false
}

// Promoted returns the promoted form of k, or k itself when it cannot promote.
func (k Kind) Promoted() Kind {
	switch k {
	case Pawn:
		return ProPawn
	case Lance:
		return ProLance
	case Knight:
		return ProKnight
	case Silver:
		return ProSilver
	case Bishop:
		return Horse
	case Rook:
		return Dragon
	case KindNone, Gold, King, ProPawn, ProLance, ProKnight, ProSilver, Horse, Dragon:
		return k
	}
	return k
}

// Unpromoted returns the base kind of k.
func (k Kind) Unpromoted() Kind {
	switch k {
	case ProPawn:
		return Pawn
	case ProLance:
		return Lance
	case ProKnight:
		return Knight
	case ProSilver:
		return Silver
	case Horse:
		return Bishop
	case Dragon:
		return Rook
	case KindNone, Pawn, Lance, Knight, Silver, Gold, Bishop, Rook, King:
		return k
	}
	return k
}

// Relative is the disambiguation token written after the piece in
// compact notation. The zero value means "no token".
type Relative uint8

const (
	RelativeNone Relative = iota
	RelativeLeft
	RelativeStraight
	RelativeRight
	RelativeUp
	RelativeSideways
	RelativeDown
	RelativeLeftUp
	RelativeLeftSideways
	RelativeLeftDown
	RelativeRightUp
	RelativeRightSideways
	RelativeRightDown
	RelativeDrop
)

var relativeNames = [...]string{
	RelativeNone:          "",
	RelativeLeft:          "L",
	RelativeStraight:      "C",
	RelativeRight:         "R",
	RelativeUp:            "U",
	RelativeSideways:      "M",
	RelativeDown:          "D",
	RelativeLeftUp:        "LU",
	RelativeLeftSideways:  "LM",
	RelativeLeftDown:      "LD",
	RelativeRightUp:       "RU",
	RelativeRightSideways: "RM",
	RelativeRightDown:     "RD",
	RelativeDrop:          "H",
}

func (r Relative) String() string {
	if int(r) < len(relativeNames) {
		return relativeNames[r]
	}
	return fmt.Sprintf("relative(%d)", uint8(r))
}

func (r Relative) Valid() bool {
	return r >= RelativeLeft && r <= RelativeDrop
}

// Special is a terminal or annotation event that replaces a move.
// The zero value means "not a special step".
type Special uint8

const (
	SpecialNone Special = iota
	SpecialToryo
	SpecialChudan
	SpecialSennichite
	SpecialTimeUp
	SpecialIllegalMove
	SpecialIllegalActionBlack
	SpecialIllegalActionWhite
	SpecialJishogi
	SpecialKachi
	SpecialHikiwake
	SpecialMatta
	SpecialTsumi
	SpecialFuzumi
	SpecialError
)

var specialNames = [...]string{
	SpecialNone:               "",
	SpecialToryo:              "TORYO",
	SpecialChudan:             "CHUDAN",
	SpecialSennichite:         "SENNICHITE",
	SpecialTimeUp:             "TIME_UP",
	SpecialIllegalMove:        "ILLEGAL_MOVE",
	SpecialIllegalActionBlack: "+ILLEGAL_ACTION",
	SpecialIllegalActionWhite: "-ILLEGAL_ACTION",
	SpecialJishogi:            "JISHOGI",
	SpecialKachi:              "KACHI",
	SpecialHikiwake:           "HIKIWAKE",
	SpecialMatta:              "MATTA",
	SpecialTsumi:              "TSUMI",
	SpecialFuzumi:             "FUZUMI",
	SpecialError:              "ERROR",
}

func (s Special) String() string {
	if int(s) < len(specialNames) {
		return specialNames[s]
	}
	return fmt.Sprintf("special(%d)", uint8(s))
}

func (s Special) Valid() bool {
	return s >= SpecialToryo && s <= SpecialError
}

// SpecialFromName maps a CSA/JKF name such as "TORYO" to its special.
func SpecialFromName(name string) (Special, bool) {
	for s := SpecialToryo; s <= SpecialError; s++ {
		if specialNames[s] == name {
			return s, true
		}
	}
	return SpecialNone, false
}

type Preset uint8

const (
	PresetHirate Preset = iota
	PresetKY
	PresetKYR
	PresetKA
	PresetHI
	PresetHIKY
	Preset2
	Preset3
	Preset4
	Preset5
	Preset5L
	Preset6
	Preset7L
	Preset7R
	Preset8
	Preset10
	PresetOther
)

var presetNames = [...]string{
	PresetHirate: "HIRATE",
	PresetKY:     "KY",
	PresetKYR:    "KY_R",
	PresetKA:     "KA",
	PresetHI:     "HI",
	PresetHIKY:   "HIKY",
	Preset2:      "2",
	Preset3:      "3",
	Preset4:      "4",
	Preset5:      "5",
	Preset5L:     "5_L",
	Preset6:      "6",
	Preset7L:     "7_L",
	Preset7R:     "7_R",
	Preset8:      "8",
	Preset10:     "10",
	PresetOther:  "OTHER",
}

func (p Preset) String() string {
	if int(p) < len(presetNames) {
		return presetNames[p]
	}
	return fmt.Sprintf("preset(%d)", uint8(p))
}

func PresetFromName(name string) (Preset, bool) {
	for p := PresetHirate; p <= PresetOther; p++ {
		if presetNames[p] == name {
			return p, true
		}
	}
	return PresetHirate, false
}

// Square is a board coordinate. File and Rank are 1-based.
type Square struct {
	File int `json:"x"`
	Rank int `json:"y"`
}

func (s Square) Valid() bool {
	return s.File >= 1 && s.File <= 9 && s.Rank >= 1 && s.Rank <= 9
}

func (s Square) String() string {
	return fmt.Sprintf("%d%d", s.File, s.Rank)
}

// relFile and relRank mirror both axes for White so that rank 1 is
// always the far side of the board from the mover.
func (s Square) relFile(c Color) int {
	if c == White {
		return 10 - s.File
	}
	return s.File
}

func (s Square) relRank(c Color) int {
	if c == White {
		return 10 - s.Rank
	}
	return s.Rank
}

func inPromotionZone(s Square, c Color) bool {
	return s.relRank(c) <= 3
}

// Piece is a colored piece. A Piece with KindNone is an empty square.
type Piece struct {
	Color Color
	Kind  Kind
}

func (p Piece) Empty() bool {
	return p.Kind == KindNone
}

var handKinds = [7]Kind{Pawn, Lance, Knight, Silver, Gold, Bishop, Rook}

// Hand holds counts of capturable base kinds, indexed FU KY KE GI KI KA HI.
type Hand [7]int

func handIndex(k Kind) int {
	switch k {
	case Pawn:
		return 0
	case Lance:
		return 1
	case Knight:
		return 2
	case Silver:
		return 3
	case Gold:
		return 4
	case Bishop:
		return 5
	case Rook:
		return 6
	case KindNone, King, ProPawn, ProLance, ProKnight, ProSilver, Horse, Dragon:
		return -1
	}
	return -1
}

// Count returns the number of k held. Kinds that cannot be held count zero.
func (h Hand) Count(k Kind) int {
	i := handIndex(k)
	if i < 0 {
		return 0
	}
	return h[i]
}

func (h *Hand) Add(k Kind, n int) {
	if i := handIndex(k); i >= 0 {
		h[i] += n
	}
}

func (h Hand) Empty() bool {
	return h == Hand{}
}

type Clock struct {
	H *int `json:"h,omitempty"`
	M int  `json:"m"`
	S int  `json:"s"`
}

func (c Clock) Seconds() int {
	sec := c.M*60 + c.S
	if c.H != nil {
		sec += *c.H * 3600
	}
	return sec
}

// ClockFromSeconds splits sec into h/m/s. Hours are set when withHours
// is true or when sec spans at least one hour.
func ClockFromSeconds(sec int, withHours bool) Clock {
	h := sec / 3600
	c := Clock{M: (sec / 60) % 60, S: sec % 60}
	if withHours || h > 0 {
		c.H = &h
	}
	return c
}

type StepTime struct {
	Now   Clock `json:"now"`
	Total Clock `json:"total"`
}

// Move is one move as recorded. Parsers fill what their notation states;
// Normalize derives the rest.
type Move struct {
	Color    Color    `json:"color"`
	From     *Square  `json:"from,omitempty"`
	To       Square   `json:"to"`
	Piece    Kind     `json:"piece"`
	Same     bool     `json:"same,omitempty"`
	Promote  *bool    `json:"promote,omitempty"`
	Capture  Kind     `json:"capture,omitempty"`
	Relative Relative `json:"relative,omitempty"`
}

func (m *Move) IsDrop() bool {
	return m.From == nil
}

// Promotes reports whether the move ends with a promotion.
func (m *Move) Promotes() bool {
	return m.Promote != nil && *m.Promote
}

// Step is one element of a move sequence: a move or a special event,
// with attached comments, time and alternative continuations. Every
// fork in Forks is an alternative to this step and replays from the
// position before it.
type Step struct {
	Move     *Move     `json:"move,omitempty"`
	Comments []string  `json:"comments,omitempty"`
	Time     *StepTime `json:"time,omitempty"`
	Special  Special   `json:"special,omitempty"`
	Forks    [][]Step  `json:"forks,omitempty"`
}

type State struct {
	Color Color       `json:"color"`
	Board [9][9]Piece `json:"board"`
	Hands [2]Hand     `json:"hands"`
}

// PieceAt indexes the board as board[file-1][rank-1].
func (s *State) PieceAt(sq Square) Piece {
	return s.Board[sq.File-1][sq.Rank-1]
}

type Initial struct {
	Preset Preset `json:"preset"`
	Data   *State `json:"data,omitempty"`
}

// Record is a game transcript. Moves[0] is a placeholder standing before
// the first move; it only carries comments.
type Record struct {
	Header  map[string]string `json:"header"`
	Initial *Initial          `json:"initial,omitempty"`
	Moves   []Step            `json:"moves"`
}

func NewRecord() *Record {
	return &Record{
		Header: map[string]string{},
		Moves:  []Step{{}},
	}
}

func boolPtr(v bool) *bool {
	return &v
}

func squarePtr(s Square) *Square {
	return &s
}
