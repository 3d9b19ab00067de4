package generator

import (
	"sort"
	"strconv"

	"packsync/feature/packs/models"
)

// Scheme is a row numbering scheme.
type Scheme string

const (
	// SchemeConsecutive numbers seats 1,2,3,... Adjacent seats differ by 1.
	SchemeConsecutive Scheme = "consecutive"
	// SchemeOddEven numbers one side of the row 1,3,5,... and the other
	// 2,4,6,... Adjacent seats differ by 2 within the same parity.
	SchemeOddEven Scheme = "odd_even"
)

// Strategy selects how contiguous runs are turned into packs.
type Strategy string

const (
	// StrategyMaximal emits one pack covering each whole contiguous run.
	StrategyMaximal Strategy = "maximal"
	// StrategyExhaustive emits every contiguous sub-window of at least the
	// minimum size.
	StrategyExhaustive Strategy = "exhaustive"
)

// MarkupType selects how a venue markup is applied to the pack total.
type MarkupType string

const (
	MarkupNone       MarkupType = ""
	MarkupPercentage MarkupType = "percentage"
	MarkupFlat       MarkupType = "flat"
)

// Markup is a venue-level price adjustment applied to the pack total.
type Markup struct {
	Type  MarkupType
	Value float64
}

// Apply returns the pack total after the markup.
func (m Markup) Apply(total float64) float64 {
	switch m.Type {
	case MarkupPercentage:
		return total * (1 + m.Value/100)
	case MarkupFlat:
		return total + m.Value
	default:
		return total
	}
}

// Seat is a single available seat from a scrape snapshot. Ephemeral input;
// produced fresh on every scrape.
type Seat struct {
	// Key is the stable seat identifier within the performance.
	Key string `json:"key"`
	// Label is the seat label; the last number in it orders the seat.
	Label string `json:"label"`
	// Row, Section, Zone and Level locate the seat.
	Row     string `json:"row"`
	Section string `json:"section"`
	Zone    string `json:"zone"`
	Level   string `json:"level"`
	// Price is the unit seat price.
	Price float64 `json:"price"`
	// Available reports whether the seat can be sold.
	Available bool `json:"available"`
}

// Config carries the generation parameters for one source.
type Config struct {
	// Source identifies the scrape source; Prefix namespaces the pack ids.
	Source string
	Prefix string
	// MinPackSize is the smallest pack emitted. Packs of size 1 appear
	// only when this is 1.
	MinPackSize int
	// Strategy selects maximal or exhaustive packing.
	Strategy Strategy
	// Markup is the venue price adjustment.
	Markup Markup
}

// Generator groups raw seats into sellable packs.
type Generator struct {
	cfg Config
}

// New creates a Generator.
func New(cfg Config) *Generator {
	if cfg.MinPackSize < 1 {
		cfg.MinPackSize = 2
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyMaximal
	}
	return &Generator{cfg: cfg}
}

// rowKey buckets seats so adjacency never crosses a zone, section or row.
type rowKey struct {
	level, zone, section, row string
}

// Generate turns available seats into candidate packs. Schemes maps section
// name to its numbering scheme; missing sections default to consecutive.
// Output identifiers are deterministic given identical seat composition, and
// duplicates are dropped.
func (g *Generator) Generate(performanceID, venueID string, seats []Seat, schemes map[string]Scheme) []*models.SeatPack {
	rows := make(map[rowKey][]Seat)
	for _, s := range seats {
		if !s.Available {
			continue
		}
		k := rowKey{s.Level, s.Zone, s.Section, s.Row}
		rows[k] = append(rows[k], s)
	}

	var packs []*models.SeatPack
	seen := make(map[string]bool)

	for k, rowSeats := range rows {
		scheme := schemes[k.section]
		if scheme == "" {
			scheme = SchemeConsecutive
		}

		for _, run := range contiguousRuns(rowSeats, scheme) {
			for _, window := range g.windows(run) {
				pack := g.buildPack(performanceID, venueID, k, window)
				if seen[pack.PackID] {
					continue
				}
				seen[pack.PackID] = true
				packs = append(packs, pack)
			}
		}
	}

	// Stable output order for reporting and tests
	sort.Slice(packs, func(i, j int) bool { return packs[i].PackID < packs[j].PackID })
	return packs
}

// contiguousRuns splits a row's seats into maximal adjacent runs under the
// numbering scheme. For odd/even rows the odd and even subsequences are
// walked independently.
func contiguousRuns(rowSeats []Seat, scheme Scheme) [][]Seat {
	sortNatural(rowSeats)

	if scheme == SchemeOddEven {
		var odd, even []Seat
		for _, s := range rowSeats {
			if SeatNumber(s.Label)%2 == 0 {
				even = append(even, s)
			} else {
				odd = append(odd, s)
			}
		}
		return append(splitRuns(odd, 2), splitRuns(even, 2)...)
	}

	return splitRuns(rowSeats, 1)
}

// splitRuns walks sorted seats and closes a run on any gap larger than step.
func splitRuns(seats []Seat, step int) [][]Seat {
	var runs [][]Seat
	var current []Seat

	for _, s := range seats {
		if len(current) == 0 {
			current = []Seat{s}
			continue
		}
		prev := SeatNumber(current[len(current)-1].Label)
		if SeatNumber(s.Label)-prev == step {
			current = append(current, s)
			continue
		}
		runs = append(runs, current)
		current = []Seat{s}
	}
	if len(current) > 0 {
		runs = append(runs, current)
	}
	return runs
}

// windows expands one run into pack windows per the strategy and minimum size.
func (g *Generator) windows(run []Seat) [][]Seat {
	if len(run) < g.cfg.MinPackSize {
		return nil
	}

	if g.cfg.Strategy == StrategyExhaustive {
		var out [][]Seat
		for size := g.cfg.MinPackSize; size <= len(run); size++ {
			for start := 0; start+size <= len(run); start++ {
				out = append(out, run[start:start+size])
			}
		}
		return out
	}

	return [][]Seat{run}
}

func (g *Generator) buildPack(performanceID, venueID string, k rowKey, seats []Seat) *models.SeatPack {
	keys := make(models.StringList, len(seats))
	for i, s := range seats {
		keys[i] = s.Key
	}

	unit := seats[0].Price
	total := g.cfg.Markup.Apply(unit * float64(len(seats)))

	return &models.SeatPack{
		PackID:        models.ComputePackID(g.cfg.Prefix, g.cfg.Source, performanceID, k.level, k.zone, k.row, keys),
		Source:        g.cfg.Source,
		PerformanceID: performanceID,
		VenueID:       venueID,
		Level:         k.level,
		Zone:          k.zone,
		Row:           k.row,
		SeatKeys:      keys,
		FirstSeat:     seats[0].Label,
		LastSeat:      seats[len(seats)-1].Label,
		PackSize:      len(seats),
		SeatPrice:     unit,
		PackPrice:     total,
		PackStatus:    models.PackStatusActive,
		POSStatus:     models.POSStatusPending,
		PackState:     models.PackStateCreate,
	}
}

// SeatNumber extracts the ordering number from a seat label. The last number
// in the label wins, so "A12" and "BOX-3-12" both order by 12. Labels with
// no number order as 0.
func SeatNumber(label string) int {
	end := -1
	for i := len(label) - 1; i >= 0; i-- {
		if label[i] >= '0' && label[i] <= '9' {
			end = i
			break
		}
	}
	if end < 0 {
		return 0
	}
	start := end
	for start > 0 && label[start-1] >= '0' && label[start-1] <= '9' {
		start--
	}
	n, _ := strconv.Atoi(label[start : end+1])
	return n
}

// sortNatural orders seats by their numeric label, falling back to the raw
// label for ties.
func sortNatural(seats []Seat) {
	sort.Slice(seats, func(i, j int) bool {
		a, b := SeatNumber(seats[i].Label), SeatNumber(seats[j].Label)
		if a != b {
			return a < b
		}
		return seats[i].Label < seats[j].Label
	})
}
