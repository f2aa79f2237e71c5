package telemetry

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
)

// measurement is one simulated instrument run: a start command, data lines
// of a fixed width and an optional finish command.
type measurement struct {
	start  string
	finish string
	width  int
}

var measurements = []measurement{
	{start: "RTST", finish: "RTFIN", width: 2},
	{start: "SHOTST", finish: "SHOTFIN", width: 3},
	{start: "TRACKST", width: 2},
}

// DefaultGeneratorLines is the number of data lines per simulated run.
const DefaultGeneratorLines = 200

// Generator simulates the line stream of an instrument cycling through
// measurements. It is not safe for concurrent use.
type Generator struct {
	lines int
	rng   *rand.Rand
	queue []string
	cycle int
}

// NewGenerator returns a generator emitting lines data lines per run.
func NewGenerator(seed int64, lines int) *Generator {
	if lines < 1 {
		lines = DefaultGeneratorLines
	}
	return &Generator{lines: lines, rng: rand.New(rand.NewSource(seed))}
}

// Next returns the next line without its terminator.
func (g *Generator) Next() string {
	if len(g.queue) == 0 {
		g.plan()
	}
	line := g.queue[0]
	g.queue = g.queue[1:]
	return line
}

func (g *Generator) plan() {
	m := measurements[g.cycle%len(measurements)]
	idx := strconv.Itoa(g.cycle)
	g.queue = append(g.queue, "#run "+idx+" "+strings.ToLower(m.start), "$"+m.start+"$"+idx)
	for k := 0; k < g.lines; k++ {
		g.queue = append(g.queue, g.dataLine(k, m.width))
	}
	if m.finish != "" {
		g.queue = append(g.queue, "$"+m.finish+"$"+idx)
	}
	g.cycle++
}

// dataLine renders phase-shifted sine waves with a little noise.
func (g *Generator) dataLine(k, width int) string {
	vals := make([]string, width)
	for ch := range vals {
		v := float64(ch+1)*math.Sin(2*math.Pi*float64(k)/50+float64(ch)) + 0.05*g.rng.NormFloat64()
		vals[ch] = strconv.FormatFloat(v, 'f', 4, 64)
	}
	return strings.Join(vals, ",")
}
