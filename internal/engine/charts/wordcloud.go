package charts

import (
	"cmp"
	"math"
	"regexp"
	"slices"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
)

const (
	cloudWords   = 60
	cloudMinFont = 9.0
	cloudMaxFont = 40.0
	goldenAngle  = 2.399963229728653 // radians
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}']+`)

var stopWords = toSet(`a about above after again against all am an and any are as at be because
been before being below between both but by can could did do does doing down during each few
for from further had has have having he her here hers herself him himself his how i if in into
is it its itself just let me more most my myself no nor not now of off on once only or other our
ours ourselves out over own same she should so some such than that the their theirs them
themselves then there these they this those through to too under until up very was we were what
when where which while who whom why will with would you your yours yourself yourselves im dont
thats youre ive cant didnt doesnt isnt wasnt wont also get got like one really much even
still go going know think well way make made see thing things lot video videos`)

func toSet(words string) map[string]bool {
	m := make(map[string]bool)
	for _, w := range strings.Fields(words) {
		m[w] = true
	}
	return m
}

type wordFreq struct {
	word  string
	count int
}

// topWords counts words across comments and replies, dropping stop words
// and tokens shorter than three runes. Ties break alphabetically.
func topWords(comments []engine.Comment, limit int) []wordFreq {
	counts := make(map[string]int)
	add := func(text string) {
		for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
			w = strings.Trim(w, "'")
			if len([]rune(w)) < 3 || stopWords[strings.ReplaceAll(w, "'", "")] {
				continue
			}
			counts[w]++
		}
	}
	for _, c := range comments {
		add(c.Text)
		for _, r := range c.Replies {
			add(r.Text)
		}
	}

	out := make([]wordFreq, 0, len(counts))
	for w, n := range counts {
		out = append(out, wordFreq{w, n})
	}
	slices.SortFunc(out, func(a, b wordFreq) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return strings.Compare(a.word, b.word)
	})
	return out[:min(len(out), limit)]
}

// wordCloud lays the most frequent words out on a sunflower spiral, most
// frequent in the center, font size scaled by frequency.
func wordCloud(in Input) (*plot.Plot, error) {
	p := plot.New()
	p.HideAxes()

	words := topWords(in.Comments, cloudWords)
	if len(words) == 0 {
		return p, nil
	}

	xys := make(plotter.XYs, len(words))
	labels := make([]string, len(words))
	for i, w := range words {
		r := math.Sqrt(float64(i))
		theta := float64(i) * goldenAngle
		xys[i] = plotter.XY{X: 1.6 * r * math.Cos(theta), Y: r * math.Sin(theta)}
		labels[i] = w.word
	}
	l, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return nil, err
	}
	top := float64(words[0].count)
	for i, w := range words {
		size := cloudMinFont + (cloudMaxFont-cloudMinFont)*float64(w.count)/top
		l.TextStyle[i].Font.Size = vg.Points(size)
		l.TextStyle[i].Color = plotutil.Color(i)
		l.TextStyle[i].XAlign = draw.XCenter
		l.TextStyle[i].YAlign = draw.YCenter
	}
	p.Add(l)

	spread := math.Sqrt(float64(len(words))) + 1
	p.X.Min, p.X.Max = -1.6*spread, 1.6*spread
	p.Y.Min, p.Y.Max = -spread, spread
	return p, nil
}
