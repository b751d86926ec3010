// Package charts renders the analysis charts as base64-encoded PNG images.
package charts

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/color"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
)

const (
	likeBins    = 30
	chartWidth  = 10 * vg.Inch
	chartHeight = 6 * vg.Inch
)

var (
	scatterColor  = color.RGBA{R: 31, G: 119, B: 180, A: 128}
	histColor     = color.RGBA{R: 135, G: 206, B: 235, A: 255}
	timelineColor = color.RGBA{R: 31, G: 119, B: 180, A: 160}
	barColor      = color.RGBA{R: 240, G: 128, B: 128, A: 255}
)

// Input is everything the charts are drawn from.
type Input struct {
	Comments       []engine.Comment // must already carry sentiment
	CategoryNames  []string
	CategoryCounts []float64
}

// Set holds the rendered charts, base64 PNG each.
type Set struct {
	SentimentScatter       string `json:"sentiment_scatter"`
	EngagementDistribution string `json:"engagement_distribution"`
	WordCloud              string `json:"wordcloud"`
	SentimentTimeline      string `json:"sentiment_timeline"`
	CategoryDistribution   string `json:"category_distribution"`
}

// Render draws all five charts concurrently. An empty input still yields
// five valid (empty) images.
func Render(ctx context.Context, in Input) (Set, error) {
	var out Set
	g, ctx := errgroup.WithContext(ctx)

	jobs := []struct {
		name string
		dst  *string
		draw func(Input) (*plot.Plot, error)
	}{
		{"sentiment_scatter", &out.SentimentScatter, sentimentScatter},
		{"engagement_distribution", &out.EngagementDistribution, engagementHistogram},
		{"wordcloud", &out.WordCloud, wordCloud},
		{"sentiment_timeline", &out.SentimentTimeline, sentimentTimeline},
		{"category_distribution", &out.CategoryDistribution, categoryBars},
	}
	for _, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := j.draw(in)
			if err != nil {
				return fmt.Errorf("%s: %w", j.name, err)
			}
			img, err := encodePNG(p, chartWidth, chartHeight)
			if err != nil {
				return fmt.Errorf("%s: %w", j.name, err)
			}
			*j.dst = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Set{}, err
	}
	return out, nil
}

func encodePNG(p *plot.Plot, w, h vg.Length) (string, error) {
	c := vgimg.New(w, h)
	p.Draw(draw.New(c))
	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(&buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// sentiments returns polarity/subjectivity for every comment and reply.
func sentiments(comments []engine.Comment) plotter.XYs {
	xys := make(plotter.XYs, 0, engine.CountWithReplies(comments))
	add := func(s *engine.Sentiment) {
		if s != nil {
			xys = append(xys, plotter.XY{X: s.Polarity, Y: s.Subjectivity})
		} else {
			xys = append(xys, plotter.XY{})
		}
	}
	for _, c := range comments {
		add(c.Sentiment)
		for _, r := range c.Replies {
			add(r.Sentiment)
		}
	}
	return xys
}

func sentimentScatter(in Input) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Comment Sentiment Analysis (Including Replies)"
	p.X.Label.Text = "Polarity (Negative to Positive)"
	p.Y.Label.Text = "Subjectivity (Objective to Subjective)"
	p.X.Min, p.X.Max = -1, 1
	p.Y.Min, p.Y.Max = 0, 1

	xys := sentiments(in.Comments)
	if len(xys) == 0 {
		return p, nil
	}
	s, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, err
	}
	s.GlyphStyle.Color = scatterColor
	s.GlyphStyle.Radius = vg.Points(3)
	p.Add(s)
	return p, nil
}

func engagementHistogram(in Input) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Comment Engagement Distribution (Including Replies)"
	p.X.Label.Text = "Number of Likes"
	p.Y.Label.Text = "Frequency"

	var likes plotter.Values
	for _, c := range in.Comments {
		likes = append(likes, float64(c.Likes))
		for _, r := range c.Replies {
			likes = append(likes, float64(r.Likes))
		}
	}
	if len(likes) == 0 {
		return p, nil
	}
	h, err := plotter.NewHist(likes, likeBins)
	if err != nil {
		return nil, err
	}
	h.FillColor = histColor
	p.Add(h)
	return p, nil
}

// timelineOrder lists polarities ordered by position: every comment carries
// its index among top-level comments, every reply its index within its
// thread, and a stable sort on that position interleaves them.
func timelineOrder(comments []engine.Comment) []float64 {
	type point struct {
		pos      int
		polarity float64
	}
	polarity := func(s *engine.Sentiment) float64 {
		if s == nil {
			return 0
		}
		return s.Polarity
	}

	pts := make([]point, 0, engine.CountWithReplies(comments))
	for i, c := range comments {
		pts = append(pts, point{i, polarity(c.Sentiment)})
	}
	for _, c := range comments {
		for j, r := range c.Replies {
			pts = append(pts, point{j, polarity(r.Sentiment)})
		}
	}
	slices.SortStableFunc(pts, func(a, b point) int { return a.pos - b.pos })

	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = p.polarity
	}
	return out
}

func sentimentTimeline(in Input) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Sentiment Timeline"
	p.X.Label.Text = "Comment Sequence (Including Replies)"
	p.Y.Label.Text = "Sentiment Polarity"
	p.Y.Min, p.Y.Max = -1, 1
	p.Add(plotter.NewGrid())

	seq := timelineOrder(in.Comments)
	if len(seq) == 0 {
		return p, nil
	}
	xys := make(plotter.XYs, len(seq))
	for i, v := range seq {
		xys[i] = plotter.XY{X: float64(i), Y: v}
	}
	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return nil, err
	}
	line.Color = timelineColor
	points.Color = timelineColor
	p.Add(line, points)
	return p, nil
}

func categoryBars(in Input) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Comment Category Distribution"
	p.X.Label.Text = "Categories"
	p.Y.Label.Text = "Number of Comments"

	if len(in.CategoryNames) == 0 || len(in.CategoryNames) != len(in.CategoryCounts) {
		return p, nil
	}
	bars, err := plotter.NewBarChart(plotter.Values(in.CategoryCounts), vg.Points(40))
	if err != nil {
		return nil, err
	}
	bars.Color = barColor
	p.Add(bars)
	p.NominalX(in.CategoryNames...)
	p.X.Tick.Label.Rotation = 0.785 // 45 degrees
	p.X.Tick.Label.XAlign = draw.XRight
	return p, nil
}
