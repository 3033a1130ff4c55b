package fuzzy

import "sort"

// line is y = slope*x + intercept.
type line struct {
	slope     float64
	intercept float64
}

// centroid returns the centre of gravity of the aggregated output set
//
//	mu(x) = max_k min(act[k], terms[k](x))
//
// over the universe. mu is piecewise linear and continuous, so the integrals
// are evaluated exactly between consecutive kinks: triangle vertices, clip
// points and crossings between terms. The second result is false when the
// set has zero mass.
func centroid(terms []Triangle, act []float64, u Universe) (float64, bool) {
	xs := []float64{u.Min, u.Max}
	var lines []line

	active := false
	for i, t := range terms {
		h := act[i]
		if h <= 0 {
			continue
		}
		active = true
		xs = append(xs, t.Left, t.Peak, t.Right)
		lines = append(lines, line{slope: 0, intercept: h})
		if !t.LeftShoulder() {
			w := t.Peak - t.Left
			lines = append(lines, line{slope: 1 / w, intercept: -t.Left / w})
		}
		if !t.RightShoulder() {
			w := t.Right - t.Peak
			lines = append(lines, line{slope: -1 / w, intercept: t.Right / w})
		}
	}
	if !active {
		return 0, false
	}

	for i := 0; i < len(lines); i++ {
		for j := i + 1; j < len(lines); j++ {
			a, b := lines[i], lines[j]
			if a.slope == b.slope {
				continue
			}
			x := (b.intercept - a.intercept) / (a.slope - b.slope)
			if x > u.Min && x < u.Max {
				xs = append(xs, x)
			}
		}
	}

	sort.Float64s(xs)

	mu := func(x float64) float64 {
		m := 0.0
		for i, t := range terms {
			if act[i] <= 0 {
				continue
			}
			d := t.Degree(x)
			if d > act[i] {
				d = act[i]
			}
			if d > m {
				m = d
			}
		}
		return m
	}

	// area2 = 2*integral(mu), moment6 = 6*integral(x*mu); scaling is deferred
	// to the final division to keep symmetric sets exact.
	var area2, moment6 float64
	prevX := xs[0]
	prevMu := mu(prevX)
	for _, x := range xs[1:] {
		if x <= prevX || x < u.Min || x > u.Max {
			continue
		}
		m := mu(x)
		dx := x - prevX
		area2 += dx * (prevMu + m)
		moment6 += dx * (prevMu*(2*prevX+x) + m*(prevX+2*x))
		prevX, prevMu = x, m
	}
	if area2 <= 0 {
		return 0, false
	}
	return moment6 / (3 * area2), true
}
