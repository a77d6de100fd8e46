package tracking

import (
	"gonum.org/v1/gonum/stat"
)

// DefaultForecastWindow is the number of trailing points used to estimate a
// track's velocity.
const DefaultForecastWindow = 10

// Forecaster predicts where active tracks will be in the next frame using a
// least-squares velocity over the trailing Window points.
type Forecaster struct {
	Window int
}

func (f Forecaster) window() int {
	if f.Window < 2 {
		return DefaultForecastWindow
	}
	return f.Window
}

// Velocity estimates the per-frame velocity of t from its trailing window by
// ordinary least squares of x and y against frame number. The second result
// is false when the track has no established velocity: fewer than two points,
// or a window spanning a single distinct frame.
func (f Forecaster) Velocity(t *Track) (Velocity, bool) {
	pts := t.Points
	if w := f.window(); len(pts) > w {
		pts = pts[len(pts)-w:]
	}
	if len(pts) < 2 {
		return Velocity{}, false
	}

	frames := make([]float64, len(pts))
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		frames[i] = float64(p.Frame)
		xs[i] = p.X
		ys[i] = p.Y
	}

	// Σ(frame-meanFrame)² is the regression denominator; zero means every
	// point shares a frame and the slope is undefined.
	meanFrame := stat.Mean(frames, nil)
	var sxx float64
	for _, fr := range frames {
		d := fr - meanFrame
		sxx += d * d
	}
	if sxx == 0 {
		return Velocity{}, false
	}

	_, vx := stat.LinearRegression(frames, xs, nil, false)
	_, vy := stat.LinearRegression(frames, ys, nil, false)
	return Velocity{VX: vx, VY: vy}, true
}

// SystemVelocity is the mean established velocity across tracks, or zero
// when no track has one.
func (f Forecaster) SystemVelocity(tracks []*Track) Velocity {
	var sum Velocity
	n := 0
	for _, t := range tracks {
		v, ok := f.Velocity(t)
		if !ok {
			continue
		}
		sum.VX += v.VX
		sum.VY += v.VY
		n++
	}
	if n == 0 {
		return Velocity{}
	}
	return Velocity{VX: sum.VX / float64(n), VY: sum.VY / float64(n)}
}

// Forecast extrapolates t to targetFrame. Tracks without an established
// velocity move with the system velocity.
func (f Forecaster) Forecast(t *Track, targetFrame int64, system Velocity) Forecast {
	v, ok := f.Velocity(t)
	if !ok {
		v = system
	}
	last := t.Last()
	dt := float64(targetFrame - last.Frame)
	return Forecast{
		X: last.X + v.VX*dt,
		Y: last.Y + v.VY*dt,
	}
}

// ForecastAll forecasts every track to targetFrame, in input order.
func (f Forecaster) ForecastAll(tracks []*Track, targetFrame int64) []Forecast {
	system := f.SystemVelocity(tracks)
	out := make([]Forecast, len(tracks))
	for i, t := range tracks {
		out[i] = f.Forecast(t, targetFrame, system)
	}
	return out
}
