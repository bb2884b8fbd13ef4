package signal

import (
	"math"

	"github.com/geopmd/core/internal/sigbuf"
)

// Derivative is a signal whose value is the least-squares slope of an
// upstream value signal against an upstream time signal, computed
// over a bounded sliding window of the N most recently observed
// points. It returns NaN until at least two points have been
// observed.
//
// To preserve precision near large absolute clock values, the slope
// is computed against (t - t0, v - v0) rather than the raw (t, v)
// pairs, where (t0, v0) is the oldest point currently in the history
// — the same reference-subtraction trick the source implementation
// uses.
type Derivative struct {
	timeSig Signal
	valSig  Signal
	history *sigbuf.Ring
}

// NewDerivative creates a Derivative signal holding up to numHistory
// most-recent (time, value) points. numHistory must be at least 2 for
// the signal to ever produce a finite value.
func NewDerivative(timeSig, valSig Signal, numHistory int) *Derivative {
	return &Derivative{
		timeSig: timeSig,
		valSig:  valSig,
		history: sigbuf.NewRing(numHistory),
	}
}

// Update pushes the current (time, value) reading of the upstream
// signals into the history. It must be called once per read_batch by
// the owning PlatformIO before Sample is read.
func (d *Derivative) Update() {
	d.history.Push(sigbuf.Point{
		Time:  d.timeSig.Sample(),
		Value: d.valSig.Sample(),
	})
}

// Sample returns the current least-squares slope, or NaN if fewer
// than two points have been observed.
func (d *Derivative) Sample() float64 {
	return slope(d.history)
}

// slope implements Σxy − (Σx·Σy)/n) / (Σx² − (Σx)²/n) with
// x = t − t0, y = v − v0, using every point currently in history.
func slope(history *sigbuf.Ring) float64 {
	n := history.Len()
	if n < 2 {
		return math.NaN()
	}
	t0 := history.At(0).Time
	v0 := history.At(0).Value

	var sumX, sumY, sumXY, sumXX float64
	history.Each(func(p sigbuf.Point) {
		x := p.Time - t0
		y := p.Value - v0
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	})

	fn := float64(n)
	denom := sumXX - (sumX*sumX)/fn
	if denom == 0 {
		return math.NaN()
	}
	numer := sumXY - (sumX*sumY)/fn
	return numer / denom
}

// Read repeatedly samples the two upstream signals with a fixed
// inter-sample delay until the history is full, for out-of-band
// callers that are not participating in the controller's batched
// read_batch loop. sleep is injected for testability.
func (d *Derivative) Read(sleep func()) float64 {
	for d.history.Len() < d.history.Cap() {
		d.Update()
		sleep()
	}
	return d.Sample()
}
