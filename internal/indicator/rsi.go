package indicator

// rsi is Wilder's Relative Strength Index, O(1) per update after warm-up.
// Warm-up completes at count = period+1 (the first delta requires two
// closes, and period deltas are needed to seed the initial averages).
type rsi struct {
	period    int
	count     int
	prevClose float64
	avgGain   float64
	avgLoss   float64
	current   float64
}

func newRSI(period int) *rsi {
	return &rsi{period: period}
}

func (r *rsi) update(close float64) {
	r.count++

	if r.count == 1 {
		r.prevClose = close
		return
	}

	delta := close - r.prevClose
	r.prevClose = close

	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	if r.count <= r.period+1 {
		r.avgGain += gain
		r.avgLoss += loss
		if r.count == r.period+1 {
			r.avgGain /= float64(r.period)
			r.avgLoss /= float64(r.period)
			r.current = computeRSI(r.avgGain, r.avgLoss)
		}
		return
	}

	p := float64(r.period)
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
	r.current = computeRSI(r.avgGain, r.avgLoss)
}

func computeRSI(avgGain, avgLoss float64) float64 {
	if avgGain == 0 && avgLoss == 0 {
		return 50
	}
	if avgLoss == 0 {
		return 100
	}
	if avgGain == 0 {
		return 0
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

func (r *rsi) value() float64 { return r.current }
func (r *rsi) ready() bool    { return r.count >= r.period+1 }
