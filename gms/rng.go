package gms

// rng is the deterministic linear congruential generator behind random().
// Same constants as the original runner, so a seed replays identically.
type rng struct {
	seed int32
}

func (r *rng) setSeed(s int32) { r.seed = s }

func (r *rng) next() uint32 {
	r.seed = r.seed*0x343FD + 0x269EC3
	return uint32(r.seed) >> 16 & 0x7FFF
}

// float returns a uniform value in [0, 1).
func (r *rng) float() float64 {
	hi := r.next()
	lo := r.next()
	return float64(hi<<15|lo) / float64(1<<30)
}

// real returns a uniform value in [0, x).
func (r *rng) real(x float64) float64 {
	return r.float() * x
}

// intn returns a uniform integer in [0, n], inclusive.
func (r *rng) intn(n int64) int64 {
	if n <= 0 {
		return 0
	}
	return int64(r.float() * float64(n+1))
}
