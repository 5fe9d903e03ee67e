package toolbox

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Gauss-Legendre nodes and weights (positive half) of order 12 and 16.
var (
	leg12X = [6]float64{
		0.981560634246719250690549090149, 0.904117256370474856678465866119,
		0.769902674194304687036893833213, 0.587317954286617447296702418941,
		0.367831498998180193752691536644, 0.125233408511468915472441369464,
	}
	leg12W = [6]float64{
		0.047175336386511827194615961485, 0.106939325995318430960254718194,
		0.160078328543346226334652529543, 0.203167426723065921749064455810,
		0.233492536538354808760849898925, 0.249147045813402785000562436043,
	}
	leg16X = [8]float64{
		0.989400934991649932596154173450, 0.944575023073232576077988415535,
		0.865631202387831743880467897712, 0.755404408355003033895101194847,
		0.617876244402643748446671764049, 0.458016777657227386342419442984,
		0.281603550779258913230460501460, 0.950125098376374401853193354250e-1,
	}
	leg16W = [8]float64{
		0.271524594117540948517805724560e-1, 0.622535239386478928628438369944e-1,
		0.951585116824927848099251076022e-1, 0.124628971255533872052476282192,
		0.149595988816576732081501730547, 0.169156519395002538189312079030,
		0.182603415044923588866763667969, 0.189450610455068496285396723208,
	}
)

// rangeProb is P(range of k standard normals < w), the infinite-df
// studentized range distribution (Copenhaver and Holland, 1988).
func rangeProb(w, k float64) float64 {
	const (
		upper = 8.0
		c1    = -30.0
		c2    = -50.0
		c3    = 60.0
	)
	half := w * 0.5
	if half >= upper {
		return 1
	}
	n := distuv.UnitNormal
	pr := 2*n.CDF(half) - 1
	if pr >= math.Exp(c2/k) {
		pr = math.Pow(pr, k)
	} else {
		pr = 0
	}

	intervals := 3.0
	if w > 3 {
		intervals = 2
	}
	lo := half
	step := (upper - half) / intervals
	hi := lo + step
	var sum float64
	for i := 0; i < int(intervals); i++ {
		var part float64
		mid := 0.5 * (hi + lo)
		rad := 0.5 * (hi - lo)
		for jj := 0; jj < 12; jj++ {
			var x, wt float64
			if jj < 6 {
				x, wt = -leg12X[jj], leg12W[jj]
			} else {
				x, wt = leg12X[11-jj], leg12W[11-jj]
			}
			ac := mid + rad*x
			sq := ac * ac
			if sq > c3 {
				break
			}
			in := n.CDF(ac) - n.CDF(ac-w)
			if in >= math.Exp(c1/(k-1)) {
				part += wt * math.Exp(-0.5*sq) * math.Pow(in, k-1)
			}
		}
		sum += part * 2 * rad * k / math.Sqrt(2*math.Pi)
		lo = hi
		hi += step
	}
	pr += sum
	if pr <= math.Exp(c1) {
		return 0
	}
	return math.Min(1, pr)
}

// PTukey is the CDF of the studentized range for k means and df error
// degrees of freedom. It returns NaN for k < 2 or df < 2.
func PTukey(q, k, df float64) float64 {
	const (
		eps1 = -30.0
		eps2 = 1e-14
	)
	switch {
	case math.IsNaN(q) || k < 2 || df < 2:
		return math.NaN()
	case q <= 0:
		return 0
	case math.IsInf(q, 1):
		return 1
	case df > 25000:
		return rangeProb(q, k)
	}

	f2 := df * 0.5
	lg, _ := math.Lgamma(f2)
	f2lf := f2*math.Log(df) - df*math.Ln2 - lg
	f21 := f2 - 1
	ff4 := df * 0.25
	var ulen float64
	switch {
	case df <= 100:
		ulen = 1
	case df <= 800:
		ulen = 0.5
	case df <= 5000:
		ulen = 0.25
	default:
		ulen = 0.125
	}
	f2lf += math.Log(ulen)

	var ans, part float64
	for i := 1; i <= 50; i++ {
		part = 0
		twa1 := float64(2*i-1) * ulen
		for jj := 0; jj < 16; jj++ {
			var u, wt float64
			if jj < 8 {
				u, wt = twa1-leg16X[jj]*ulen, leg16W[jj]
			} else {
				u, wt = twa1+leg16X[jj-8]*ulen, leg16W[jj-8]
			}
			t1 := f2lf + f21*math.Log(u) - u*ff4
			if t1 < eps1 {
				continue
			}
			part += rangeProb(q*math.Sqrt(u*0.5), k) * wt * math.Exp(t1)
		}
		if float64(i)*ulen >= 1 && part <= eps2 {
			break
		}
		ans += part
	}
	return math.Min(1, ans)
}
