package cooccur

import (
	"math"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ONE-SIDED FISHER EXACT TEST
// ═══════════════════════════════════════════════════════════════════════════════
// For the 2×2 table
//
//	            in B   not B
//	in A      [  a   ,   b  ]
//	not A     [  c   ,   d  ]
//
// hold every margin fixed. The top-left cell then follows a hypergeometric
// distribution:
//
//	X ~ Hypergeometric(N = a+b+c+d, K = a+c, n = a+b)
//	P(X = x) = C(K, x) · C(N-K, n-x) / C(N, n)
//
// The "greater" alternative asks how surprising an overlap of AT LEAST a is:
//
//	p = P(X ≥ a) = Σ_{x=a}^{min(n,K)} P(X = x)
//
// NUMERICS:
// ---------
// Binomial coefficients over a PubMed-sized corpus overflow float64 long
// before they are useful, so the first pmf term comes from math.Lgamma and
// the rest from the ratio recurrence
//
//	P(x+1)/P(x) = (K-x)(n-x) / ((x+1)(N-K-n+x+1))
//
// Summation always walks away from the mode, where terms shrink
// monotonically, and stops once they no longer move the sum. When a lies at
// or below the mode the lower tail P(X ≤ a-1) is summed instead and
// complemented.
// ═══════════════════════════════════════════════════════════════════════════════

// FisherExactGreater returns the sample odds ratio and the one-sided
// ("greater") Fisher exact p-value for t.
//
// EDGE CASES:
// -----------
//   - Any row or column margin is zero: every cell is forced by the margins,
//     so there is nothing to test. Returns (NaN, 1).
//   - b·c == 0 otherwise: the odds ratio is +Inf.
func FisherExactGreater(t ContingencyTable) (oddsRatio, pValue float64) {
	if t.degenerate() {
		return math.NaN(), 1
	}

	if t.B > 0 && t.C > 0 {
		oddsRatio = (float64(t.A) * float64(t.D)) / (float64(t.B) * float64(t.C))
	} else {
		oddsRatio = math.Inf(1)
	}

	total := t.Total()
	successes := t.A + t.C
	draws := t.A + t.B
	return oddsRatio, hypergeomSF(t.A, total, successes, draws)
}

// hypergeomSF returns P(X ≥ k) for X ~ Hypergeometric(total, successes, draws)
func hypergeomSF(k, total, successes, draws uint64) float64 {
	lo := uint64(0)
	if draws+successes > total {
		lo = draws + successes - total
	}
	hi := min(draws, successes)

	if k <= lo {
		return 1
	}
	if k > hi {
		return 0
	}

	N, K, n := float64(total), float64(successes), float64(draws)
	mode := math.Floor((n + 1) * (K + 1) / (N + 2))

	if float64(k) > mode {
		return clampProbability(upperTail(k, hi, N, K, n))
	}
	return clampProbability(1 - lowerTail(k-1, lo, N, K, n))
}

// upperTail sums P(X = x) for x = from .. hi, with terms shrinking as x grows
func upperTail(from, hi uint64, N, K, n float64) float64 {
	term := math.Exp(hypergeomLogPMF(float64(from), N, K, n))
	sum := term
	for x := from; x < hi; x++ {
		xf := float64(x)
		term *= (K - xf) * (n - xf) / ((xf + 1) * (N - K - n + xf + 1))
		if term == 0 || term < sum*1e-17 {
			break
		}
		sum += term
	}
	return sum
}

// lowerTail sums P(X = x) for x = from down to lo, with terms shrinking as x
// falls
func lowerTail(from, lo uint64, N, K, n float64) float64 {
	term := math.Exp(hypergeomLogPMF(float64(from), N, K, n))
	sum := term
	for x := from; x > lo; x-- {
		xf := float64(x)
		term *= xf * (N - K - n + xf) / ((K - xf + 1) * (n - xf + 1))
		if term == 0 || term < sum*1e-17 {
			break
		}
		sum += term
	}
	return sum
}

// hypergeomLogPMF returns log P(X = x)
func hypergeomLogPMF(x, N, K, n float64) float64 {
	return logChoose(K, x) + logChoose(N-K, n-x) - logChoose(N, n)
}

// logChoose returns log C(n, k) via the log-gamma function
func logChoose(n, k float64) float64 {
	a, _ := math.Lgamma(n + 1)
	b, _ := math.Lgamma(k + 1)
	c, _ := math.Lgamma(n - k + 1)
	return a - b - c
}

func clampProbability(p float64) float64 {
	return math.Min(1, math.Max(0, p))
}
