package ledger

import "math"

// riskFreeRate is the fixed annual risk-free rate, in percent, used for
// the Sharpe ratio.
const riskFreeRate = 2.0

// computeRiskMetrics derives the rolling metrics from a return series (in
// percent) and the winner count. A zero-volatility series yields a Sharpe
// ratio of 0 rather than a division by zero.
func computeRiskMetrics(returns []float64, winners int) RiskMetrics {
	m := RiskMetrics{}
	n := len(returns)
	if n == 0 {
		return m
	}

	m.WinRate = float64(winners) / float64(n) * 100

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(n)

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(n)
	m.Volatility = math.Sqrt(variance)

	if m.Volatility > 0 {
		m.SharpeRatio = (mean - riskFreeRate) / m.Volatility
	}

	m.MaxDrawdown = maxDrawdown(returns)
	return m
}

// maxDrawdown is the largest peak-to-current gap over the cumulative sum
// of per-trade return percentages.
func maxDrawdown(returns []float64) float64 {
	var cum, peak, maxDD float64
	for _, r := range returns {
		cum += r
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}
