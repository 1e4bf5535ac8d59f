package pricing

import "gonum.org/v1/gonum/stat/distuv"

// normCDF is the standard normal CDF. distuv evaluates it through math.Erfc,
// so tail probabilities keep their relative precision out to |x| > 10.
func normCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// normPDF is the standard normal density.
func normPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}
