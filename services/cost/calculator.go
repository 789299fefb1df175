package cost

import (
	"math"

	"go.uber.org/zap"
)

// tokensPerUnit is the denominator pricing is quoted against
const tokensPerUnit = 1_000_000

// costPrecision is the fixed number of fractional digits costs are rounded
// to, so repeated aggregation does not accumulate floating-point drift.
const costPrecision = 4

// Calculator computes the monetary cost of a completed request from its
// token counts and the pricing table.
type Calculator struct {
	table  *PricingTable
	logger *zap.Logger
}

// NewCalculator creates a new cost calculator
func NewCalculator(table *PricingTable, logger *zap.Logger) *Calculator {
	return &Calculator{table: table, logger: logger}
}

// Compute returns the cost for the given token counts, rounded to four
// fractional digits. A missing pricing entry is a configuration problem,
// not a request failure: the cost is reported as 0 with priced=false and a
// warning is logged so the request still completes.
func (c *Calculator) Compute(provider, model string, inputTokens, outputTokens int) (cost float64, priced bool) {
	entry, ok := c.table.Lookup(provider, model)
	if !ok {
		c.logger.Warn("no pricing entry, reporting unpriced cost",
			zap.String("provider", provider),
			zap.String("model", model))
		return 0, false
	}

	raw := float64(inputTokens)/tokensPerUnit*entry.InputPerMillion +
		float64(outputTokens)/tokensPerUnit*entry.OutputPerMillion
	return round(raw), true
}

// Estimate prices a request before the call from estimated input tokens and
// an output-token ceiling. Unpriced pairs estimate to 0 so stale pricing
// metadata never blocks traffic.
func (c *Calculator) Estimate(provider, model string, estimatedInput, maxOutput int) float64 {
	cost, _ := c.Compute(provider, model, estimatedInput, maxOutput)
	return cost
}

func round(v float64) float64 {
	shift := math.Pow10(costPrecision)
	return math.Round(v*shift) / shift
}
