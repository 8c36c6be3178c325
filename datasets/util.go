package datasets

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
)

func parseFloat64(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return v, nil
}

// columnMean computes the mean of a numeric column ignoring missing (NaN)
// cells. The second return is false when every cell is missing.
func columnMean(vals []float64) (float64, bool) {
	present := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return 0, false
	}
	return stat.Mean(present, nil), true
}

// columnMode returns the most frequent non-missing value of a string
// column. Ties break toward the lexicographically smaller value so the
// result is deterministic. The second return is false when every cell is
// missing.
func columnMode(vals []string) (string, bool) {
	counts := make(map[string]int)
	for _, v := range vals {
		if v == "" {
			continue
		}
		counts[v]++
	}
	if len(counts) == 0 {
		return "", false
	}
	best := ""
	bestN := -1
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best = v
			bestN = n
		}
	}
	return best, true
}

// monthColumn formats the per-month column name for a channel prefix, e.g.
// monthColumn("GAS", 3) -> "GAS_MONTH_3". Month numbering is 1-based.
func monthColumn(prefix string, month int) string {
	return fmt.Sprintf("%s_MONTH_%d", prefix, month)
}
