package embedding

import "github.com/hyperjump/kikitori/pkg/utils"

// meanPool averages the token vectors of hidden ([tokens x dims], row-major)
// whose attention mask is set, then L2-normalizes the result.
func meanPool(hidden []float32, mask []int64, tokens, dims int) []float32 {
	out := make([]float32, dims)
	var n float32
	for t := 0; t < tokens && t < len(mask); t++ {
		if mask[t] == 0 {
			continue
		}
		row := hidden[t*dims : (t+1)*dims]
		for d, v := range row {
			out[d] += v
		}
		n++
	}
	if n > 0 {
		for d := range out {
			out[d] /= n
		}
	}
	utils.NormalizeL2(out)
	return out
}
