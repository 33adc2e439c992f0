package datasets

import "fmt"

// AdjustedRandIndex measures the agreement of two labelings of the same rows,
// corrected for chance. It is 1 for identical partitions regardless of label
// names and close to 0 for independent ones.
func AdjustedRandIndex(a, b []int32) float64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("datasets: labelings of %d and %d rows", len(a), len(b)))
	}
	n := len(a)
	if n < 2 {
		return 1
	}

	type pair struct{ x, y int32 }
	contingency := make(map[pair]int)
	rows := make(map[int32]int)
	cols := make(map[int32]int)
	for i := range a {
		contingency[pair{a[i], b[i]}]++
		rows[a[i]]++
		cols[b[i]]++
	}

	comb2 := func(k int) float64 { return float64(k) * float64(k-1) / 2 }

	var index, sumRows, sumCols float64
	for _, c := range contingency {
		index += comb2(c)
	}
	for _, c := range rows {
		sumRows += comb2(c)
	}
	for _, c := range cols {
		sumCols += comb2(c)
	}

	expected := sumRows * sumCols / comb2(n)
	maxIndex := (sumRows + sumCols) / 2
	if maxIndex == expected {
		// Both labelings put everything in one cluster, or every row in its own.
		return 1
	}
	return (index - expected) / (maxIndex - expected)
}
