package generator

import "sort"

// schemeMajority is the share of gap evidence required to call a scheme.
const schemeMajority = 0.7

// DetectRowScheme infers the numbering scheme of one row from its currently
// visible seat numbers. Gaps of 2 between sorted neighbors are odd/even
// evidence; anything else is consecutive evidence. Rows with too few seats
// to judge default to consecutive.
func DetectRowScheme(numbers []int) Scheme {
	if len(numbers) < 3 {
		return SchemeConsecutive
	}

	sorted := make([]int, len(numbers))
	copy(sorted, numbers)
	sort.Ints(sorted)

	oddEven, total := 0, 0
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i] - sorted[i-1]
		if gap == 0 {
			continue
		}
		total++
		if gap == 2 {
			oddEven++
		}
	}

	if total == 0 {
		return SchemeConsecutive
	}
	if float64(oddEven)/float64(total) >= schemeMajority {
		return SchemeOddEven
	}
	return SchemeConsecutive
}

// DetectVenueScheme infers a venue-wide scheme from per-row seat numbers,
// calling odd/even only when a 70% majority of rows agree.
func DetectVenueScheme(rows map[string][]int) Scheme {
	if len(rows) == 0 {
		return SchemeConsecutive
	}

	oddEven := 0
	for _, numbers := range rows {
		if DetectRowScheme(numbers) == SchemeOddEven {
			oddEven++
		}
	}

	if float64(oddEven)/float64(len(rows)) >= schemeMajority {
		return SchemeOddEven
	}
	return SchemeConsecutive
}
