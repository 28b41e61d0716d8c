package explore

import "github.com/vanderheijden86/eavview/pkg/model"

// DefaultPageSize is the number of rows per table page.
const DefaultPageSize = 50

// Page is one window over a filtered sequence. RangeStart and RangeEnd are
// 1-based and inclusive; both are 0 when Total is 0.
type Page struct {
	Items      []model.Triple `json:"items"`
	PageIndex  int            `json:"page"`
	PageCount  int            `json:"page_count"`
	PageSize   int            `json:"page_size"`
	RangeStart int            `json:"range_start"`
	RangeEnd   int            `json:"range_end"`
	Total      int            `json:"total"`
}

// PageCount returns max(1, ceil(total/pageSize)).
func PageCount(total, pageSize int) int {
	if pageSize <= 0 {
		panic("explore: page size must be positive")
	}
	return max(1, (total+pageSize-1)/pageSize)
}

// ClampPage moves pageIndex into [1, pageCount].
func ClampPage(pageIndex, pageCount int) int {
	return min(max(pageIndex, 1), max(pageCount, 1))
}

// Paginate slices filtered into the page at pageIndex, clamped into range.
// A non-positive pageSize panics.
func Paginate(filtered []model.Triple, pageIndex, pageSize int) Page {
	total := len(filtered)
	count := PageCount(total, pageSize)
	idx := ClampPage(pageIndex, count)

	start := min((idx-1)*pageSize, total)
	end := min(idx*pageSize, total)

	p := Page{
		Items:     filtered[start:end:end],
		PageIndex: idx,
		PageCount: count,
		PageSize:  pageSize,
		Total:     total,
	}
	if end > start {
		p.RangeStart = start + 1
		p.RangeEnd = end
	}
	return p
}
