package util

import "strconv"

const DefaultPageSize = 12

func Calculate(page, size int) (from, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = DefaultPageSize
	}
	from = (page - 1) * size
	return from, size
}

func ParseIntDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func ParseID(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

type Page struct {
	Number     int
	Size       int
	Total      int
	TotalPages int
	HasPrev    bool
	HasNext    bool
}

func (p Page) Prev() int { return p.Number - 1 }
func (p Page) Next() int { return p.Number + 1 }

// Paginate cuts one page out of items. A page past the end is clamped to the
// last one.
func Paginate[T any](items []T, page, size int) ([]T, Page) {
	from, limit := Calculate(page, size)
	total := len(items)
	pages := (total + limit - 1) / limit
	if pages == 0 {
		pages = 1
	}
	if from >= total {
		from = (pages - 1) * limit
	}
	number := from/limit + 1
	to := min(from+limit, total)

	return items[from:to], Page{
		Number:     number,
		Size:       limit,
		Total:      total,
		TotalPages: pages,
		HasPrev:    number > 1,
		HasNext:    to < total,
	}
}
