package transport

import "strconv"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page turns page/page_size query values into limit and offset.
func Page(pageRaw, sizeRaw string) (limit, offset int) {
	page, _ := strconv.Atoi(pageRaw)
	size, _ := strconv.Atoi(sizeRaw)
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return size, (page - 1) * size
}
