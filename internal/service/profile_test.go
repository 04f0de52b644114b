package service

import "testing"

func TestPaginationFlags(t *testing.T) {
	cases := []struct {
		page, size, total int
		wantPrev, wantNext bool
	}{
		{page: 1, size: 10, total: 25, wantPrev: false, wantNext: true},
		{page: 2, size: 10, total: 25, wantPrev: true, wantNext: true},
		{page: 3, size: 10, total: 25, wantPrev: true, wantNext: false},
		{page: 1, size: 10, total: 0, wantPrev: false, wantNext: false},
	}
	for _, c := range cases {
		hasPrev, hasNext := paginationFlags(c.page, c.size, c.total)
		if hasPrev != c.wantPrev || hasNext != c.wantNext {
			t.Errorf("paginationFlags(%d,%d,%d) = (%v,%v), want (%v,%v)",
				c.page, c.size, c.total, hasPrev, hasNext, c.wantPrev, c.wantNext)
		}
	}
}
