package bookstore

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// matches "2018年12月04日" and "2015年12月09日頃"
var salesDateRe = regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`)

// ParseReleaseDate turns a catalog sales date into YYYY-MM-DD. Strings without
// a full year-month-day, or naming an impossible day, yield ok=false.
func ParseReleaseDate(s string) (string, bool) {
	m := salesDateRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	iso := fmt.Sprintf("%04d-%02d-%02d", y, mo, d)
	if _, err := time.Parse(time.DateOnly, iso); err != nil {
		return "", false
	}
	return iso, true
}
