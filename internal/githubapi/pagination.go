package githubapi

import (
	"net/url"
	"strconv"
	"strings"
)

// PageStrategy distinguishes numeric page navigation from opaque cursors.
type PageStrategy string

const (
	// PageStrategyNumeric indicates classic page-number navigation.
	PageStrategyNumeric PageStrategy = "numeric"
	// PageStrategyCursor indicates opaque cursor navigation; totals derived
	// from it are estimates, never exact counts.
	PageStrategyCursor PageStrategy = "cursor"
)

// PageInfo is parsed link-relation pagination metadata for one listing page.
type PageInfo struct {
	Strategy PageStrategy
	HasNext  bool
	HasPrev  bool
	// LastPage is the page number carried by rel="last". Zero when the
	// header omits it or the strategy is cursor-based.
	LastPage int
}

// ParseLinkHeader reads rel="next"/"prev"/"last" out of a Link header.
// An empty header means the listing fits on a single page.
func ParseLinkHeader(header string) PageInfo {
	info := PageInfo{Strategy: PageStrategyNumeric}
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return info
	}

	if strings.Contains(trimmed, "after=") {
		info.Strategy = PageStrategyCursor
	}

	for _, part := range strings.Split(trimmed, ",") {
		target, rel, ok := splitLinkPart(part)
		if !ok {
			continue
		}
		switch rel {
		case "next":
			info.HasNext = true
		case "prev":
			info.HasPrev = true
		case "last":
			if info.Strategy == PageStrategyNumeric {
				info.LastPage = pageNumberFromURL(target)
			}
		}
	}
	return info
}

func splitLinkPart(part string) (target, rel string, ok bool) {
	segments := strings.Split(part, ";")
	if len(segments) < 2 {
		return "", "", false
	}

	target = strings.TrimSpace(segments[0])
	target = strings.TrimPrefix(target, "<")
	target = strings.TrimSuffix(target, ">")

	for _, segment := range segments[1:] {
		trimmed := strings.TrimSpace(segment)
		if value, found := strings.CutPrefix(trimmed, `rel="`); found {
			return target, strings.TrimSuffix(value, `"`), true
		}
	}
	return "", "", false
}

func pageNumberFromURL(raw string) int {
	parsed, err := url.Parse(raw)
	if err != nil {
		return 0
	}
	page, err := strconv.Atoi(parsed.Query().Get("page"))
	if err != nil || page < 0 {
		return 0
	}
	return page
}
