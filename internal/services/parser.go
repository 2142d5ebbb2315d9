// Status listing page parser
package services

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/desertthunder/badgeidle/internal/models"
)

var (
	runLinkPattern   = regexp.MustCompile(`steam://run/(\d+)`)
	remainingPattern = regexp.MustCompile(`(\d[\d,]*)`)
)

// BadgePage is the parsed content of one status listing page.
type BadgePage struct {
	Entries       []models.ProgressItem
	PageCount     int  // total pages hinted by the pagination links
	HasPagination bool // whether any pagination links were present
}

// PageParser extracts candidate entries from a status listing page.
type PageParser interface {
	Parse(r io.Reader) (*BadgePage, error)
}

// BadgePageParser parses the community badge listing markup.
type BadgePageParser struct{}

// Parse reads rows in document order. Rows without a launch link are not idleable and are skipped.
func (BadgePageParser) Parse(r io.Reader) (*BadgePage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse status page: %w", err)
	}

	page := &BadgePage{}
	doc.Find(".badge_row").Each(func(_ int, row *goquery.Selection) {
		href, ok := row.Find(".badge_title_playgame a").First().Attr("href")
		if !ok {
			return
		}
		id, ok := parseRunID(href)
		if !ok {
			return
		}

		page.Entries = append(page.Entries, models.ProgressItem{
			ID:        id,
			Title:     cleanTitle(row.Find(".badge_title").First().Text()),
			Remaining: parseRemaining(row.Find(".progress_info_bold").First().Text()),
		})
	})

	links := doc.Find(".pagelink").Length()
	page.PageCount = links + 1
	page.HasPagination = links > 0
	return page, nil
}

func parseRunID(href string) (int, bool) {
	m := runLinkPattern.FindStringSubmatch(href)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func cleanTitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(strings.TrimSuffix(s, "View details"))
}

// parseRemaining reads "N card drops remaining". Anything else counts as zero.
func parseRemaining(s string) int {
	m := remainingPattern.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return 0
	}
	return n
}
