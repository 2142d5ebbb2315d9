// package scanner walks the paginated status listing and builds the ordered list of
// items with drops remaining.
//
// A scan is a pure read. When the content lock blocks a page, the scan aborts,
// asks the [Unlocker] to lift the lock, and restarts from page 1 exactly once.
package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/badgeidle/internal/models"
	"github.com/desertthunder/badgeidle/internal/services"
	"github.com/desertthunder/badgeidle/internal/shared"
)

// DefaultMaxPages bounds a scan when the pagination hint keeps growing.
const DefaultMaxPages = 100

// Fetcher retrieves the raw markup of one listing page.
type Fetcher interface {
	BadgesPage(ctx context.Context, identity string, page int) ([]byte, error)
}

// Identity supplies the account identity for listing URLs.
type Identity interface {
	Identity() (string, error)
}

// Unlocker lifts the content lock.
type Unlocker interface {
	Unlock(ctx context.Context, pin string) error
}

// Options configures a [Scanner].
type Options struct {
	Parser   services.PageParser // defaults to [services.BadgePageParser]
	PIN      string              // empty or all zeros means no PIN is configured
	MaxPages int
	Logger   *log.Logger
}

// Scanner produces fresh [models.ProgressItem] lists.
type Scanner struct {
	pages    Fetcher
	session  Identity
	gate     Unlocker
	parser   services.PageParser
	pin      string
	maxPages int
	logger   *log.Logger
}

// New creates a Scanner.
func New(pages Fetcher, session Identity, gate Unlocker, opts Options) *Scanner {
	if opts.Parser == nil {
		opts.Parser = services.BadgePageParser{}
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Scanner{
		pages:    pages,
		session:  session,
		gate:     gate,
		parser:   opts.Parser,
		pin:      opts.PIN,
		maxPages: opts.MaxPages,
		logger:   shared.WithLogger(opts.Logger, "component", "scanner"),
	}
}

// Scan returns items with drops remaining in first-seen order, restricted to selection when it is non-nil.
func (s *Scanner) Scan(ctx context.Context, selection *models.SelectionSet) ([]models.ProgressItem, error) {
	identity, err := s.session.Identity()
	if err != nil {
		return nil, err
	}

	items, err := s.scanOnce(ctx, identity, selection)
	if !errors.Is(err, shared.ErrAccessObstacle) {
		return items, err
	}

	if !models.PINConfigured(s.pin) {
		return nil, fmt.Errorf("%w: %v", shared.ErrPinRequired, err)
	}
	if err := s.gate.Unlock(ctx, s.pin); err != nil {
		return nil, err
	}

	s.logger.Info("restarting scan after unlock")
	items, err = s.scanOnce(ctx, identity, selection)
	if errors.Is(err, shared.ErrAccessObstacle) {
		return nil, fmt.Errorf("%w: %v", shared.ErrLockedOut, err)
	}
	return items, err
}

func (s *Scanner) scanOnce(ctx context.Context, identity string, selection *models.SelectionSet) ([]models.ProgressItem, error) {
	var items []models.ProgressItem
	total := 1

	for page := 1; page <= total; page++ {
		body, err := s.pages.BadgesPage(ctx, identity, page)
		if err != nil {
			return nil, err
		}

		parsed, err := s.parser.Parse(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		total = max(total, min(parsed.PageCount, s.maxPages))

		for _, entry := range parsed.Entries {
			if entry.Remaining <= 0 || !selection.Allows(entry.ID) {
				continue
			}
			items = append(items, entry)
		}

		s.logger.Debug("scanned page", "page", page, "of", total, "entries", len(parsed.Entries), "kept", len(items))

		// the page count is an upper bound; an empty page with no links ends the listing
		if len(parsed.Entries) == 0 && !parsed.HasPagination {
			break
		}
	}

	s.logger.Info("scan complete", "items", len(items))
	return items, nil
}
