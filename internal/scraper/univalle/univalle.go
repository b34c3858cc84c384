// Package univalle speaks to the university's legacy assignment portal:
// period discovery from the listing page and per-(cedula, period)
// document fetches from the print view. All pages arrive as ISO-8859-1
// and are decoded by the HTTP client before parsing.
package univalle

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/univalle-dev/asignacion-go/internal/asignacion"
	"github.com/univalle-dev/asignacion-go/internal/scraper"
)

const (
	// DefaultBaseURL is the production portal.
	DefaultBaseURL = "https://proxse26.univalle.edu.co/asignacion"

	listingPage  = "vin_docente.php3"
	documentPage = "vin_inicio_impresion.php3"
)

// ListingURL returns the period listing endpoint under baseURL.
func ListingURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/" + listingPage
}

// DocumentURL returns the print view for one (cedula, period) pair. The
// periodo parameter takes the portal's opaque option id, not the label.
func DocumentURL(baseURL, cedula string, periodID int) string {
	return fmt.Sprintf("%s/%s?cedula=%s&periodo=%d",
		strings.TrimRight(baseURL, "/"), documentPage, url.QueryEscape(cedula), periodID)
}

// DiscoverPeriods fetches the listing page and returns at most n
// periods, newest first. Any fault yields an empty list; callers decide
// their own fallback.
func DiscoverPeriods(ctx context.Context, client *scraper.Client, baseURL string, n int) []asignacion.Period {
	if ctx.Err() != nil {
		return nil
	}
	page, err := client.Get(ctx, ListingURL(baseURL))
	if err != nil {
		return nil
	}
	return ParseListingPeriods(page, n)
}

// ParseListingPeriods extracts the period dropdown from decoded listing
// HTML. The DOM walk covers well-formed markup; the raw option scan
// recovers pages too broken for the HTML parser to surface options.
func ParseListingPeriods(page string, n int) []asignacion.Period {
	var periods []asignacion.Period

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err == nil {
		doc.Find("option").Each(func(_ int, opt *goquery.Selection) {
			value, ok := opt.Attr("value")
			if !ok {
				return
			}
			if p, found := asignacion.PeriodFromOption(value, opt.Text()); found {
				periods = append(periods, p)
			}
		})
	}
	if len(periods) == 0 {
		periods = asignacion.ParsePeriodOptions(page)
	}
	return asignacion.NormalizePeriods(periods, n)
}

// FetchPage retrieves the raw decoded print view for one (cedula,
// period). Kept separate from assembly so the harvester can archive the
// page exactly as scraped.
func FetchPage(ctx context.Context, client *scraper.Client, baseURL, cedula string, period asignacion.Period) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled before fetching document: %w", err)
	}
	page, err := client.Get(ctx, DocumentURL(baseURL, cedula, period.ID))
	if err != nil {
		return "", fmt.Errorf("fetch cedula=%s periodo=%s: %w", cedula, period.Label, err)
	}
	return page, nil
}

// FetchDocument retrieves and assembles one faculty document. Table
// classification outcomes go to obs, which may be nil.
func FetchDocument(ctx context.Context, client *scraper.Client, baseURL, cedula string, period asignacion.Period, obs asignacion.TableObserver) (*asignacion.FacultyDocument, error) {
	page, err := FetchPage(ctx, client, baseURL, cedula, period)
	if err != nil {
		return nil, err
	}
	return asignacion.AssembleObserved(cedula, period, page, obs)
}
