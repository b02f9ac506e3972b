package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"catalogsync/internal/model"
)

const publishedViewURL = "https://docs.google.com/spreadsheets/d/%s/htmlview"

// singleSheetName names the only sheet of a document published without a tab menu.
const singleSheetName = "Sheet1"

// HTMLSource reads the "publish to web" HTML view of a spreadsheet. It needs
// no API key, only a document shared publicly.
type HTMLSource struct {
	url    string
	client *http.Client
}

func NewHTMLSource(sheetID string, timeout time.Duration) *HTMLSource {
	url := ""
	if sheetID != "" {
		url = fmt.Sprintf(publishedViewURL, sheetID)
	}
	return NewHTMLSourceURL(url, timeout)
}

// NewHTMLSourceURL reads the published view at an explicit URL.
func NewHTMLSourceURL(url string, timeout time.Duration) *HTMLSource {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &HTMLSource{url: url, client: &http.Client{Timeout: timeout}}
}

func (s *HTMLSource) ListSheets(ctx context.Context) ([]string, error) {
	doc, err := s.fetch(ctx)
	if err != nil {
		return nil, unavailable("list sheets", err)
	}
	var names []string
	for _, tab := range sheetTabs(doc) {
		names = append(names, tab.name)
	}
	return names, nil
}

func (s *HTMLSource) FetchValues(ctx context.Context, names []string) (map[string]model.Grid, error) {
	grids := make(map[string]model.Grid, len(names))
	if len(names) == 0 {
		return grids, nil
	}
	doc, err := s.fetch(ctx)
	if err != nil {
		return nil, unavailable("fetch values", err)
	}

	tables := make(map[string]*goquery.Selection)
	for _, tab := range sheetTabs(doc) {
		tables[tab.name] = tab.table
	}
	for _, name := range names {
		grid := model.Grid{}
		if table, ok := tables[name]; ok {
			grid = parseTable(table)
		}
		grids[name] = grid
	}
	return grids, nil
}

func (s *HTMLSource) fetch(ctx context.Context) (*goquery.Document, error) {
	if s.url == "" {
		return nil, errors.New("SHEET_ID is empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", s.url, err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("published view status %d for %s", resp.StatusCode, s.url)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

type sheetTab struct {
	name  string
	table *goquery.Selection
}

// sheetTabs pairs tab names from the sheet menu with their tables. Menu
// items are "sheet-button-<gid>" and each sheet lives in a viewport div whose
// id is the gid.
func sheetTabs(doc *goquery.Document) []sheetTab {
	tables := doc.Find("table.waffle")
	menu := doc.Find("#sheet-menu li")
	if menu.Length() == 0 {
		if tables.Length() == 0 {
			return nil
		}
		return []sheetTab{{name: singleSheetName, table: tables.First()}}
	}

	viewports := doc.Find("#sheets-viewport > div")
	var tabs []sheetTab
	menu.Each(func(i int, li *goquery.Selection) {
		name := strings.TrimSpace(li.Text())
		gid := strings.TrimPrefix(li.AttrOr("id", ""), "sheet-button-")

		table := viewports.FilterFunction(func(_ int, div *goquery.Selection) bool {
			return div.AttrOr("id", "") == gid
		}).Find("table.waffle").First()
		if table.Length() == 0 {
			table = tables.Eq(i)
		}
		tabs = append(tabs, sheetTab{name: name, table: table})
	})
	return tabs
}

func parseTable(table *goquery.Selection) model.Grid {
	grid := model.Grid{}
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		var row []string
		tr.ChildrenFiltered("td").Each(func(_ int, td *goquery.Selection) {
			if td.HasClass("freezebar-cell") {
				return
			}
			row = append(row, strings.TrimSpace(td.Text()))
			span, err := strconv.Atoi(td.AttrOr("colspan", "1"))
			for k := 1; err == nil && k < span; k++ {
				row = append(row, "")
			}
		})
		if row == nil {
			return
		}
		grid = append(grid, row)
	})
	return grid
}
