package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"catalogsync/internal/model"
)

const defaultCallTimeout = 30 * time.Second

// GoogleSource reads a spreadsheet through the Sheets API v4.
type GoogleSource struct {
	svc         *sheetsapi.Service
	initErr     error
	sheetID     string
	callTimeout time.Duration
}

type GoogleOption func(*GoogleSource)

// WithCallTimeout bounds every API request.
func WithCallTimeout(d time.Duration) GoogleOption {
	return func(s *GoogleSource) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// NewGoogleSource never fails: a missing key, missing document id or client
// construction error is reported as ErrSourceUnavailable on first use.
// clientOpts are appended after the API key, so tests can override transport
// and endpoint.
func NewGoogleSource(ctx context.Context, apiKey, sheetID string, clientOpts []option.ClientOption, opts ...GoogleOption) *GoogleSource {
	s := &GoogleSource{sheetID: sheetID, callTimeout: defaultCallTimeout}
	for _, opt := range opts {
		opt(s)
	}

	switch {
	case sheetID == "":
		s.initErr = errors.New("SHEET_ID is empty")
	case apiKey == "" && len(clientOpts) == 0:
		s.initErr = errors.New("GOOGLE_API_KEY is empty")
	default:
		all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, clientOpts...)
		s.svc, s.initErr = sheetsapi.NewService(ctx, all...)
	}
	return s
}

func (s *GoogleSource) ListSheets(ctx context.Context) ([]string, error) {
	if s.initErr != nil {
		return nil, unavailable("list sheets", s.initErr)
	}
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	doc, err := s.svc.Spreadsheets.Get(s.sheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, unavailable("list sheets", err)
	}

	names := make([]string, 0, len(doc.Sheets))
	for _, sh := range doc.Sheets {
		if sh.Properties == nil {
			continue
		}
		names = append(names, sh.Properties.Title)
	}
	return names, nil
}

func (s *GoogleSource) FetchValues(ctx context.Context, names []string) (map[string]model.Grid, error) {
	if s.initErr != nil {
		return nil, unavailable("fetch values", s.initErr)
	}
	grids := make(map[string]model.Grid, len(names))
	if len(names) == 0 {
		return grids, nil
	}

	ranges := make([]string, len(names))
	for i, name := range names {
		ranges[i] = quoteRange(name)
	}

	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	resp, err := s.svc.Spreadsheets.Values.BatchGet(s.sheetID).
		Ranges(ranges...).
		MajorDimension("ROWS").
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, unavailable("fetch values", err)
	}

	// value ranges come back in request order
	for i, name := range names {
		grid := model.Grid{}
		if i < len(resp.ValueRanges) && resp.ValueRanges[i] != nil {
			grid = toGrid(resp.ValueRanges[i].Values)
		}
		grids[name] = grid
	}
	return grids, nil
}

// quoteRange turns a sheet title into an A1 range covering the whole sheet.
func quoteRange(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func toGrid(values [][]interface{}) model.Grid {
	grid := make(model.Grid, len(values))
	for r, row := range values {
		cells := make([]string, len(row))
		for c, v := range row {
			if v == nil {
				continue
			}
			if s, ok := v.(string); ok {
				cells[c] = s
				continue
			}
			cells[c] = fmt.Sprint(v)
		}
		grid[r] = cells
	}
	return grid
}
