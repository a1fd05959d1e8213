// Package sheets imports raw OCR token dumps from a Google Sheet for batch
// re-processing. It repurposes the teacher's spreadsheet-import plumbing
// (URL parsing, OAuth-token or service-account client construction, ranged
// Values.Get fetch) for a different payload: instead of spec rows, each
// sheet row is one OCR token's geometry.
package sheets

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/yourorg/labreport-extract/internal/token"
)

var sheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9\-_]+)`)
var gidPattern = regexp.MustCompile(`gid=(\d+)`)

// ParseSheetURL extracts the sheet ID and (if present) the gid from a Google
// Sheets URL. Mirrors gsheetutils.ParseGoogleSheetURL.
func ParseSheetURL(rawURL string) (sheetID, gid string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", false
	}
	host := strings.ToLower(u.Host)
	if host != "docs.google.com" && host != "spreadsheets.google.com" {
		return "", "", false
	}
	matches := sheetIDPattern.FindStringSubmatch(u.Path)
	if len(matches) < 2 {
		return "", "", false
	}
	sheetID = matches[1]
	if u.Fragment != "" {
		if m := gidPattern.FindStringSubmatch(u.Fragment); len(m) >= 2 {
			gid = m[1]
		}
	}
	if gid == "" {
		gid = u.Query().Get("gid")
	}
	return sheetID, gid, true
}

// NewServiceWithAccessToken builds a Sheets service from a bearer token, for
// callers that already hold a user OAuth token (same pattern as the
// teacher's getSheetsServiceWithToken, generalized away from its gin
// handler).
func NewServiceWithAccessToken(ctx context.Context, accessToken string) (*sheets.Service, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	return sheets.NewService(ctx, option.WithHTTPClient(client))
}

// NewServiceWithCredentialsFile builds a Sheets service from a service
// account credentials file, for unattended batch jobs.
func NewServiceWithCredentialsFile(ctx context.Context, credsPath string) (*sheets.Service, error) {
	return sheets.NewService(ctx,
		option.WithCredentialsFile(credsPath),
		option.WithScopes(sheets.SpreadsheetsReadonlyScope),
	)
}

// tokenRowColumns is the fixed column layout each imported row must follow:
// text, x_left, x_right, y_top, y_bottom, confidence (confidence may be
// blank, meaning absent per spec §3.1).
const tokenRowColumns = 6

// FetchTokens reads sheetRange from sheetID (e.g. "Sheet1!A2:F") and decodes
// each row into a token.Token. Rows with fewer than tokenRowColumns cells, or
// non-numeric geometry, are skipped rather than aborting the whole import —
// a single malformed OCR dump row should not sink the batch.
func FetchTokens(service *sheets.Service, sheetID, sheetRange string) ([]token.Token, error) {
	resp, err := service.Spreadsheets.Values.Get(sheetID, sheetRange).Do()
	if err != nil {
		return nil, fmt.Errorf("fetch sheet values: %w", err)
	}

	tokens := make([]token.Token, 0, len(resp.Values))
	for _, row := range resp.Values {
		tok, ok := parseTokenRow(row)
		if !ok {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

func parseTokenRow(row []interface{}) (token.Token, bool) {
	if len(row) < tokenRowColumns {
		return token.Token{}, false
	}
	text := fmt.Sprintf("%v", row[0])
	xLeft, ok1 := parseIntCell(row[1])
	xRight, ok2 := parseIntCell(row[2])
	yTop, ok3 := parseIntCell(row[3])
	yBottom, ok4 := parseIntCell(row[4])
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return token.Token{}, false
	}

	tok := token.Token{
		Text:      text,
		XLeft:     xLeft,
		XRight:    xRight,
		YTop:      yTop,
		YBottom:   yBottom,
		YCenter:   (yTop + yBottom) / 2,
		LineIndex: -1,
		Origin:    token.OriginOCR,
	}

	if confStr := strings.TrimSpace(fmt.Sprintf("%v", row[5])); confStr != "" {
		if conf, err := strconv.ParseFloat(confStr, 64); err == nil {
			tok.Confidence = &conf
		}
	}
	return tok, true
}

func parseIntCell(v interface{}) (int, bool) {
	s := strings.TrimSpace(fmt.Sprintf("%v", v))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}
