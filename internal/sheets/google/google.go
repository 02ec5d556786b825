// Package google writes budget reports to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"blocks/internal/core"
	ports "blocks/internal/sheets"
)

const defaultReportSheet = "Budget"

// Config selects the spreadsheet and how to authenticate.
type Config struct {
	SpreadsheetID string
	SheetName     string

	// ServiceAccountJSON or ServiceAccountFile hold service account
	// credentials. GOOGLE_APPLICATION_CREDENTIALS is used when both are empty.
	ServiceAccountJSON string
	ServiceAccountFile string

	// OAuth user credentials take precedence over the service account when
	// a client is set. The token is created with blocks-oauth-init.
	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenJSON  string
	OAuthTokenFile  string

	// Endpoint and HTTPClient override the API location and transport.
	Endpoint   string
	HTTPClient *http.Client
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ ports.ReportWriter = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Optional: GOOGLE_REPORT_SHEET_NAME (default "Budget"),
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE,
// GOOGLE_OAUTH_CLIENT_JSON, GOOGLE_OAUTH_CLIENT_FILE,
// GOOGLE_OAUTH_TOKEN_JSON, GOOGLE_OAUTH_TOKEN_FILE.
func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, Config{
		SpreadsheetID:      os.Getenv("GOOGLE_SPREADSHEET_ID"),
		SheetName:          os.Getenv("GOOGLE_REPORT_SHEET_NAME"),
		ServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		ServiceAccountFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
		OAuthClientJSON:    os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"),
		OAuthClientFile:    os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"),
		OAuthTokenJSON:     os.Getenv("GOOGLE_OAUTH_TOKEN_JSON"),
		OAuthTokenFile:     os.Getenv("GOOGLE_OAUTH_TOKEN_FILE"),
	})
}

// New creates a Sheets client from cfg.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = defaultReportSheet
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// newSheetsService initializes a Sheets Service. A supplied HTTP client wins,
// then OAuth user credentials, then a service account.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	var opts []goption.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, goption.WithEndpoint(cfg.Endpoint))
	}

	switch {
	case cfg.HTTPClient != nil:
		opts = append(opts, goption.WithHTTPClient(cfg.HTTPClient))
	case cfg.usesOAuth():
		client, err := oauthHTTPClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, goption.WithHTTPClient(client))
	default:
		credentialsJSON, err := loadCredentials(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}

	service, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

func loadCredentials(cfg Config) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// WriteOverview replaces the report sheet with the given overview.
func (c *Client) WriteOverview(ctx context.Context, overview core.BudgetOverview) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	clearRange := fmt.Sprintf("%s!A:E", c.sheetName)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", clearRange, err)
	}

	rows := ports.ReportRows(overview)
	ref := fmt.Sprintf("%s!A1:E%d", c.sheetName, len(rows))
	vr := &gsheet.ValueRange{Values: rows}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, ref, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("update %s: %w", ref, err)
	}

	slog.InfoContext(ctx, "Budget report written to Google Sheets",
		"sheets_ref", ref,
		"categories", len(overview.Categories))
	return ref, nil
}
