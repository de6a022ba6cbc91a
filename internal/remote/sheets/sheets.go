// Package sheets implements the remote store ports on the Google Sheets
// API, the production backend for the shared tabular store.
package sheets

import (
	"context"
	"fmt"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/rldls/doorlog/internal/errors"
)

// Store talks to one spreadsheet. All failures past construction are
// transient by classification: the store offers no way to distinguish a
// flaky network from a down API, and both are retried the same way.
type Store struct {
	svc           *sheetsapi.Service
	spreadsheetID string
}

// New authenticates with a service-account credentials JSON blob.
func New(ctx context.Context, credentialsJSON, spreadsheetID string) (*Store, error) {
	if credentialsJSON == "" || spreadsheetID == "" {
		return nil, errors.New(errors.ErrConfiguration, "sheets backend needs credentials and a spreadsheet id")
	}

	creds, err := google.CredentialsFromJSON(ctx, []byte(credentialsJSON), sheetsapi.SpreadsheetsScope)
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfiguration, "invalid Google credentials", err)
	}

	svc, err := sheetsapi.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfiguration, "failed to build sheets client", err)
	}

	return &Store{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// Read returns the populated rows of a range as text cells.
func (s *Store) Read(ctx context.Context, rng string) ([][]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, errors.Wrap(errors.ErrTransientRemote, fmt.Sprintf("read %s failed", rng), err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, 0, len(raw))
		for _, c := range raw {
			row = append(row, fmt.Sprintf("%v", c))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Append adds a row after the last populated row of the range.
func (s *Store) Append(ctx context.Context, rng string, row []string) error {
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, valueRange(row)).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return errors.Wrap(errors.ErrTransientRemote, fmt.Sprintf("append to %s failed", rng), err)
	}
	return nil
}

// Update overwrites the cells of a bounded range.
func (s *Store) Update(ctx context.Context, rng string, values [][]string) error {
	vr := &sheetsapi.ValueRange{}
	for _, row := range values {
		vr.Values = append(vr.Values, cells(row))
	}

	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return errors.Wrap(errors.ErrTransientRemote, fmt.Sprintf("update %s failed", rng), err)
	}
	return nil
}

func valueRange(row []string) *sheetsapi.ValueRange {
	return &sheetsapi.ValueRange{Values: [][]interface{}{cells(row)}}
}

func cells(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, c := range row {
		out[i] = c
	}
	return out
}
