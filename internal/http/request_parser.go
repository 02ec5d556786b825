// Package http provides the JSON API server and its handlers.
//
// This file implements parsing and validation of request data.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"blocks/internal/core"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 16

// decodeJSON decodes a single JSON object from the request body, rejecting
// unknown fields and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("invalid JSON body: trailing data")
	}
	return nil
}

// parseCategoryID reads a positive category id from a path value.
func parseCategoryID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.PathValue(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid category id %q", raw)
	}
	return id, nil
}

// parseCategoryFilter reads the optional category_id query parameter.
func parseCategoryFilter(r *http.Request) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("category_id"))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid category_id %q", raw)
	}
	return &id, nil
}

// decimalString accepts a JSON string or number and keeps its literal text
// so amounts never pass through a float.
type decimalString string

func (d *decimalString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*d = decimalString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a string or number")
	}
	*d = decimalString(n.String())
	return nil
}

type transactionRequest struct {
	TransactionID string        `json:"id"`
	Name          string        `json:"name"`
	Amount        decimalString `json:"amount"`
	Date          string        `json:"date"`
	CategoryID    *int64        `json:"category_id"`
}

// toTransaction converts and validates a create request.
func (req transactionRequest) toTransaction() (core.Transaction, error) {
	amount, err := core.ParseCents(strings.TrimSpace(string(req.Amount)))
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := core.ParseFeedDate(strings.TrimSpace(req.Date))
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		TransactionID: sanitizeInput(req.TransactionID),
		Name:          sanitizeInput(req.Name),
		Amount:        amount,
		Date:          date,
		CategoryID:    req.CategoryID,
	}, nil
}

type budgetRequest struct {
	Budget decimalString `json:"budget"`
}

func (req budgetRequest) toMoney() (core.Money, error) {
	return core.ParseCents(strings.TrimSpace(string(req.Budget)))
}

// sanitizeInput removes control characters except tab, newline and carriage
// return and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
