package core

import (
	"strings"
	"testing"
	"time"
)

func TestParseFeedDate(t *testing.T) {
	cases := []struct {
		in   string
		want Date
		ok   bool
	}{
		{"2019-11-04", NewDate(2019, 11, 4), true},
		{"2024-02-29", NewDate(2024, 2, 29), true},
		{" 2020-01-01 ", NewDate(2020, 1, 1), true},
		{"2023-02-29", Date{}, false},
		{"04/11/2019", Date{}, false},
		{"2019-11-04T10:00:00Z", Date{}, false},
		{"", Date{}, false},
	}
	for _, tc := range cases {
		got, err := ParseFeedDate(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(tc.want.Time) {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.want, got, err)
			}
			if got.Location() != time.UTC {
				t.Fatalf("%q expected UTC, got %v", tc.in, got.Location())
			}
		} else if err != ErrInvalidDate {
			t.Fatalf("%q expected ErrInvalidDate, got %v", tc.in, err)
		}
	}
}

func TestDateText(t *testing.T) {
	d := NewDate(2021, 3, 7)
	b, err := d.MarshalText()
	if err != nil || string(b) != "2021-03-07" {
		t.Fatalf("unexpected marshal %q (err=%v)", b, err)
	}
	var back Date
	if err := back.UnmarshalText(b); err != nil || !back.Equal(d.Time) {
		t.Fatalf("unexpected unmarshal %v (err=%v)", back, err)
	}
	if err := back.UnmarshalText([]byte("nope")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDateValidate(t *testing.T) {
	if err := NewDate(2025, 1, 1).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Date{}).Validate(); err == nil {
		t.Fatalf("expected error for zero date")
	}
}

func TestCategoryValidate(t *testing.T) {
	cases := []struct {
		c  Category
		ok bool
	}{
		{Category{CategoryID: 1, Name: "Food"}, true},
		{Category{CategoryID: 0, Name: "Food"}, false},
		{Category{CategoryID: 2, Name: "  "}, false},
		{Category{CategoryID: 3, Name: strings.Repeat("x", 201)}, false},
	}
	for i, tc := range cases {
		err := tc.c.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		TransactionID: "42",
		Name:          "Coffee",
		Amount:        Money{Cents: 350},
		Date:          NewDate(2025, 1, 1),
		CategoryID:    CategoryRef(7),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{TransactionID: "", Name: "a", Date: NewDate(2025, 1, 1)},
		{TransactionID: "1", Name: "", Date: NewDate(2025, 1, 1)},
		{TransactionID: "1", Name: "a"},
		{TransactionID: "1", Name: "a", Date: NewDate(2025, 1, 1), CategoryID: CategoryRef(0)},
	}
	for i, b := range bads {
		if err := b.Validate(); err == nil {
			t.Fatalf("bad case %d expected error", i)
		}
	}
}

func TestTransactionLinkedTo(t *testing.T) {
	tx := Transaction{CategoryID: CategoryRef(3)}
	if !tx.LinkedTo(3) || tx.LinkedTo(4) {
		t.Fatalf("unexpected LinkedTo result")
	}
	if (Transaction{}).LinkedTo(3) {
		t.Fatalf("unlinked transaction should not match")
	}
}
