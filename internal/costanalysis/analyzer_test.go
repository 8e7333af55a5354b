package costanalysis

import (
	"testing"
	"time"
)

func TestTrailingMonthSpansPreviousCalendarMonth(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	start, end := trailingMonth(now)
	if start != "2026-02-01" {
		t.Fatalf("expected start of trailing month 2026-02-01, got %s", start)
	}
	if end != "2026-03-01" {
		t.Fatalf("expected end of trailing month 2026-03-01, got %s", end)
	}
}

func TestTrailingMonthHandlesJanuaryYearRollover(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	start, end := trailingMonth(now)
	if start != "2025-12-01" || end != "2026-01-01" {
		t.Fatalf("expected 2025-12-01..2026-01-01, got %s..%s", start, end)
	}
}

func TestParseAmount(t *testing.T) {
	got, err := parseAmount("1234.56")
	if err != nil {
		t.Fatalf("parseAmount failed: %v", err)
	}
	if got != 1234.56 {
		t.Fatalf("expected 1234.56, got %v", got)
	}
}

func TestParseAmountRejectsGarbage(t *testing.T) {
	if _, err := parseAmount("not-a-number"); err == nil {
		t.Fatalf("expected an error for a non-numeric amount")
	}
}
