package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimitClamps(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, DefaultLimit},
		{-5, DefaultLimit},
		{10, 10},
		{MaxLimit, MaxLimit},
		{MaxLimit + 1, MaxLimit},
	}
	for _, tc := range cases {
		if got := NormalizeLimit(tc.in); got != tc.want {
			t.Errorf("NormalizeLimit(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
	if got := LimitWithBuffer(10); got != 11 {
		t.Errorf("LimitWithBuffer(10) = %d, want 11", got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{
		UploadedAt: time.Date(2026, time.March, 4, 12, 30, 0, 123456789, time.UTC),
		ID:         uuid.New(),
	}
	out, err := ParseCursor(EncodeCursor(in))
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if !out.UploadedAt.Equal(in.UploadedAt) || out.ID != in.ID {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestParseCursorEmptyMeansFirstPage(t *testing.T) {
	for _, value := range []string{"", "   "} {
		cur, err := ParseCursor(value)
		if err != nil {
			t.Fatalf("ParseCursor(%q): %v", value, err)
		}
		if cur != nil {
			t.Fatalf("ParseCursor(%q) = %+v, want nil", value, cur)
		}
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for _, value := range []string{"not-base64!!", "bm8tc2VwYXJhdG9y", "MjAyNi0wMS0wMVQwMDowMDowMFp8bm90LWEtdXVpZA=="} {
		if _, err := ParseCursor(value); err == nil {
			t.Errorf("ParseCursor(%q) should fail", value)
		}
	}
}
