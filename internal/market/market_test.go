package market

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFlexTimeSeconds(t *testing.T) {
	var ft FlexTime
	if err := json.Unmarshal([]byte(`1717171717`), &ft); err != nil {
		t.Fatalf("unmarshal seconds: %v", err)
	}
	if ft.Millis() != 1717171717000 {
		t.Fatalf("expected ms conversion, got %d", ft.Millis())
	}
}

func TestFlexTimeRFC3339(t *testing.T) {
	var ft FlexTime
	if err := json.Unmarshal([]byte(`"2024-05-31T12:00:00Z"`), &ft); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	want := time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC).UnixMilli()
	if ft.Millis() != want {
		t.Fatalf("expected %d, got %d", want, ft.Millis())
	}
}

func TestFlexTimeInvalid(t *testing.T) {
	for _, raw := range []string{`"not-a-time"`, `0`, `-5`, `{"x":1}`} {
		var ft FlexTime
		_ = json.Unmarshal([]byte(raw), &ft)
		if ft.Millis() != 0 {
			t.Fatalf("%s should normalise to zero, got %d", raw, ft.Millis())
		}
	}
}

func TestBucketHour(t *testing.T) {
	ts := int64(1717171717123)
	b := BucketHour(ts)
	if b%HourMs != 0 {
		t.Fatalf("bucket %d not hour aligned", b)
	}
	if b > ts || ts-b >= HourMs {
		t.Fatalf("bucket %d not the floor of %d", b, ts)
	}
}

func TestParseTimeframe(t *testing.T) {
	if tf, err := ParseTimeframe(""); err != nil || tf != Timeframe24h {
		t.Fatalf("empty timeframe should default to 24h, got %q err %v", tf, err)
	}
	if _, err := ParseTimeframe("2h"); err == nil {
		t.Fatal("unknown timeframe should error")
	}
	count, step := Timeframe7d.SyntheticShape()
	if count != 168 || step != time.Hour {
		t.Fatalf("7d shape: got %d points every %s", count, step)
	}
}

func TestValidAddress(t *testing.T) {
	if !ValidAddress("0x1bc80ba8ca1be52afd3c58e9998968b9a1bc80ba") {
		t.Fatal("well-formed address rejected")
	}
	for _, bad := range []string{"", "0x123", "1bc80ba8ca1be52afd3c58e9998968b9a1bc80ba", "0xZZc80ba8ca1be52afd3c58e9998968b9a1bc80ba"} {
		if ValidAddress(bad) {
			t.Fatalf("%q should be rejected", bad)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[string]string{
		"12.3456":           "12.35",
		"1500":              "1.5K",
		"2500000":           "2.5M",
		"7100000000":        "7.1B",
		"1200000000000":     "1.2T",
		"34000000000000000": "3.4Q",
		"garbage":           "garbage",
	}
	for in, want := range cases {
		if got := FormatAmount(in); got != want {
			t.Fatalf("FormatAmount(%q) = %q, want %q", in, got, want)
		}
	}
}
