package listen

import (
	"testing"
	"time"
)

func TestNewRejectsZeroDate(t *testing.T) {
	_, err := New(time.Time{}, "Artist", "Track")
	if err != ErrDateWithoutTimezone {
		t.Fatalf("expected ErrDateWithoutTimezone, got %v", err)
	}
}

func TestNewAcceptsRealDate(t *testing.T) {
	now := time.Now()
	l, err := New(now, "Artist", "Track", WithLength(200))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.ArtistName() != "Artist" || l.TrackTitle() != "Track" {
		t.Errorf("fields not set correctly: %+v", l)
	}
	n, ok := l.Length()
	if !ok || n != 200 {
		t.Errorf("expected length 200, got %d (ok=%v)", n, ok)
	}
}

func TestRequiredPlayTime(t *testing.T) {
	tests := []struct {
		length int
		want   int
	}{
		{111, 56},
		{500, 240},
		{480, 240},
		{481, 240},
		{30, 15},
		{60, 30},
	}
	now := time.Now()
	for _, tt := range tests {
		l, err := New(now, "Artist", "Track", WithLength(tt.length))
		if err != nil {
			t.Fatal(err)
		}
		if got := l.RequiredPlayTime(); got != tt.want {
			t.Errorf("length=%d: RequiredPlayTime() = %d, want %d", tt.length, got, tt.want)
		}
	}
}

func TestEligibleForScrobblingBoundaries(t *testing.T) {
	now := time.Now()

	l30, _ := New(now, "Artist", "Track", WithLength(30))
	if !l30.EligibleForScrobbling(nil) {
		t.Error("length=30 should be eligible")
	}

	l29, _ := New(now, "Artist", "Track", WithLength(29))
	if l29.EligibleForScrobbling(nil) {
		t.Error("length=29 should not be eligible")
	}
}

func TestEligibleForScrobblingWithReference(t *testing.T) {
	d1 := time.Date(2019, 2, 26, 11, 26, 38, 0, time.UTC)
	d2 := d1.Add(7 * time.Second)
	d3 := d2.Add(4*time.Minute + 28*time.Second)

	l1, _ := New(d1, "Artist1", "Track1", WithLength(210))
	l2, _ := New(d2, "Artist2", "Track2", WithLength(240))
	l3, _ := New(d3, "Artist3", "Track3", WithLength(268))

	if l1.EligibleForScrobbling(&d2) {
		t.Error("l1 should not be eligible against d2 (too little elapsed time)")
	}
	if !l2.EligibleForScrobbling(&d3) {
		t.Error("l2 should be eligible against d3")
	}
	if !l3.EligibleForScrobbling(nil) {
		t.Error("l3 should be eligible with no reference")
	}
}

func TestEligibleForScrobblingUnknownLength(t *testing.T) {
	l, _ := New(time.Now(), "Artist", "Track")
	if !l.EligibleForScrobbling(nil) {
		t.Error("unknown length should default to eligible")
	}
}

func TestNowPlayingParams(t *testing.T) {
	now := time.Now()
	l, _ := New(now, "Artist", "Track", WithAlbum("Album"))
	params := l.NowPlayingParams()

	if params.Get("a") != "Artist" || params.Get("t") != "Track" {
		t.Errorf("unexpected params: %+v", params)
	}
	if params.Get("b") != "Album" {
		t.Errorf("expected album 'Album', got %q", params.Get("b"))
	}
	if params.Get("l") != "" {
		t.Errorf("expected empty length for nowplaying, got %q", params.Get("l"))
	}
	if params.Get("n") != "" || params.Get("m") != "" {
		t.Errorf("expected empty optional fields, got n=%q m=%q", params.Get("n"), params.Get("m"))
	}
}

func TestScrobbleParamsRendersIndexAndDefaults(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l, _ := New(now, "Artist", "Track")
	params := l.ScrobbleParams(3)

	if params.Get("a[3]") != "Artist" || params.Get("t[3]") != "Track" {
		t.Errorf("unexpected indexed params: %+v", params)
	}
	if params.Get("i[3]") != "1704067200" {
		t.Errorf("expected unix timestamp, got %q", params.Get("i[3]"))
	}
	if params.Get("o[3]") != DefaultSource {
		t.Errorf("expected default source %q, got %q", DefaultSource, params.Get("o[3]"))
	}
	if params.Get("l[3]") != "0" {
		t.Errorf("expected length '0' when absent, got %q", params.Get("l[3]"))
	}
	if params.Get("r[3]") != "" {
		t.Errorf("expected empty rating, got %q", params.Get("r[3]"))
	}
}

func TestScrobbleParamsWithAllOptionalFields(t *testing.T) {
	now := time.Now()
	l, _ := New(now, "Artist", "Track",
		WithAlbum("Album"),
		WithLength(123),
		WithTrackNumber(4),
		WithMBTrackID("abc-123"),
		WithSource("L"),
		WithRating("L"),
	)
	params := l.ScrobbleParams(0)

	if params.Get("l[0]") != "123" {
		t.Errorf("expected length 123, got %q", params.Get("l[0]"))
	}
	if params.Get("b[0]") != "Album" {
		t.Errorf("expected album, got %q", params.Get("b[0]"))
	}
	if params.Get("n[0]") != "4" {
		t.Errorf("expected tracknumber 4, got %q", params.Get("n[0]"))
	}
	if params.Get("m[0]") != "abc-123" {
		t.Errorf("expected mbid, got %q", params.Get("m[0]"))
	}
	if params.Get("o[0]") != "L" {
		t.Errorf("expected source L, got %q", params.Get("o[0]"))
	}
	if params.Get("r[0]") != "L" {
		t.Errorf("expected rating L, got %q", params.Get("r[0]"))
	}
}
