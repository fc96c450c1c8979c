package redis

import "testing"

func TestCollectEventsChannelRoundTrip(t *testing.T) {
	t.Parallel()

	// The subscriber must recover the item ID from any channel name the
	// publisher builds
	cases := []struct {
		itemID int64
		want   string
	}{
		{42, "42"},
		{1, "1"},
		{9007199254740993, "9007199254740993"},
	}
	for _, tc := range cases {
		channel := collectEventsChannel(tc.itemID)
		if got := extractItemIDFromChannel(channel); got != tc.want {
			t.Errorf("extractItemIDFromChannel(%q) = %q, want %q", channel, got, tc.want)
		}
	}
}

func TestExtractItemIDFromChannel_Malformed(t *testing.T) {
	t.Parallel()

	for _, channel := range []string{"", "collect_events:"} {
		if got := extractItemIDFromChannel(channel); got != "" {
			t.Errorf("extractItemIDFromChannel(%q) = %q, want empty", channel, got)
		}
	}
}
