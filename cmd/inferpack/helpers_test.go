// SPDX-License-Identifier: MPL-2.0

package cmd

import "testing"

func TestDialHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		host string
		want string
	}{
		{host: "0.0.0.0", want: "127.0.0.1"},
		{host: "::", want: "127.0.0.1"},
		{host: "", want: "127.0.0.1"},
		{host: "127.0.0.1", want: "127.0.0.1"},
		{host: "inference.internal", want: "inference.internal"},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			t.Parallel()
			if got := dialHost(tt.host); got != tt.want {
				t.Errorf("dialHost(%q) = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}

func TestShortKey(t *testing.T) {
	t.Parallel()

	if got := shortKey("0123456789abcdef"); got != "0123456789ab" {
		t.Errorf("shortKey() = %q", got)
	}
	if got := shortKey("abc"); got != "abc" {
		t.Errorf("shortKey() = %q", got)
	}
}
