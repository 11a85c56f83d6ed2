package utils

import "testing"

func TestNormalizeHost(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"example.com", "example.com", false},
		{"Example.COM", "example.com", false},
		{" example.com. ", "example.com", false},
		{"www.example.com", "example.com", false},
		{"www.sub.example.com", "sub.example.com", false},
		// the "www" label is the site itself here, not a prefix
		{"www.com", "www.com", false},
		{"bücher.example", "xn--bcher-kva.example", false},
		{"", "", true},
		{"exa mple.com", "", true},
		{"example.com/path", "", true},
		{"user@example.com", "", true},
	}
	for _, tc := range cases {
		got, err := NormalizeHost(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NormalizeHost(%q) expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeHost(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeHost(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestHostFromURL(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://www.example.com/watch?v=abc", "example.com", false},
		{"http://sub.example.com:8080/", "sub.example.com", false},
		{"example.com", "example.com", false},
		{"https://", "", true},
	}
	for _, tc := range cases {
		got, err := HostFromURL(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("HostFromURL(%q) expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("HostFromURL(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("HostFromURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestGetApexDomain(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"example.com", "example.com"},
		{"deep.sub.example.com", "example.com"},
		{"example.co.uk", "example.co.uk"},
		{"sub.example.co.uk", "example.co.uk"},
		{"localhost", "localhost"}, // fallback when the suffix list cannot resolve
	}
	for _, tc := range cases {
		if got := GetApexDomain(tc.in); got != tc.want {
			t.Errorf("GetApexDomain(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
