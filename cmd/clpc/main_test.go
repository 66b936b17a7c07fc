package main

import (
	"testing"

	"github.com/zboralski/clpc/internal/build"
)

func TestParsePlatform(t *testing.T) {
	cases := map[string]build.Platform{
		"":           build.Emulator,
		"emulator":   build.Emulator,
		"Emulator":   build.Emulator,
		"cafeloader": build.CafeLoader,
		"CafeLoader": build.CafeLoader,
		"cfl":        build.CafeLoader,
	}
	for in, want := range cases {
		got, err := parsePlatform(in)
		if err != nil {
			t.Errorf("parsePlatform(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("parsePlatform(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParsePlatformRejectsUnknown(t *testing.T) {
	if _, err := parsePlatform("wiiu"); err == nil {
		t.Error("expected error for unknown platform string")
	}
}
