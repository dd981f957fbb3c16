package main

import "testing"

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:5000":     true,
		"10.0.0.2:5000":  false,
		"localhost:80":   false,
		"garbage":        false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v want %v", in, got, want)
		}
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("ORE_TEST_FLAG", "")
	if !envBool("ORE_TEST_FLAG", true) {
		t.Fatalf("empty should fall back to default")
	}
	t.Setenv("ORE_TEST_FLAG", "false")
	if envBool("ORE_TEST_FLAG", true) {
		t.Fatalf("explicit false ignored")
	}
	t.Setenv("ORE_TEST_FLAG", "nope")
	if envBool("ORE_TEST_FLAG", false) {
		t.Fatalf("invalid value should fall back to default")
	}
}
