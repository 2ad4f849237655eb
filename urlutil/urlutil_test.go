package urlutil

import "testing"

func TestResolveLibsqlDefaultsToTLS(t *testing.T) {
	t.Parallel()

	ep, err := Resolve("libsql://db.example.com/main?authToken=secret")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ep.WS != "wss://db.example.com/main" {
		t.Fatalf("WS = %q", ep.WS)
	}
	if ep.HTTP != "https://db.example.com/main" {
		t.Fatalf("HTTP = %q", ep.HTTP)
	}
	if ep.AuthToken != "secret" {
		t.Fatalf("AuthToken = %q, want %q", ep.AuthToken, "secret")
	}
}

func TestResolveLibsqlTLSDisabled(t *testing.T) {
	t.Parallel()

	ep, err := Resolve("libsql://localhost:8080?tls=0")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ep.WS != "ws://localhost:8080" {
		t.Fatalf("WS = %q", ep.WS)
	}
	if ep.HTTP != "http://localhost:8080" {
		t.Fatalf("HTTP = %q", ep.HTTP)
	}
}

func TestResolveWSOnly(t *testing.T) {
	t.Parallel()

	ep, err := Resolve("ws://localhost:8080")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ep.WS != "ws://localhost:8080" || ep.HTTP != "" {
		t.Fatalf("unexpected endpoints: %+v", ep)
	}
}

func TestResolveHTTPOnly(t *testing.T) {
	t.Parallel()

	ep, err := Resolve("https://localhost:8080")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ep.HTTP != "https://localhost:8080" || ep.WS != "" {
		t.Fatalf("unexpected endpoints: %+v", ep)
	}
}

func TestResolveUnknownScheme(t *testing.T) {
	t.Parallel()

	if _, err := Resolve("ftp://localhost"); err == nil {
		t.Fatal("expected error for unrecognized scheme")
	}
}
