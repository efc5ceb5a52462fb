package safeurl

import (
	"errors"
	"net"
	"strings"
	"testing"
)

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("esperaba *safeurl.Error, obtuvo %T (%v)", err, err)
	}
	return se.Reason
}

func TestValidate_BoundaryTable(t *testing.T) {
	t.Parallel()
	v := New()

	cases := []struct {
		url    string
		reason string // "" = safe
	}{
		{"https://10.0.0.1/x", ReasonPrivate},
		{"https://169.254.169.254/", ReasonMetadata},
		{"https://[::1]/x", ReasonLoopback},
		{"http://example.com/x", ReasonProtocol}, // modo producción
		{"https://example.com/x", ""},
		{"https://example.com/" + strings.Repeat("a", 2030), ReasonLength}, // 2049 chars
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.url[:min(40, len(tc.url))], func(t *testing.T) {
			err := v.Validate(tc.url)
			if tc.reason == "" {
				if err != nil {
					t.Fatalf("esperaba safe, obtuvo %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("esperaba unsafe(%s), obtuvo safe", tc.reason)
			}
			if got := reasonOf(t, err); got != tc.reason {
				t.Fatalf("reason: got %q want %q", got, tc.reason)
			}
		})
	}
}

func TestValidate_LengthIsExactly2048(t *testing.T) {
	t.Parallel()
	v := New()
	base := "https://example.com/"
	ok := base + strings.Repeat("a", 2048-len(base))
	if err := v.Validate(ok); err != nil {
		t.Fatalf("2048 chars debe pasar: %v", err)
	}
	if err := v.Validate(ok + "a"); err == nil {
		t.Fatal("2049 chars debe rechazarse")
	}
}

func TestValidate_EmptyAndUnparsable(t *testing.T) {
	t.Parallel()
	v := New()
	if err := v.Validate(""); err == nil {
		t.Fatal("vacío debe rechazarse")
	}
	if err := v.Validate("https://ex ample.com/"); err == nil {
		t.Fatal("URL no parseable debe rechazarse")
	}
	if err := v.Validate("ftp://example.com/file"); reasonOf(t, err) != ReasonProtocol {
		t.Fatal("scheme no permitido debe rechazarse por protocol")
	}
}

func TestValidate_DevModeAllowsHTTP(t *testing.T) {
	t.Parallel()
	v := &Validator{AllowInsecure: true}
	if err := v.Validate("http://example.com/x"); err != nil {
		t.Fatalf("dev mode debe permitir http: %v", err)
	}
	// Pero lo demás sigue aplicando.
	if err := v.Validate("http://localhost/x"); err == nil {
		t.Fatal("localhost sigue bloqueado en dev mode")
	}
}

func TestValidate_LoopbackForms(t *testing.T) {
	t.Parallel()
	v := New()
	for _, u := range []string{
		"https://localhost/x",
		"https://sub.localhost/x",
		"https://127.0.0.1/x",
		"https://127.8.8.8/x",
		"https://[::1]:8443/x",
	} {
		if err := v.Validate(u); err == nil {
			t.Fatalf("loopback no rechazado: %s", u)
		}
	}
}

func TestValidate_PrivateAndReservedLiterals(t *testing.T) {
	t.Parallel()
	v := New()
	cases := map[string]string{
		"https://10.0.0.1/":        ReasonPrivate,
		"https://172.16.5.5/":      ReasonPrivate,
		"https://192.168.1.1/":     ReasonPrivate,
		"https://0.0.0.0/":         ReasonReserved,
		"https://100.64.1.1/":      ReasonReserved, // CGNAT
		"https://192.0.2.10/":      ReasonReserved, // TEST-NET-1
		"https://198.18.0.5/":      ReasonReserved, // benchmarking
		"https://198.51.100.2/":    ReasonReserved, // TEST-NET-2
		"https://203.0.113.99/":    ReasonReserved, // TEST-NET-3
		"https://224.0.0.5/":       ReasonReserved, // multicast
		"https://240.1.2.3/":       ReasonReserved, // clase E
		"https://[fc00::1]/":       ReasonReserved, // ULA
		"https://[2001:db8::1]/":   ReasonReserved, // doc
		"https://[fe80::1]/":       ReasonMetadata, // link-local
		"https://169.254.170.2/":   ReasonMetadata,
		"https://100.100.100.200/": ReasonMetadata,
	}
	for u, want := range cases {
		err := v.Validate(u)
		if err == nil {
			t.Fatalf("no rechazado: %s", u)
		}
		if got := reasonOf(t, err); got != want {
			t.Fatalf("%s: reason got %q want %q", u, got, want)
		}
	}
}

func TestValidate_MetadataHostnames(t *testing.T) {
	t.Parallel()
	v := New()
	for _, u := range []string{
		"https://metadata.google.internal/computeMetadata/v1/",
		"https://metadata.goog/x",
	} {
		if err := v.Validate(u); reasonOf(t, err) != ReasonMetadata {
			t.Fatalf("endpoint de metadata no rechazado: %s", u)
		}
	}
	// Lista extensible por config.
	v2 := &Validator{MetadataHosts: []string{"metadata.internal.nuevo"}}
	if err := v2.Validate("https://metadata.internal.nuevo/x"); err == nil {
		t.Fatal("host de metadata agregado por config no rechazado")
	}
}

func TestValidate_TraversalAndNulInHost(t *testing.T) {
	t.Parallel()
	v := New()
	for _, u := range []string{
		"https://example.com..evil.com/",
		"https://evil%00.example.com/",
	} {
		if err := v.Validate(u); err == nil {
			t.Fatalf("host sospechoso no rechazado: %s", u)
		}
	}
}

func TestValidate_ResolverCatchesRebinding(t *testing.T) {
	t.Parallel()
	v := &Validator{
		LookupIP: func(host string) ([]net.IP, error) {
			// Simula un hostname público que ahora resuelve a RFC1918.
			return []net.IP{net.ParseIP("10.9.9.9")}, nil
		},
	}
	err := v.Validate("https://rebound.example.com/hook")
	if err == nil {
		t.Fatal("resolución privada debe rechazarse en pre-dispatch")
	}
	if got := reasonOf(t, err); got != ReasonPrivate {
		t.Fatalf("reason: got %q want %q", got, ReasonPrivate)
	}
}
