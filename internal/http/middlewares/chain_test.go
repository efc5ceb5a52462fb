package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChain_OrderIsLeftToRight(t *testing.T) {
	t.Parallel()

	var trace []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				trace = append(trace, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trace = append(trace, "handler")
	})

	chained := Chain(h, tag("a"), tag("b"), tag("c"))
	chained.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	want := []string{"a", "b", "c", "handler"}
	if len(trace) != len(want) {
		t.Fatalf("trace: %v", trace)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("orden: got %v want %v", trace, want)
		}
	}
}
