package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCompile(t *testing.T) {
	okBefore := testutil.ToFloat64(FilterCompilations.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(FilterCompilations.WithLabelValues("error"))

	ObserveCompile(3, nil)
	ObserveCompile(0, errors.New("boom"))

	if got := testutil.ToFloat64(FilterCompilations.WithLabelValues("ok")); got != okBefore+1 {
		t.Fatalf("ok compilations = %v, want %v", got, okBefore+1)
	}
	if got := testutil.ToFloat64(FilterCompilations.WithLabelValues("error")); got != errBefore+1 {
		t.Fatalf("error compilations = %v, want %v", got, errBefore+1)
	}
}
