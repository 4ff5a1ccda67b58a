package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/use-agent/agentweb/apperr"
)

func TestCategorizeNavError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"deadline", context.DeadlineExceeded, apperr.Timeout},
		{"canceled", context.Canceled, apperr.Cancelled},
		{"other", errors.New("boom"), apperr.BrowserNavigation},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := categorizeNavError(c.err)
			if got.Kind != c.want {
				t.Errorf("categorizeNavError(%v).Kind = %v, want %v", c.err, got.Kind, c.want)
			}
		})
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	if o.WaitUntil != "networkidle" {
		t.Errorf("WaitUntil default = %q", o.WaitUntil)
	}
	if o.Timeout != defaultTimeout {
		t.Errorf("Timeout default = %v", o.Timeout)
	}
}
