package commands

import (
	"context"
	"errors"
	"strings"
	"testing"

	apierrors "github.com/diogo/sentichat/internal/errors"
)

func TestFormatErrorMessage_Nil(t *testing.T) {
	if got := formatErrorMessage(nil, "ctx"); got != "" {
		t.Fatalf("expected empty for nil error, got %s", got)
	}
}

func TestFormatErrorMessage_APIError(t *testing.T) {
	e := apierrors.NewAPIErrorWithBody(500, "https://hook.example", "server error", "detailed body")
	out := formatErrorMessage(e, "Request failed")

	for _, want := range []string{"Request failed", "HTTP Status: 500", "Endpoint: https://hook.example", "detailed body"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in message, got: %s", want, out)
		}
	}
	if strings.Contains(out, "Hint") {
		t.Errorf("a response body should replace the hint, got: %s", out)
	}
}

func TestFormatErrorMessage_Hints(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "network",
			err:  apierrors.NewNetworkErrorWithEndpoint("send", "https://hook.example", errors.New("connection refused")),
			want: "Check your connection",
		},
		{
			name: "timeout",
			err:  apierrors.NewTimeoutError(context.DeadlineExceeded.Error()),
			want: "--timeout",
		},
		{
			name: "status without body",
			err:  apierrors.NewAPIError(404, "https://hook.example", "not found"),
			want: "webhook rejected the request",
		},
		{
			name: "no endpoint",
			err:  apierrors.ErrNoEndpoint,
			want: "config set endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := formatErrorMessage(tt.err, "Failed")
			if !strings.Contains(out, tt.want) {
				t.Errorf("expected hint %q, got: %s", tt.want, out)
			}
		})
	}
}
