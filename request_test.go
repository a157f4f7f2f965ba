package refreshkit

import "testing"

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want Kind
	}{
		{"valid", Request{Method: "GET", Path: "/x"}, ""},
		{"empty method", Request{Path: "/x"}, KindInvalidRequest},
		{"empty path", Request{Method: "GET"}, KindInvalidRequest},
		{"bad header key", Request{Method: "GET", Path: "/x",
			Header: map[string]string{"bad key": "v"}}, KindValidation},
		{"signed without auth", Request{Method: "GET", Path: "/x", Signed: true}, KindValidation},
		{"signed with auth", Request{Method: "GET", Path: "/x", Signed: true,
			Header: map[string]string{"Authorization": "Bearer t"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("validate() = %v, want nil", err)
				}
				return
			}
			if KindOf(err) != tt.want {
				t.Errorf("Kind = %q, want %q", KindOf(err), tt.want)
			}
		})
	}
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		path    string
		want    string
		wantErr bool
	}{
		{"relative against base", "https://api.example.com", "/v1/items", "https://api.example.com/v1/items", false},
		{"absolute bypasses base", "https://api.example.com", "https://other.example.com/x", "https://other.example.com/x", false},
		{"relative without base", "", "/v1/items", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveURL(tt.base, tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("resolveURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEndpointKey(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://api.example.com/v1/items?page=2", "api.example.com/v1/items"},
		{"https://api.example.com", "api.example.com/"},
		{"://broken", "unknown"},
	}
	for _, tt := range tests {
		if got := endpointKey(tt.url); got != tt.want {
			t.Errorf("endpointKey(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestPriorityString(t *testing.T) {
	tests := []struct {
		p    Priority
		want string
	}{
		{PriorityLow, "low"},
		{PriorityNormal, "normal"},
		{PriorityHigh, "high"},
		{PriorityCritical, "critical"},
		{Priority(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", tt.p, got, tt.want)
		}
	}
}
