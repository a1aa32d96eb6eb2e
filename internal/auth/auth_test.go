package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bctelemetry/bctb/internal/config"
)

func testProfile() *config.Profile {
	return &config.Profile{
		Name: "test",
		ProfileConfig: config.ProfileConfig{
			TenantID:     "tenant-1",
			ClientID:     "client-1",
			ClientSecret: "secret-1",
		},
	}
}

func TestToken_StaticTokenWins(t *testing.T) {
	t.Setenv("BCTB_ACCESS_TOKEN", "static-token-value")

	p := New(testProfile(), WithTokenURL("http://127.0.0.1:1")) // endpoint must not be hit
	tok, err := p.Token(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if tok != "static-token-value" {
		t.Errorf("token = %q", tok)
	}
	if p.Method() != "static-token" {
		t.Errorf("method = %q", p.Method())
	}
}

func TestToken_ClientCredentials(t *testing.T) {
	os.Unsetenv("BCTB_ACCESS_TOKEN")

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		body, _ := io.ReadAll(r.Body)
		if got := string(body); got == "" {
			t.Error("empty grant body")
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"cc-token","token_type":"Bearer","expires_in":3600}`)
	}))
	defer srv.Close()

	p := New(testProfile(), WithTokenURL(srv.URL))
	tok, err := p.Token(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if tok != "cc-token" {
		t.Errorf("token = %q", tok)
	}

	// Cached while valid: concurrent calls must not multiply grants.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Token(context.Background()); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("token endpoint hit %d times, want 1", n)
	}
}

func TestToken_IncompleteConfig(t *testing.T) {
	os.Unsetenv("BCTB_ACCESS_TOKEN")

	p := New(&config.Profile{Name: "empty"})
	_, err := p.Token(context.Background())
	if err == nil {
		t.Fatal("expected error for incomplete credentials")
	}
	if _, ok := err.(*Error); !ok {
		t.Errorf("error type = %T, want *Error", err)
	}
}

func TestStatus_ConfigurationIssues(t *testing.T) {
	os.Unsetenv("BCTB_ACCESS_TOKEN")

	p := New(&config.Profile{Name: "empty", ProfileConfig: config.ProfileConfig{TenantID: "t"}})
	st := p.Status(context.Background())
	if st.Authenticated {
		t.Error("must not report authenticated")
	}
	if len(st.ConfigurationIssues) != 2 {
		t.Errorf("issues = %v, want clientId and clientSecret", st.ConfigurationIssues)
	}
}

func TestStatus_ParsesJWTClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	claims, _ := json.Marshal(map[string]interface{}{"exp": exp, "tid": "tenant-xyz"})
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	payload := base64.RawURLEncoding.EncodeToString(claims)
	t.Setenv("BCTB_ACCESS_TOKEN", fmt.Sprintf("%s.%s.", header, payload))

	p := New(testProfile())
	st := p.Status(context.Background())
	if !st.Authenticated {
		t.Fatalf("status = %+v, want authenticated", st)
	}
	if st.Method != "static-token" {
		t.Errorf("method = %q", st.Method)
	}
	if st.TenantID != "tenant-xyz" {
		t.Errorf("tenantId = %q", st.TenantID)
	}
	if st.ExpiresOn == "" {
		t.Error("expiresOn missing")
	}
}

func TestStatus_OpaqueTokenDegrades(t *testing.T) {
	t.Setenv("BCTB_ACCESS_TOKEN", "not-a-jwt")

	p := New(testProfile())
	st := p.Status(context.Background())
	if !st.Authenticated {
		t.Fatal("opaque token must still count as authenticated")
	}
	if st.ExpiresOn != "" || st.TenantID != "" {
		t.Errorf("claims should be absent: %+v", st)
	}
}
