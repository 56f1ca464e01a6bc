package accounts

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/civitas-labs/issue-relay/internal/logger"
	"github.com/civitas-labs/issue-relay/internal/platform"
	"github.com/gin-gonic/gin"
)

// newAccountsFixture wires the handler against a fake platform identity
// service.
func newAccountsFixture(t *testing.T, upstream http.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	client := platform.NewClient(srv.URL, "anon-key", "")
	h := NewHandler(client, logger.New(logger.Config{Level: slog.LevelError}))

	r := gin.New()
	r.POST("/api/auth/signup", h.SignUp)
	r.POST("/api/auth/signin", h.SignIn)
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSignUpRequiresCredentials(t *testing.T) {
	r := newAccountsFixture(t, func(w http.ResponseWriter, req *http.Request) {
		t.Error("platform should not be called")
	})

	for _, body := range []string{
		`{}`,
		`{"email":"user@example.com"}`,
		`{"password":"hunter2"}`,
		`not json`,
	} {
		rec := postJSON(r, "/api/auth/signup", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want %d", body, rec.Code, http.StatusBadRequest)
			continue
		}
		var resp map[string]string
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp["error"] != "Email and password are required." {
			t.Errorf("body %q: error = %q", body, resp["error"])
		}
	}
}

func TestSignUpPassthrough(t *testing.T) {
	r := newAccountsFixture(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/auth/v1/signup" {
			t.Errorf("path = %q", req.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(platform.SignUpResult{
			User: &platform.User{ID: "user-1", Email: "user@example.com"},
		})
	})

	rec := postJSON(r, "/api/auth/signup", `{"email":"user@example.com","password":"hunter2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Message string         `json:"message"`
		User    *platform.User `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.User == nil || resp.User.ID != "user-1" {
		t.Errorf("user = %+v", resp.User)
	}
	if !strings.Contains(resp.Message, "Check your email") {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestSignInPassthrough(t *testing.T) {
	r := newAccountsFixture(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(platform.Session{
			AccessToken: "jwt-token",
			User:        &platform.User{ID: "user-1"},
		})
	})

	rec := postJSON(r, "/api/auth/signin", `{"email":"user@example.com","password":"hunter2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Session *platform.Session `json:"session"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Session == nil || resp.Session.AccessToken != "jwt-token" {
		t.Errorf("session = %+v", resp.Session)
	}
}

func TestSignInWrongPasswordIsBadRequest(t *testing.T) {
	r := newAccountsFixture(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error_description": "x", "msg": "Invalid login credentials"})
	})

	rec := postJSON(r, "/api/auth/signin", `{"email":"user@example.com","password":"wrong"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !strings.Contains(resp["error"], "Invalid login credentials") {
		t.Errorf("error = %q", resp["error"])
	}
}

func TestSignInUpstreamFailureIsInternal(t *testing.T) {
	r := newAccountsFixture(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"message": "identity service down"})
	})

	rec := postJSON(r, "/api/auth/signin", `{"email":"user@example.com","password":"hunter2"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}
