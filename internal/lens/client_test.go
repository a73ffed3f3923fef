package lens

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lenspost/lenspost/internal/metrics"
	"github.com/lenspost/lenspost/internal/util"
	"github.com/lenspost/lenspost/pkg/types"
)

func fastRetry() *util.RetryConfig {
	return &util.RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

// graphqlServer answers every request with handler's result for the decoded operation.
func graphqlServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, req Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		handler(w, r, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeData(w http.ResponseWriter, data any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func TestDefaultProfile(t *testing.T) {
	srv := graphqlServer(t, func(w http.ResponseWriter, r *http.Request, req Request) {
		if req.OperationName != OpDefaultProfile {
			t.Errorf("unexpected operation %q", req.OperationName)
		}
		if req.Variables["address"] != "0xabc" {
			t.Errorf("unexpected address %v", req.Variables["address"])
		}
		writeData(w, map[string]any{"defaultProfile": map[string]any{"id": "0x01", "handle": "alice.test"}})
	})

	profile, err := NewClient(srv.URL).DefaultProfile(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("DefaultProfile failed: %v", err)
	}
	if profile.ID != "0x01" || profile.Handle != "alice.test" {
		t.Errorf("unexpected profile %+v", profile)
	}
}

func TestDefaultProfileNotFound(t *testing.T) {
	var calls int32
	srv := graphqlServer(t, func(w http.ResponseWriter, r *http.Request, req Request) {
		atomic.AddInt32(&calls, 1)
		writeData(w, map[string]any{"defaultProfile": nil})
	})

	_, err := NewClient(srv.URL, WithRetry(fastRetry())).DefaultProfile(context.Background(), "0xabc")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
	if calls != 1 {
		t.Errorf("missing profile should not be retried, got %d calls", calls)
	}
}

func TestDefaultProfileRetriesNetworkErrors(t *testing.T) {
	var calls int32
	srv := graphqlServer(t, func(w http.ResponseWriter, r *http.Request, req Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeData(w, map[string]any{"defaultProfile": map[string]any{"id": "0x02", "handle": "bob"}})
	})

	profile, err := NewClient(srv.URL, WithRetry(fastRetry())).DefaultProfile(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("DefaultProfile failed: %v", err)
	}
	if profile.Handle != "bob" {
		t.Errorf("unexpected profile %+v", profile)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestChallengeAndAuthenticate(t *testing.T) {
	srv := graphqlServer(t, func(w http.ResponseWriter, r *http.Request, req Request) {
		switch req.OperationName {
		case OpChallenge:
			writeData(w, map[string]any{"challenge": map[string]any{"text": "sign me"}})
		case OpAuthenticate:
			if req.Variables["signature"] != "0xsig" {
				t.Errorf("unexpected signature %v", req.Variables["signature"])
			}
			writeData(w, map[string]any{"authenticate": map[string]any{"accessToken": "at", "refreshToken": "rt"}})
		default:
			t.Errorf("unexpected operation %q", req.OperationName)
		}
	})

	c := NewClient(srv.URL)
	text, err := c.Challenge(context.Background(), "0xabc")
	if err != nil || text != "sign me" {
		t.Fatalf("Challenge = %q, %v", text, err)
	}

	session, err := c.Authenticate(context.Background(), "0xabc", "0xsig")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if session.AccessToken != "at" || session.RefreshToken != "rt" {
		t.Errorf("unexpected session %+v", session)
	}
}

func TestUnauthenticatedGraphQLError(t *testing.T) {
	srv := graphqlServer(t, func(w http.ResponseWriter, r *http.Request, req Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": nil,
			"errors": []map[string]any{{
				"message":    "Authentication required",
				"extensions": map[string]any{"code": CodeUnauthenticated},
			}},
		})
	})

	_, err := NewClient(srv.URL).CreatePostTypedData(context.Background(), "expired", types.CreatePostRequest{ProfileID: "0x01"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Authentication required" {
		t.Errorf("expected APIError with message, got %v", err)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusBadGateway, ErrNetwork},
	}

	for _, tt := range tests {
		srv := graphqlServer(t, func(w http.ResponseWriter, r *http.Request, req Request) {
			w.WriteHeader(tt.status)
		})
		_, err := NewClient(srv.URL).Challenge(context.Background(), "0xabc")
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: expected %v, got %v", tt.status, tt.want, err)
		}
	}
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Authenticate(context.Background(), "0xabc", "0xsig")
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("expected ErrNetwork, got %v", err)
	}
}

func TestCreatePostTypedData(t *testing.T) {
	srv := graphqlServer(t, func(w http.ResponseWriter, r *http.Request, req Request) {
		if got := r.Header.Get("x-access-token"); got != "Bearer token-1" {
			t.Errorf("unexpected x-access-token header %q", got)
		}
		request, _ := req.Variables["request"].(map[string]any)
		if request["contentURI"] != "ipfs://QmTest" {
			t.Errorf("unexpected contentURI %v", request["contentURI"])
		}
		collect, _ := request["collectModule"].(map[string]any)
		free, _ := collect["freeCollectModule"].(map[string]any)
		if free["followerOnly"] != true {
			t.Errorf("expected followerOnly collect module, got %v", collect)
		}

		writeData(w, map[string]any{"createPostTypedData": map[string]any{
			"id":        "typed-1",
			"expiresAt": "2026-01-01T00:00:00.000Z",
			"typedData": map[string]any{
				"types": map[string]any{"PostWithSig": []map[string]string{{"name": "profileId", "type": "uint256"}}},
				"domain": map[string]any{
					"name": "Lens Protocol Profiles", "chainId": 80001, "version": "1",
					"verifyingContract": "0x60Ae865ee4C725cd04353b5AAb364553f56ceF82",
				},
				"value": map[string]any{
					"nonce": 3, "deadline": 1700000000, "profileId": "0x01",
					"contentURI": "ipfs://QmTest",
				},
			},
		}})
	})

	req := types.CreatePostRequest{
		ProfileID:     "0x01",
		ContentURI:    "ipfs://QmTest",
		CollectModule: types.CollectModuleParams{FreeCollectModule: &types.FreeCollectModule{FollowerOnly: true}},
	}
	result, err := NewClient(srv.URL).CreatePostTypedData(context.Background(), "token-1", req)
	if err != nil {
		t.Fatalf("CreatePostTypedData failed: %v", err)
	}
	if result.ID != "typed-1" || result.TypedData.Value.Nonce != 3 || result.TypedData.Domain.ChainID != 80001 {
		t.Errorf("unexpected result %+v", result)
	}
	if len(result.TypedData.Types["PostWithSig"]) != 1 {
		t.Errorf("expected PostWithSig types, got %v", result.TypedData.Types)
	}
}

func TestCreatePostTypedDataWithoutToken(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1").CreatePostTypedData(context.Background(), "", types.CreatePostRequest{})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestValidateMetadata(t *testing.T) {
	srv := graphqlServer(t, func(w http.ResponseWriter, r *http.Request, req Request) {
		md, _ := req.Variables["metadatav2"].(map[string]any)
		if md["mainContentFocus"] != "TEXT_ONLY" {
			t.Errorf("unexpected metadata %v", md)
		}
		writeData(w, map[string]any{"validatePublicationMetadata": map[string]any{"valid": false, "reason": "content too long"}})
	})

	res, err := NewClient(srv.URL).ValidateMetadata(context.Background(), types.PostMetadata{MainContentFocus: "TEXT_ONLY"})
	if err != nil {
		t.Fatalf("ValidateMetadata failed: %v", err)
	}
	if res.Valid || res.Reason == nil || *res.Reason != "content too long" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestRefreshAndVerify(t *testing.T) {
	srv := graphqlServer(t, func(w http.ResponseWriter, r *http.Request, req Request) {
		switch req.OperationName {
		case OpRefresh:
			writeData(w, map[string]any{"refresh": map[string]any{"accessToken": "at2", "refreshToken": "rt2"}})
		case OpVerify:
			writeData(w, map[string]any{"verify": req.Variables["accessToken"] == "at2"})
		}
	})

	c := NewClient(srv.URL)
	session, err := c.Refresh(context.Background(), "rt")
	if err != nil || session.AccessToken != "at2" {
		t.Fatalf("Refresh = %+v, %v", session, err)
	}

	ok, err := c.Verify(context.Background(), "at2")
	if err != nil || !ok {
		t.Errorf("Verify = %v, %v", ok, err)
	}
}

func TestMetricsRecorded(t *testing.T) {
	srv := graphqlServer(t, func(w http.ResponseWriter, r *http.Request, req Request) {
		writeData(w, map[string]any{"challenge": map[string]any{"text": "x"}})
	})

	m := metrics.NewCollector()
	if _, err := NewClient(srv.URL, WithMetrics(m)).Challenge(context.Background(), "0xabc"); err != nil {
		t.Fatal(err)
	}

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "lenspost_api_request_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected api request counter to be recorded")
	}
}
