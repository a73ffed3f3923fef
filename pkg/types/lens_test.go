package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestProfileIsZero(t *testing.T) {
	if !(Profile{}).IsZero() {
		t.Error("empty profile should be zero")
	}
	if (Profile{ID: "0x01", Handle: "alice"}).IsZero() {
		t.Error("resolved profile should not be zero")
	}
}

func TestSessionValid(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{"", false},
		{"   ", false},
		{"eyJhbGciOiJIUzI1NiJ9.e30.sig", true},
	}
	for _, tt := range tests {
		if got := (Session{AccessToken: tt.token}).Valid(); got != tt.want {
			t.Errorf("Session{%q}.Valid() = %v, want %v", tt.token, got, tt.want)
		}
	}
}

func TestDraftEmpty(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", true},
		{" \n\t", true},
		{"hello world", false},
	}
	for _, tt := range tests {
		if got := (Draft{Text: tt.text}).Empty(); got != tt.want {
			t.Errorf("Draft{%q}.Empty() = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestCreatePostRequestJSON(t *testing.T) {
	req := CreatePostRequest{
		ProfileID:  "0x01",
		ContentURI: "ipfs://QmTest",
		CollectModule: CollectModuleParams{
			FreeCollectModule: &FreeCollectModule{FollowerOnly: true},
		},
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	got := string(data)
	for _, want := range []string{
		`"profileId":"0x01"`,
		`"contentURI":"ipfs://QmTest"`,
		`"freeCollectModule":{"followerOnly":true}`,
		`"followerOnlyReferenceModule":false`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %s in %s", want, got)
		}
	}
}
