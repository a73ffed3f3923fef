package publish

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestBuildMetadata(t *testing.T) {
	md := BuildMetadata("hello world", "alice", "", "")

	if md.Content != "hello world" || md.Description != "hello world" {
		t.Errorf("unexpected content %q / %q", md.Content, md.Description)
	}
	if md.Name != "Post by @alice" {
		t.Errorf("unexpected name %q", md.Name)
	}
	if !strings.Contains(md.ExternalURL, "/u/alice") {
		t.Errorf("external_url should contain /u/alice, got %q", md.ExternalURL)
	}
	if md.Version != "2.0.0" || md.MainContentFocus != "TEXT_ONLY" || md.Locale != "en-US" {
		t.Errorf("unexpected constants %+v", md)
	}
	if _, err := uuid.Parse(md.MetadataID); err != nil {
		t.Errorf("metadata_id should be a UUID: %v", err)
	}
}

func TestBuildMetadataFreshID(t *testing.T) {
	a := BuildMetadata("same text", "alice", "", "")
	b := BuildMetadata("same text", "alice", "", "")

	if a.MetadataID == b.MetadataID {
		t.Error("identical drafts must get distinct metadata ids")
	}
}

func TestBuildMetadataCustomAppURL(t *testing.T) {
	md := BuildMetadata("x", "bob", "https://example.social/", "fr-FR")
	if md.ExternalURL != "https://example.social/u/bob" {
		t.Errorf("unexpected external_url %q", md.ExternalURL)
	}
	if md.Locale != "fr-FR" {
		t.Errorf("unexpected locale %q", md.Locale)
	}
}

func TestMetadataJSONFieldNames(t *testing.T) {
	data, err := json.Marshal(BuildMetadata("x", "alice", "", ""))
	if err != nil {
		t.Fatal(err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"version", "content", "description", "name", "external_url", "metadata_id", "mainContentFocus", "attributes", "locale"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing JSON field %q in %s", key, data)
		}
	}
	if attrs, ok := fields["attributes"].([]any); !ok || len(attrs) != 0 {
		t.Errorf("attributes should be an empty array, got %v", fields["attributes"])
	}
}
