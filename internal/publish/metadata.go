package publish

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lenspost/lenspost/pkg/types"
)

// Metadata constants of a text-only post.
const (
	MetadataVersion     = "2.0.0"
	MainContentTextOnly = "TEXT_ONLY"
	DefaultLocale       = "en-US"
	DefaultAppURL       = "https://lenster.xyz"
)

// BuildMetadata builds the metadata document of a text post. Each call gets
// a fresh metadata_id, so identical text never shares one.
func BuildMetadata(text, handle, appURL, locale string) types.PostMetadata {
	if appURL == "" {
		appURL = DefaultAppURL
	}
	if locale == "" {
		locale = DefaultLocale
	}

	return types.PostMetadata{
		Version:          MetadataVersion,
		Content:          text,
		Description:      text,
		Name:             fmt.Sprintf("Post by @%s", handle),
		ExternalURL:      fmt.Sprintf("%s/u/%s", strings.TrimRight(appURL, "/"), handle),
		MetadataID:       uuid.NewString(),
		MainContentFocus: MainContentTextOnly,
		Attributes:       []types.MetadataAttribute{},
		Locale:           locale,
	}
}
