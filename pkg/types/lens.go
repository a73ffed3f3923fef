package types

import "strings"

// Profile is the default social-graph profile of a wallet address.
type Profile struct {
	ID     string `json:"id"`
	Handle string `json:"handle"`
}

// IsZero reports whether no profile has been resolved.
func (p Profile) IsZero() bool {
	return p.ID == ""
}

// Session holds the tokens issued by a successful authentication.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Valid reports whether the session carries an access token.
func (s Session) Valid() bool {
	return strings.TrimSpace(s.AccessToken) != ""
}

// Draft is the post text being composed.
type Draft struct {
	Text string
}

// Empty reports whether the draft has no publishable text.
func (d Draft) Empty() bool {
	return strings.TrimSpace(d.Text) == ""
}

// MetadataAttribute is a key/value attribute attached to post metadata.
type MetadataAttribute struct {
	DisplayType string `json:"displayType,omitempty"`
	TraitType   string `json:"traitType,omitempty"`
	Value       string `json:"value"`
}

// PostMetadata is the publication metadata document uploaded to IPFS.
// Field names follow the metadata v2 schema.
type PostMetadata struct {
	Version          string              `json:"version"`
	Content          string              `json:"content"`
	Description      string              `json:"description"`
	Name             string              `json:"name"`
	ExternalURL      string              `json:"external_url"`
	MetadataID       string              `json:"metadata_id"`
	MainContentFocus string              `json:"mainContentFocus"`
	Attributes       []MetadataAttribute `json:"attributes"`
	Locale           string              `json:"locale"`
}

// FreeCollectModule configures free collects of a publication.
type FreeCollectModule struct {
	FollowerOnly bool `json:"followerOnly"`
}

// CollectModuleParams selects the collect module of a new publication.
type CollectModuleParams struct {
	FreeCollectModule *FreeCollectModule `json:"freeCollectModule,omitempty"`
}

// ReferenceModuleParams selects the reference module of a new publication.
type ReferenceModuleParams struct {
	FollowerOnlyReferenceModule bool `json:"followerOnlyReferenceModule"`
}

// CreatePostRequest is the input of the createPostTypedData mutation.
type CreatePostRequest struct {
	ProfileID       string                `json:"profileId"`
	ContentURI      string                `json:"contentURI"`
	CollectModule   CollectModuleParams   `json:"collectModule"`
	ReferenceModule ReferenceModuleParams `json:"referenceModule"`
}

// TypedDataField is one member of an EIP-712 struct type.
type TypedDataField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TypedDataDomain is the EIP-712 domain returned by the API.
type TypedDataDomain struct {
	Name              string `json:"name"`
	ChainID           int64  `json:"chainId"`
	Version           string `json:"version"`
	VerifyingContract string `json:"verifyingContract"`
}

// PostWithSigValue is the message of the PostWithSig typed data.
type PostWithSigValue struct {
	Nonce                   int64  `json:"nonce"`
	Deadline                int64  `json:"deadline"`
	ProfileID               string `json:"profileId"`
	ContentURI              string `json:"contentURI"`
	CollectModule           string `json:"collectModule"`
	CollectModuleInitData   string `json:"collectModuleInitData"`
	ReferenceModule         string `json:"referenceModule"`
	ReferenceModuleInitData string `json:"referenceModuleInitData"`
}

// PostTypedData is the EIP-712 payload to sign for a gasless post.
type PostTypedData struct {
	Types  map[string][]TypedDataField `json:"types"`
	Domain TypedDataDomain             `json:"domain"`
	Value  PostWithSigValue            `json:"value"`
}

// CreatePostTypedData is the result of the createPostTypedData mutation.
type CreatePostTypedData struct {
	ID        string        `json:"id"`
	ExpiresAt string        `json:"expiresAt"`
	TypedData PostTypedData `json:"typedData"`
}

// SignedTypedData pairs typed data with the wallet's signature over it.
type SignedTypedData struct {
	Result    CreatePostTypedData
	Signature []byte
}

// PublishResult describes a submitted post.
type PublishResult struct {
	MetadataID string `json:"metadata_id"`
	ContentURI string `json:"content_uri"`
	TxHash     string `json:"tx_hash"`
}
