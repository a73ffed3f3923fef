package lenstest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/google/uuid"

	"github.com/lenspost/lenspost/internal/chain"
	"github.com/lenspost/lenspost/internal/lens"
	"github.com/lenspost/lenspost/internal/logging"
	"github.com/lenspost/lenspost/pkg/types"
)

// Error codes placed in extensions.code.
const (
	codeBadInput  = "BAD_USER_INPUT"
	codeForbidden = "FORBIDDEN"
	codeInternal  = "INTERNAL_SERVER_ERROR"
)

const maxRequestBody = 1 << 20

type gqlRequest struct {
	OperationName string          `json:"operationName"`
	Query         string          `json:"query"`
	Variables     json.RawMessage `json:"variables"`
}

type gqlError struct {
	Message    string            `json:"message"`
	Extensions map[string]string `json:"extensions"`
}

// opError is a GraphQL error with its extensions code.
type opError struct {
	code string
	msg  string
}

func (e *opError) Error() string { return e.msg }

func badInput(format string, args ...any) error {
	return &opError{code: codeBadInput, msg: fmt.Sprintf(format, args...)}
}

func unauthenticated(err error) error {
	return &opError{code: lens.CodeUnauthenticated, msg: err.Error()}
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req gqlRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadInput, "invalid request body")
		return
	}

	op := req.OperationName
	if s.takeFault(op) {
		s.metrics.ObserveAPIRequest(op, errors.New("injected fault"))
		writeError(w, http.StatusServiceUnavailable, codeInternal, "service unavailable")
		return
	}

	var (
		data any
		err  error
	)
	switch op {
	case lens.OpDefaultProfile:
		data, err = s.defaultProfile(req.Variables)
	case lens.OpChallenge:
		data, err = s.challenge(req.Variables)
	case lens.OpAuthenticate:
		data, err = s.authenticate(req.Variables)
	case lens.OpRefresh:
		data, err = s.refresh(req.Variables)
	case lens.OpVerify:
		data, err = s.verify(req.Variables)
	case lens.OpValidateMetadata:
		data, err = s.validateMetadata(req.Variables)
	case lens.OpCreatePostTypedData:
		data, err = s.createPostTypedData(r, req.Variables)
	default:
		err = badInput("unknown operation %q", op)
	}
	s.metrics.ObserveAPIRequest(op, err)

	if err != nil {
		var oe *opError
		if !errors.As(err, &oe) {
			oe = &opError{code: codeInternal, msg: err.Error()}
		}
		logging.Debug("operation rejected",
			logging.Component("lenstest"),
			"operation", op,
			"code", oe.code,
			logging.Err(err),
		)
		// The real API reports resolver errors with status 200.
		writeError(w, http.StatusOK, oe.code, oe.msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

func decodeVars(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return badInput("missing variables")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return badInput("invalid variables: %v", err)
	}
	return nil
}

func (s *Server) defaultProfile(raw json.RawMessage) (any, error) {
	var vars struct {
		Address string `json:"address"`
	}
	if err := decodeVars(raw, &vars); err != nil {
		return nil, err
	}
	if !common.IsHexAddress(vars.Address) {
		return nil, badInput("invalid address %q", vars.Address)
	}

	s.mu.Lock()
	profile, ok := s.profiles[strings.ToLower(vars.Address)]
	s.mu.Unlock()

	if !ok {
		return map[string]any{"defaultProfile": nil}, nil
	}
	return map[string]any{"defaultProfile": profile}, nil
}

func (s *Server) challenge(raw json.RawMessage) (any, error) {
	var vars struct {
		Address string `json:"address"`
	}
	if err := decodeVars(raw, &vars); err != nil {
		return nil, err
	}
	text, err := s.issueChallenge(vars.Address)
	if err != nil {
		return nil, badInput("%v", err)
	}
	return map[string]any{"challenge": map[string]string{"text": text}}, nil
}

func (s *Server) authenticate(raw json.RawMessage) (any, error) {
	var vars struct {
		Address   string `json:"address"`
		Signature string `json:"signature"`
	}
	if err := decodeVars(raw, &vars); err != nil {
		return nil, err
	}
	if err := s.consumeChallenge(vars.Address, vars.Signature); err != nil {
		return nil, unauthenticated(err)
	}

	session, err := s.issueSession(vars.Address)
	if err != nil {
		return nil, err
	}
	logging.Info("session issued", logging.Component("lenstest"), logging.Address(vars.Address))
	return map[string]any{"authenticate": session}, nil
}

func (s *Server) refresh(raw json.RawMessage) (any, error) {
	var vars struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeVars(raw, &vars); err != nil {
		return nil, err
	}
	address, err := s.parseToken(vars.RefreshToken, roleRefresh)
	if err != nil {
		return nil, unauthenticated(err)
	}
	session, err := s.issueSession(address)
	if err != nil {
		return nil, err
	}
	return map[string]any{"refresh": session}, nil
}

func (s *Server) verify(raw json.RawMessage) (any, error) {
	var vars struct {
		AccessToken string `json:"accessToken"`
	}
	if err := decodeVars(raw, &vars); err != nil {
		return nil, err
	}
	_, err := s.parseToken(vars.AccessToken, roleAccess)
	return map[string]any{"verify": err == nil}, nil
}

func (s *Server) validateMetadata(raw json.RawMessage) (any, error) {
	var vars struct {
		Metadata types.PostMetadata `json:"metadatav2"`
	}
	if err := decodeVars(raw, &vars); err != nil {
		return nil, err
	}

	result := lens.ValidationResult{Valid: true}
	if reason := s.checkMetadata(vars.Metadata); reason != "" {
		result = lens.ValidationResult{Valid: false, Reason: &reason}
	}
	return map[string]any{"validatePublicationMetadata": result}, nil
}

// checkMetadata returns why md is invalid, or "" when it is valid.
func (s *Server) checkMetadata(md types.PostMetadata) string {
	switch {
	case md.Version != "2.0.0":
		return fmt.Sprintf("unsupported metadata version %q", md.Version)
	case md.MetadataID == "":
		return "metadata_id is required"
	case md.Name == "":
		return "name is required"
	case md.Locale == "":
		return "locale is required"
	case md.MainContentFocus != "TEXT_ONLY":
		return fmt.Sprintf("unsupported mainContentFocus %q", md.MainContentFocus)
	case strings.TrimSpace(md.Content) == "":
		return "content is required for TEXT_ONLY"
	case len(md.Content) > s.cfg.MaxContentLen:
		return fmt.Sprintf("content exceeds %d characters", s.cfg.MaxContentLen)
	}
	if _, err := uuid.Parse(md.MetadataID); err != nil {
		return "metadata_id must be a UUID"
	}
	return ""
}

func (s *Server) createPostTypedData(r *http.Request, raw json.RawMessage) (any, error) {
	token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("x-access-token"), "Bearer"))
	if token == "" {
		return nil, unauthenticated(errors.New("missing x-access-token"))
	}
	address, err := s.parseToken(token, roleAccess)
	if err != nil {
		return nil, unauthenticated(err)
	}

	var vars struct {
		Request types.CreatePostRequest `json:"request"`
	}
	if err := decodeVars(raw, &vars); err != nil {
		return nil, err
	}
	req := vars.Request

	if _, ok := math.ParseBig256(req.ProfileID); !ok {
		return nil, badInput("invalid profileId %q", req.ProfileID)
	}
	if !strings.HasPrefix(req.ContentURI, "ipfs://") && !strings.HasPrefix(req.ContentURI, "https://") {
		return nil, badInput("contentURI must be an ipfs:// or https:// URI")
	}
	if req.CollectModule.FreeCollectModule == nil {
		return nil, badInput("only freeCollectModule is supported")
	}

	s.mu.Lock()
	profile := s.profiles[address]
	var nonce int64
	owned := profile.ID == req.ProfileID
	if owned {
		nonce = s.nonces[address]
		s.nonces[address]++
	}
	s.mu.Unlock()

	if !owned {
		return nil, &opError{code: codeForbidden, msg: "profile is not owned by the authenticated wallet"}
	}

	collectInit, err := encodeBool(req.CollectModule.FreeCollectModule.FollowerOnly)
	if err != nil {
		return nil, err
	}
	referenceModule := common.Address{}
	referenceInit := "0x"
	if req.ReferenceModule.FollowerOnlyReferenceModule {
		referenceModule = DefaultFollowerOnlyReferenceModule
	}

	expires := s.now().Add(s.cfg.TypedDataTTL)
	result := types.CreatePostTypedData{
		ID:        uuid.NewString(),
		ExpiresAt: expires.UTC().Format("2006-01-02T15:04:05.000Z"),
		TypedData: types.PostTypedData{
			Types: map[string][]types.TypedDataField{
				chain.PostWithSigPrimaryType: chain.PostWithSigTypes,
			},
			Domain: types.TypedDataDomain{
				Name:              "Lens Protocol Profiles",
				ChainID:           s.cfg.ChainID,
				Version:           "1",
				VerifyingContract: s.cfg.LensHub.Hex(),
			},
			Value: types.PostWithSigValue{
				Nonce:                   nonce,
				Deadline:                expires.Unix(),
				ProfileID:               req.ProfileID,
				ContentURI:              req.ContentURI,
				CollectModule:           DefaultFreeCollectModule.Hex(),
				CollectModuleInitData:   collectInit,
				ReferenceModule:         referenceModule.Hex(),
				ReferenceModuleInitData: referenceInit,
			},
		},
	}
	return map[string]any{"createPostTypedData": result}, nil
}

// encodeBool ABI-encodes a single bool, the init data of the free collect module.
func encodeBool(v bool) (string, error) {
	boolType, err := abi.NewType("bool", "", nil)
	if err != nil {
		return "", err
	}
	packed, err := abi.Arguments{{Type: boolType}}.Pack(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode init data: %w", err)
	}
	return hexutil.Encode(packed), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("failed to write response", logging.Component("lenstest"), logging.Err(err))
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{
		"data": nil,
		"errors": []gqlError{{
			Message:    msg,
			Extensions: map[string]string{"code": code},
		}},
	})
}
