// Package publish turns a draft into an on-chain post: metadata, remote
// validation, IPFS upload, typed-data signature and postWithSig submission.
package publish

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/lenspost/lenspost/internal/chain"
	"github.com/lenspost/lenspost/internal/lens"
	"github.com/lenspost/lenspost/internal/logging"
	"github.com/lenspost/lenspost/internal/metrics"
	"github.com/lenspost/lenspost/internal/storage"
	"github.com/lenspost/lenspost/pkg/types"
)

// Pipeline step names.
const (
	StepMetadata  = "metadata"
	StepValidate  = "validate"
	StepUpload    = "upload"
	StepTypedData = "typed-data"
	StepSign      = "sign"
	StepSubmit    = "submit"
)

var (
	ErrNoDraft          = errors.New("nothing to publish")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoProfile        = errors.New("no profile selected")
	ErrValidationFailed = errors.New("metadata validation failed")
	ErrPublishInFlight  = errors.New("a publish is already in progress")
	ErrContentMismatch  = errors.New("typed data does not reference the uploaded content")
)

// StepError names the pipeline step that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// API is the part of the social-graph API the pipeline needs.
type API interface {
	ValidateMetadata(ctx context.Context, md types.PostMetadata) (lens.ValidationResult, error)
	CreatePostTypedData(ctx context.Context, accessToken string, req types.CreatePostRequest) (types.CreatePostTypedData, error)
}

// Uploader stores metadata and returns its CID.
type Uploader interface {
	AddJSON(ctx context.Context, v any) (string, error)
}

// Signer signs EIP-712 typed data.
type Signer interface {
	SignTypedData(ctx context.Context, address common.Address, data apitypes.TypedData) ([]byte, error)
}

// Submitter sends postWithSig to the chain.
type Submitter interface {
	PostWithSig(ctx context.Context, data chain.PostWithSigData) (common.Hash, error)
}

// Reauthenticator obtains a new session after the API rejected the current one.
type Reauthenticator func(ctx context.Context) (types.Session, error)

// Options configures the pipeline.
type Options struct {
	AppURL                string
	Locale                string
	FollowerOnlyCollect   bool
	FollowerOnlyReference bool
	Metrics               *metrics.Collector
}

// Request is one publish attempt.
type Request struct {
	Text        string
	Handle      string
	ProfileID   string
	Address     common.Address
	AccessToken string
	// Reauth is called once when typed-data creation is rejected as unauthorized.
	Reauth Reauthenticator
}

// Publisher runs at most one publish at a time.
type Publisher struct {
	api       API
	uploader  Uploader
	signer    Signer
	submitter Submitter
	opts      Options

	inFlight atomic.Bool
}

// NewPublisher wires the pipeline.
func NewPublisher(api API, uploader Uploader, signer Signer, submitter Submitter, opts Options) *Publisher {
	return &Publisher{
		api:       api,
		uploader:  uploader,
		signer:    signer,
		submitter: submitter,
		opts:      opts,
	}
}

// Check verifies the preconditions of req without any remote call.
func (p *Publisher) Check(req Request) error {
	if (types.Draft{Text: req.Text}).Empty() {
		return ErrNoDraft
	}
	if req.AccessToken == "" {
		return ErrNotAuthenticated
	}
	if req.ProfileID == "" {
		return ErrNoProfile
	}
	return nil
}

// InFlight reports whether a publish is running.
func (p *Publisher) InFlight() bool {
	return p.inFlight.Load()
}

func (p *Publisher) step(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.opts.Metrics.ObserveStep(name, time.Since(start), err)
	if err != nil {
		return &StepError{Step: name, Err: err}
	}
	return nil
}

// Publish runs the whole pipeline. Steps run strictly in order and a failure
// stops the attempt; completed steps are not rolled back.
func (p *Publisher) Publish(ctx context.Context, req Request) (types.PublishResult, error) {
	if !p.inFlight.CompareAndSwap(false, true) {
		return types.PublishResult{}, ErrPublishInFlight
	}
	p.opts.Metrics.SetPublishInFlight(true)
	defer func() {
		p.inFlight.Store(false)
		p.opts.Metrics.SetPublishInFlight(false)
	}()

	if err := p.Check(req); err != nil {
		return types.PublishResult{}, err
	}

	log := logging.With(logging.Component("publish"), logging.ProfileID(req.ProfileID))

	start := time.Now()
	md := BuildMetadata(req.Text, req.Handle, p.opts.AppURL, p.opts.Locale)
	p.opts.Metrics.ObserveStep(StepMetadata, time.Since(start), nil)
	result := types.PublishResult{MetadataID: md.MetadataID}

	err := p.step(StepValidate, func() error {
		res, err := p.api.ValidateMetadata(ctx, md)
		if err != nil {
			return err
		}
		if !res.Valid {
			reason := "no reason given"
			if res.Reason != nil {
				reason = *res.Reason
			}
			return fmt.Errorf("%w: %s", ErrValidationFailed, reason)
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	err = p.step(StepUpload, func() error {
		cid, err := p.uploader.AddJSON(ctx, md)
		if err != nil {
			return err
		}
		result.ContentURI = storage.ContentURI(cid)
		return nil
	})
	if err != nil {
		return result, err
	}
	log.Info("metadata uploaded", "metadata_id", md.MetadataID, "content_uri", result.ContentURI)

	createReq := types.CreatePostRequest{
		ProfileID:  req.ProfileID,
		ContentURI: result.ContentURI,
		CollectModule: types.CollectModuleParams{
			FreeCollectModule: &types.FreeCollectModule{FollowerOnly: p.opts.FollowerOnlyCollect},
		},
		ReferenceModule: types.ReferenceModuleParams{
			FollowerOnlyReferenceModule: p.opts.FollowerOnlyReference,
		},
	}

	var typed types.CreatePostTypedData
	err = p.step(StepTypedData, func() error {
		var err error
		typed, err = p.api.CreatePostTypedData(ctx, req.AccessToken, createReq)
		if errors.Is(err, lens.ErrUnauthorized) && req.Reauth != nil {
			log.Info("access token rejected, re-authenticating")
			session, rerr := req.Reauth(ctx)
			if rerr != nil {
				return fmt.Errorf("re-authentication failed: %w", rerr)
			}
			typed, err = p.api.CreatePostTypedData(ctx, session.AccessToken, createReq)
		}
		if err != nil {
			return err
		}
		if typed.TypedData.Value.ContentURI != result.ContentURI {
			return fmt.Errorf("%w: got %q", ErrContentMismatch, typed.TypedData.Value.ContentURI)
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	var sig chain.Signature
	err = p.step(StepSign, func() error {
		raw, err := p.signer.SignTypedData(ctx, req.Address, chain.ToAPITypes(typed.TypedData))
		if err != nil {
			return err
		}
		sig, err = chain.SplitSignature(raw)
		return err
	})
	if err != nil {
		return result, err
	}

	err = p.step(StepSubmit, func() error {
		data, err := chain.BuildPostWithSigData(typed.TypedData.Value, sig)
		if err != nil {
			return err
		}
		hash, err := p.submitter.PostWithSig(ctx, data)
		if err != nil {
			return err
		}
		result.TxHash = hash.Hex()
		return nil
	})
	if err != nil {
		return result, err
	}

	log.Info("post submitted", "tx_hash", result.TxHash)
	return result, nil
}
