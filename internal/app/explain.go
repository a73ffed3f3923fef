package app

import (
	"context"
	"errors"

	"github.com/lenspost/lenspost/internal/auth"
	"github.com/lenspost/lenspost/internal/chain"
	"github.com/lenspost/lenspost/internal/lens"
	"github.com/lenspost/lenspost/internal/publish"
	"github.com/lenspost/lenspost/internal/storage"
	"github.com/lenspost/lenspost/internal/wallet"
)

// Explain turns an error into a message telling the user what to do next.
func Explain(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, wallet.ErrWalletUnavailable):
		return "No usable wallet. Create one with 'lenspost wallet create', or check the wallet password."
	case errors.Is(err, wallet.ErrSignRejected):
		return "The wallet did not sign. Check that the connected account is unlocked."
	case errors.Is(err, auth.ErrNotConnected):
		return "Connect your wallet first with 'lenspost connect'."
	case errors.Is(err, publish.ErrNotAuthenticated), errors.Is(err, lens.ErrUnauthorized):
		return "You are not logged in, or your session expired. Run 'lenspost login'."
	case errors.Is(err, publish.ErrNoProfile), errors.Is(err, lens.ErrProfileNotFound):
		return "This wallet has no default Lens profile, so there is nothing to post as."
	case errors.Is(err, publish.ErrNoDraft):
		return "Write something first."
	case errors.Is(err, publish.ErrPublishInFlight):
		return "A post is already being published. Wait for it to finish."
	case errors.Is(err, publish.ErrValidationFailed):
		return "The post was rejected before upload: " + err.Error()
	case errors.Is(err, storage.ErrUpload):
		return "Uploading to IPFS failed. Check the IPFS address and the LENSPOST_IPFS_PROJECT_ID/SECRET credentials."
	case errors.Is(err, chain.ErrPubCountUnchanged):
		return "The transaction was mined but the profile's publication count did not go up."
	case errors.Is(err, chain.ErrSubmission):
		return "The transaction was not accepted by the network: " + err.Error()
	case errors.Is(err, lens.ErrNetwork):
		return "The Lens API could not be reached. Check your connection and try again."
	case errors.Is(err, context.DeadlineExceeded):
		return "The operation timed out. Try again or raise --timeout."
	case errors.Is(err, context.Canceled):
		return "Cancelled."
	default:
		return err.Error()
	}
}
