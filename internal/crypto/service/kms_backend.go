package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gocloud.dev/gcerrors"
	"gocloud.dev/secrets"
	"golang.org/x/time/rate"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"

	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// Keeper is the slice of *secrets.Keeper the backend uses.
type Keeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// KeeperOpener opens a keeper for a key URI. The default opener dials
// gocloud.dev; tests substitute a local keeper.
type KeeperOpener func(ctx context.Context, keyURI string) (Keeper, error)

func defaultKeeperOpener(ctx context.Context, keyURI string) (Keeper, error) {
	return secrets.OpenKeeper(ctx, keyURI)
}

// KMSBackendOptions configures the KMS wrap backend.
type KMSBackendOptions struct {
	// Timeout bounds every individual KMS call.
	Timeout time.Duration
	// MaxRetries caps retries for transient failures. Authentication and
	// permission errors are never retried.
	MaxRetries uint64
	// RequestsPerSec rate-limits outgoing KMS calls. Zero disables limiting.
	RequestsPerSec float64
	// Opener overrides the keeper opener, used by tests.
	Opener KeeperOpener
}

// KMSBackend wraps and unwraps DEKs through an external key-management
// service via gocloud.dev/secrets. Keepers are opened lazily per key URI and
// cached; unwrap uses the URI recorded on the key row, so rows wrapped under
// older KMS keys remain readable after a rewrap target change.
type KMSBackend struct {
	wrapKeyURI string
	opener     KeeperOpener
	timeout    time.Duration
	maxRetries uint64
	limiter    *rate.Limiter

	mu      sync.Mutex
	keepers map[string]Keeper
}

// NewKMSBackend creates a KMS wrap backend. wrapKeyURI names the KMS key new
// wraps are created under and may be empty when the backend is registered
// only to unwrap existing kms rows.
func NewKMSBackend(wrapKeyURI string, opts KMSBackendOptions) *KMSBackend {
	opener := opts.Opener
	if opener == nil {
		opener = defaultKeeperOpener
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1)
	}

	return &KMSBackend{
		wrapKeyURI: wrapKeyURI,
		opener:     opener,
		timeout:    opts.Timeout,
		maxRetries: opts.MaxRetries,
		limiter:    limiter,
		keepers:    make(map[string]Keeper),
	}
}

// Scheme returns SchemeKMS.
func (b *KMSBackend) Scheme() cryptoDomain.WrapScheme {
	return cryptoDomain.SchemeKMS
}

// Wrap encrypts the DEK under the configured KMS key. The returned wrap
// carries the key URI so unwrap can target the same key later.
func (b *KMSBackend) Wrap(ctx context.Context, dek []byte) (*cryptoDomain.WrappedDEK, error) {
	if b.wrapKeyURI == "" {
		return nil, fmt.Errorf("%w: kms key uri is not configured", apperrors.ErrInvalidInput)
	}

	keeper, err := b.keeper(ctx, b.wrapKeyURI)
	if err != nil {
		return nil, err
	}

	ciphertext, err := b.call(ctx, func(callCtx context.Context) ([]byte, error) {
		return keeper.Encrypt(callCtx, dek)
	})
	if err != nil {
		return nil, err
	}

	return &cryptoDomain.WrappedDEK{
		Ciphertext: ciphertext,
		Scheme:     cryptoDomain.SchemeKMS,
		KMSKeyID:   b.wrapKeyURI,
	}, nil
}

// Unwrap decrypts the DEK through the KMS key recorded on the row.
func (b *KMSBackend) Unwrap(ctx context.Context, key *cryptoDomain.EncryptionKey) ([]byte, error) {
	keeper, err := b.keeper(ctx, key.KMSKeyID)
	if err != nil {
		return nil, err
	}

	dek, err := b.call(ctx, func(callCtx context.Context) ([]byte, error) {
		return keeper.Decrypt(callCtx, key.DekWrapped)
	})
	if err != nil {
		return nil, err
	}

	return dek, nil
}

func (b *KMSBackend) keeper(ctx context.Context, keyURI string) (Keeper, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if keeper, ok := b.keepers[keyURI]; ok {
		return keeper, nil
	}

	keeper, err := b.opener(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open kms keeper for %s: %v", cryptoDomain.ErrBackendUnavailable, keyURI, err)
	}

	b.keepers[keyURI] = keeper
	return keeper, nil
}

// call runs one KMS operation with rate limiting, a per-call timeout, and
// exponential backoff on transient failures. Authentication and permission
// errors fail immediately as ErrUnwrapAuth.
func (b *KMSBackend) call(ctx context.Context, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	var result []byte

	operation := func() error {
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		callCtx := ctx
		if b.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, b.timeout)
			defer cancel()
		}

		out, err := fn(callCtx)
		if err != nil {
			if isTransientKMSError(err) {
				return err
			}
			return backoff.Permanent(fmt.Errorf("%w: %v", cryptoDomain.ErrUnwrapAuth, err))
		}

		result = out
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), b.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		if isTransientKMSError(err) {
			return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrBackendUnavailable, err)
		}
		return nil, err
	}

	return result, nil
}

// isTransientKMSError reports whether a KMS failure is worth retrying.
// Anything else (invalid credentials, missing permission, unknown key) is
// treated as an authentication failure and never retried, so a
// misconfigured deployment fails fast instead of hammering the KMS.
func isTransientKMSError(err error) bool {
	switch gcerrors.Code(err) {
	case gcerrors.DeadlineExceeded, gcerrors.ResourceExhausted, gcerrors.Internal:
		return true
	default:
		return false
	}
}
