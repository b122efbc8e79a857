// Package retry runs an operation repeatedly with a backoff between attempts.
//
//	body, err := retry.DoWithResult(ctx, &retry.Config{
//		MaxAttempts: 10,
//		Backoff:     retry.DefaultExponentialBackoff(),
//	}, func(ctx context.Context, attempt int) ([]byte, error) {
//		return fetch(ctx, url)
//	})
//
// MaxAttempts of zero retries until the operation succeeds or the context
// ends. When attempts run out the last error is returned wrapped in an
// *ExhaustedError.
package retry
