// Package httputil provides the HTTP plumbing shared by style and tile
// loading.
//
// # Overview
//
//   - [Client]: GET with default headers, status classification and hooks
//   - [Retry]: automatic retry with exponential backoff
//   - [Cache]: JSON document cache on top of [cache.Cache]
//
// # Retry
//
// [Retry] only repeats errors wrapped in [RetryableError]. [Client.Fetch]
// wraps network errors, 5xx and 429 responses that way:
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    data, _, err = client.Fetch(ctx, url, nil)
//	    return err
//	})
//
// A 404 maps to [ErrNotFound] and is never retried; the renderer treats a
// missing tile as an empty area.
package httputil
