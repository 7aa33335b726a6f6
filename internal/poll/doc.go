// Package poll provides the "retry until true" primitive the bridge uses to
// defer work until the client reaches some state.
//
// The client offers no readiness events, so readiness is detected by
// re-evaluating a condition on a timer. Keeping that behind [For] means a real
// event source can replace it without touching callers.
//
//	room, err := poll.For(ctx, func(ctx context.Context) (string, bool, error) {
//	    params, err := s.RouteParams(ctx)
//	    if errors.Is(err, errors.ErrNotReady) {
//	        return "", false, nil
//	    }
//	    return params["room"], params["room"] != "", err
//	}, poll.WithInterval(100*time.Millisecond), poll.WithTimeout(5*time.Second))
//
// The first evaluation happens before any timer is armed, so a condition that
// is already true returns immediately. The timeout is checked before each
// evaluation using a strict "elapsed > timeout" test; WithTimeout(0) therefore
// permits exactly one evaluation.
package poll
