// Package harvest is a client for the daily time entries of a
// {subdomain}.serviceapp.com account.
//
// Every call goes through one authenticated request pipeline that hides two
// behaviours of the service from the caller:
//
//   - Throttling: a 503 is waited out for Retry-After seconds plus a five
//     second margin, at most three times in a row. A fourth consecutive 503
//     fails with ErrThrottleExhausted.
//   - Protocol fallback: a 3xx means the account expects the other protocol.
//     The current protocol is abandoned and the identical request is resent
//     over the next one. With none left the call fails with ErrNoTransport.
//
// Any other non-2xx status is returned as a *StatusError holding the status
// line, headers and body exactly as received.
//
// Typical usage:
//
//	client, err := harvest.New("acme", "me@example.com", "secret",
//	    harvest.WithLogger(harvest.NewZerologLogger(log)),
//	    harvest.WithDebug(),
//	)
//	if err != nil {
//	    return err
//	}
//	entries := harvest.NewEntryService(client, "3", "7")
//	entry, err := entries.LogHours(ctx, 1.5, "standup")
//
// A Client issues one request at a time and is not safe for concurrent use.
package harvest
