/*
Package coreclient is the transport between the session SDK and a fleet of core
instances.

# Overview

A Client sends versioned JSON requests to one of several interchangeable core
hosts. It negotiates the API version once, keeps a liveness table of the hosts it
has talked to, spreads calls across them round-robin, and retries individual calls
that are rate limited.

	client, err := coreclient.New(coreclient.Config{
		Hosts:  coreclient.ParseHosts("http://core-a:3567;http://core-b:3567"),
		APIKey: os.Getenv("CORE_API_KEY"),
	})

	resp, err := client.Post(ctx, coreclient.TenantPath("public", "/recipe/session"), body)
	if err != nil {
		return err
	}

	var out createResponse
	if err := resp.Decode(&out); err != nil {
		return err
	}

# Host Selection

Every call draws a ticket from a shared rotating index. The ticket picks the host the
call starts from and the round it belongs to (ticket / number of hosts). Hosts that
failed to connect during the current round are skipped. Once the round advances the
dead marks go stale and those hosts are tried again, so a recovered host rejoins on
its own. If every host is marked dead for the round the call still tries each one
once before giving up with a *ConnectivityError.

# Rate Limiting

An HTTP 429 does not mark a host dead. The call is retried against the same host up
to RetryConfig.MaxRetries times with a fixed RetryConfig.Interval between attempts.
The counter belongs to the call, so concurrent calls never share a budget. When the
budget runs out the caller gets a *RateLimitedError carrying the last response body.

# Errors

  - *ConnectivityError: no host could be reached, or version negotiation failed
  - *RateLimitedError: retry budget exhausted on 429 responses
  - *RequestError: any other non-2xx response, with status code and body

Context cancellation is observed between hosts and between retries; the context error
is returned unchanged.
*/
package coreclient
