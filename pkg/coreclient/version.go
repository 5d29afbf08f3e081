package coreclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const apiVersionPath = "/apiversion"

type apiVersionResponse struct {
	Versions []string `json:"versions"`
}

// NegotiatedVersion returns the highest API version both sides support,
// asking the core on first use. A failed negotiation is not remembered, the
// next call tries again. Concurrent callers share one negotiation and each
// stops waiting when its own ctx is done.
func (c *Client) NegotiatedVersion(ctx context.Context) (string, error) {
	if v := c.cachedVersion(); v != "" {
		return v, nil
	}

	ch := c.negotiation.DoChan("negotiate", func() (any, error) {
		if v := c.cachedVersion(); v != "" {
			return v, nil
		}
		return c.negotiate(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) cachedVersion() string {
	c.versionMu.Lock()
	defer c.versionMu.Unlock()
	return c.version
}

// negotiate asks the hosts in turn for their versions. A host that answers
// with an error status is skipped like an unreachable one.
func (c *Client) negotiate(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: apiVersionPath, nextHostOnError: true})
	if err != nil {
		var connErr *ConnectivityError
		if errors.As(err, &connErr) {
			return "", err
		}
		return "", &ConnectivityError{Hosts: c.hosts, Err: fmt.Errorf("api version negotiation: %w", err)}
	}

	var body apiVersionResponse
	if err := resp.Decode(&body); err != nil {
		return "", &ConnectivityError{Hosts: c.hosts, Err: err}
	}

	v, ok := pickVersion(c.supported, body.Versions)
	if !ok {
		return "", &ConnectivityError{
			Hosts: c.hosts,
			Err:   fmt.Errorf("%w: sdk %v, core %v", ErrIncompatibleVersion, c.supported, body.Versions),
		}
	}

	c.versionMu.Lock()
	c.version = v
	c.versionMu.Unlock()
	c.logger.Info("negotiated core api version", "version", v)
	return v, nil
}

// pickVersion returns the greatest version present in both lists.
func pickVersion(ours, theirs []string) (string, bool) {
	have := make(map[string]struct{}, len(theirs))
	for _, v := range theirs {
		have[strings.TrimSpace(v)] = struct{}{}
	}

	best := ""
	for _, v := range ours {
		if _, ok := have[v]; !ok {
			continue
		}
		if best == "" || compareVersions(v, best) > 0 {
			best = v
		}
	}
	return best, best != ""
}

// compareVersions compares dotted numeric versions. Missing components count as 0,
// so "3" == "3.0" and "3.10" > "3.9".
func compareVersions(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := range max(len(as), len(bs)) {
		x, y := versionPart(as, i), versionPart(bs, i)
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}

func versionPart(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(parts[i])
	if err != nil {
		return 0
	}
	return n
}
