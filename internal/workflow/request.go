package workflow

import (
	"fmt"
	"strings"

	"siren/internal/services"
)

const playPrefix = "play:"

// Request asks for one song, optionally to be played once it is ready.
type Request struct {
	CID  string
	Play bool
}

func (r Request) String() string {
	if r.Play {
		return playPrefix + r.CID
	}
	return r.CID
}

// ParseRequest reads "<cid>" or "play:<cid>".
func ParseRequest(arg string) (Request, error) {
	arg = strings.TrimSpace(arg)
	req := Request{CID: arg}
	if rest, ok := strings.CutPrefix(arg, playPrefix); ok {
		req = Request{CID: strings.TrimSpace(rest), Play: true}
	}
	if req.CID == "" {
		return Request{}, services.Wrap(services.ErrValidation, "workflow", "parse request", fmt.Sprintf("no song cid in %q", arg), nil)
	}
	if strings.ContainsAny(req.CID, "/\\") {
		return Request{}, services.Wrap(services.ErrValidation, "workflow", "parse request", fmt.Sprintf("invalid song cid %q", req.CID), nil)
	}
	return req, nil
}

// ParseRequests parses every argument and stops at the first invalid one.
func ParseRequests(args []string) ([]Request, error) {
	requests := make([]Request, 0, len(args))
	for _, arg := range args {
		req, err := ParseRequest(arg)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// mergeRequests keeps the first request of every cid in order. A song is
// played when any of its requests asked for it.
func mergeRequests(requests []Request) []Request {
	index := make(map[string]int, len(requests))
	merged := make([]Request, 0, len(requests))
	for _, req := range requests {
		if i, ok := index[req.CID]; ok {
			merged[i].Play = merged[i].Play || req.Play
			continue
		}
		index[req.CID] = len(merged)
		merged = append(merged, req)
	}
	return merged
}
