package services

// Route is one operation derived from the OpenAPI document: the dispatch key
// (method plus templated path) and the contract's default responses keyed by
// status code.
type Route struct {
	Method    string
	Path      string // path with {placeholders}, chi-compatible
	RawPath   string // raw template as written in the document
	Responses map[int]DefaultResponse
}

// DefaultResponse is the example (or schema-derived) body documented for one
// status code. Body may be nil when the contract documents no content.
type DefaultResponse struct {
	Body any
}

// HappyPath picks the response the mock serves when no scenario applies:
// the lowest documented 2xx status, falling back to the lowest documented
// status of any class. Returns ok=false when the route documents nothing.
func HappyPath(r *Route) (int, any, bool) {
	if r == nil || len(r.Responses) == 0 {
		return 0, nil, false
	}

	best := 0
	for status := range r.Responses {
		if status < 200 || status > 299 {
			continue
		}
		if best == 0 || status < best {
			best = status
		}
	}
	if best == 0 {
		for status := range r.Responses {
			if best == 0 || status < best {
				best = status
			}
		}
	}

	return best, r.Responses[best].Body, true
}
