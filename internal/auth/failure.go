package auth

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/oauth2"
)

// FailureKind classifies authentication failures by the action they need.
type FailureKind int

const (
	// GenericAuthError is any failure without a dedicated recovery path.
	GenericAuthError FailureKind = iota
	// InvalidClient means the provider rejected the configured client id.
	InvalidClient
	// OriginMismatch means the calling origin is not registered for the client.
	OriginMismatch
)

func (k FailureKind) String() string {
	switch k {
	case InvalidClient:
		return "invalid_client"
	case OriginMismatch:
		return "origin_mismatch"
	}
	return "generic"
}

// Failure is a classified authentication failure.
type Failure struct {
	Kind FailureKind
	// Origin is set for OriginMismatch.
	Origin  string
	Message string
	Err     error
}

func (f *Failure) Error() string {
	switch f.Kind {
	case InvalidClient:
		return "invalid client id: " + f.Message
	case OriginMismatch:
		return "origin not authorized for client: " + f.Origin
	}
	return f.Message
}

func (f *Failure) Unwrap() error { return f.Err }

var (
	// Google's identity services phrase it this way.
	notValidOriginRe = regexp.MustCompile(`Not a valid origin for the client: (\S+)`)
	originParamRe    = regexp.MustCompile(`origin[=:]\s*(https?://[^\s,;"']+)`)
)

const (
	legacyOriginPrefix = "AUTH_ERROR: ORIGIN_MISMATCH: "
	legacyClientPrefix = "AUTH_ERROR: Client ID"
)

// Classify maps a provider error onto a Failure. It never returns nil for a
// non-nil err.
func Classify(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	msg := err.Error()

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		switch re.ErrorCode {
		case "invalid_client", "unauthorized_client":
			return &Failure{Kind: InvalidClient, Message: describe(re), Err: err}
		case "origin_mismatch", "redirect_uri_mismatch":
			return &Failure{Kind: OriginMismatch, Origin: extractOrigin(re.ErrorDescription), Message: describe(re), Err: err}
		}
	}

	if i := strings.Index(msg, legacyOriginPrefix); i >= 0 {
		origin := strings.TrimSpace(msg[i+len(legacyOriginPrefix):])
		if j := strings.Index(origin, ": "); j >= 0 {
			origin = origin[:j]
		}
		return &Failure{Kind: OriginMismatch, Origin: origin, Message: msg, Err: err}
	}
	if strings.Contains(msg, legacyClientPrefix) {
		return &Failure{Kind: InvalidClient, Message: msg, Err: err}
	}
	if m := notValidOriginRe.FindStringSubmatch(msg); m != nil {
		return &Failure{Kind: OriginMismatch, Origin: strings.TrimRight(m[1], ".,"), Message: msg, Err: err}
	}
	if strings.Contains(msg, "invalid_client") {
		return &Failure{Kind: InvalidClient, Message: msg, Err: err}
	}
	return &Failure{Kind: GenericAuthError, Message: msg, Err: err}
}

func describe(re *oauth2.RetrieveError) string {
	if re.ErrorDescription != "" {
		return re.ErrorDescription
	}
	return re.ErrorCode
}

func extractOrigin(s string) string {
	if m := notValidOriginRe.FindStringSubmatch(s); m != nil {
		return strings.TrimRight(m[1], ".,")
	}
	if m := originParamRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}
