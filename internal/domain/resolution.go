package domain

// ResolutionTier names the search location where a transcoder was found.
type ResolutionTier string

const (
	TierUserConfigured ResolutionTier = "user-configured"
	TierCoLocated      ResolutionTier = "co-located"
	TierSystemPath     ResolutionTier = "system-path"
)

// ProbeResult explains the verdict for one candidate path.
type ProbeResult string

const (
	ProbeFound         ProbeResult = "found"
	ProbeNotFound      ProbeResult = "not_found"
	ProbeNotAFile      ProbeResult = "not_a_file"
	ProbeNotExecutable ProbeResult = "not_executable"
	ProbeIgnored       ProbeResult = "ignored"
)

// ProbeAttempt is one entry in a resolution trace.
type ProbeAttempt struct {
	Tier   ResolutionTier `json:"tier"`
	Path   string         `json:"path"`
	Result ProbeResult    `json:"result"`
	Detail string         `json:"detail,omitempty"`
}

// ResolvedExecutable is a transcoder binary located by the resolver.
type ResolvedExecutable struct {
	Path  string         `json:"path"`
	Tier  ResolutionTier `json:"tier"`
	Trace []ProbeAttempt `json:"trace"`
}
