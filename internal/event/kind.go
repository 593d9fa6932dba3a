package event

// Kind classifies an inbound webhook payload.
type Kind string

// Recognized event kinds. KindUnknown is a real member of the enumeration:
// it can be enabled like any other kind to receive events the bridge has no
// dedicated template for.
const (
	KindPing          Kind = "ping"
	KindPush          Kind = "push"
	KindStar          Kind = "star"
	KindFork          Kind = "fork"
	KindIssues        Kind = "issues"
	KindIssueComment  Kind = "issue_comment"
	KindPullRequest   Kind = "pull_request"
	KindRelease       Kind = "release"
	KindCreate        Kind = "create"
	KindDelete        Kind = "delete"
	KindCommitComment Kind = "commit_comment"
	KindUnknown       Kind = "unknown"
)

var allKinds = []Kind{
	KindPush,
	KindStar,
	KindFork,
	KindIssues,
	KindIssueComment,
	KindPullRequest,
	KindRelease,
	KindCreate,
	KindDelete,
	KindCommitComment,
	KindPing,
	KindUnknown,
}

// Kinds returns every member of the enumeration in display order.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// ParseKind maps a tag to its Kind. ok is false when the tag is not part of
// the enumeration, which callers (command parsing, config validation) report
// as an error rather than silently coercing to KindUnknown.
func ParseKind(tag string) (Kind, bool) {
	for _, k := range allKinds {
		if string(k) == tag {
			return k, true
		}
	}
	return "", false
}

// kindOf maps the provider's event header to a Kind. Absent or unrecognized
// values classify as KindUnknown; this is normal input, not an error.
func kindOf(header string) Kind {
	if k, ok := ParseKind(header); ok {
		return k
	}
	return KindUnknown
}
