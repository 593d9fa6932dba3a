package event

// payload is the union of the fields the bridge extracts from GitHub webhook
// bodies. Every field is optional: extraction functions substitute a
// placeholder for anything missing instead of failing.
type payload struct {
	Action      string       `json:"action"`
	Ref         string       `json:"ref"`
	RefType     string       `json:"ref_type"`
	Zen         string       `json:"zen"`
	Repository  *repository  `json:"repository"`
	Sender      *user        `json:"sender"`
	Pusher      *user        `json:"pusher"`
	Commits     []commit     `json:"commits"`
	Issue       *issue       `json:"issue"`
	PullRequest *pullRequest `json:"pull_request"`
	Comment     *comment     `json:"comment"`
	Release     *release     `json:"release"`
}

type repository struct {
	FullName        string `json:"full_name"`
	HTMLURL         string `json:"html_url"`
	StargazersCount int    `json:"stargazers_count"`
	ForksCount      int    `json:"forks_count"`
}

type user struct {
	Login string `json:"login"`
	Name  string `json:"name"`
	Type  string `json:"type"`
}

type commit struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	URL     string `json:"url"`
}

type issue struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	HTMLURL string `json:"html_url"`
}

type pullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	HTMLURL string `json:"html_url"`
	Merged  bool   `json:"merged"`
}

type comment struct {
	Body     string `json:"body"`
	CommitID string `json:"commit_id"`
	HTMLURL  string `json:"html_url"`
}

type release struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
	HTMLURL string `json:"html_url"`
}

// actor returns the display name of whoever triggered the event. Push
// payloads identify the actor in pusher.name, everything else in sender.login.
func (p *payload) actor() string {
	if p.Sender != nil && p.Sender.Login != "" {
		return p.Sender.Login
	}
	if p.Pusher != nil && p.Pusher.Name != "" {
		return p.Pusher.Name
	}
	return placeholder
}

// repo returns the repository's full name, or the placeholder.
func (p *payload) repo() string {
	if p.Repository != nil && p.Repository.FullName != "" {
		return p.Repository.FullName
	}
	return placeholder
}

// fromBot reports whether the sending account is a bot account.
func (p *payload) fromBot() bool {
	return p.Sender != nil && p.Sender.Type == "Bot"
}

// url returns the most specific link the payload carries for this kind,
// falling back to the repository page.
func (p *payload) url(kind Kind) string {
	switch kind {
	case KindIssues:
		if p.Issue != nil && p.Issue.HTMLURL != "" {
			return p.Issue.HTMLURL
		}
	case KindPullRequest:
		if p.PullRequest != nil && p.PullRequest.HTMLURL != "" {
			return p.PullRequest.HTMLURL
		}
	case KindRelease:
		if p.Release != nil && p.Release.HTMLURL != "" {
			return p.Release.HTMLURL
		}
	case KindIssueComment, KindCommitComment:
		if p.Comment != nil && p.Comment.HTMLURL != "" {
			return p.Comment.HTMLURL
		}
	case KindPush:
		if len(p.Commits) > 0 && p.Commits[len(p.Commits)-1].URL != "" {
			return p.Commits[len(p.Commits)-1].URL
		}
	}
	if p.Repository != nil && p.Repository.HTMLURL != "" {
		return p.Repository.HTMLURL
	}
	return ""
}
