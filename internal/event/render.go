package event

import (
	"fmt"
	"strings"
)

// placeholder stands in for any payload field the provider did not send.
const placeholder = "(unknown)"

// render builds the one-line (occasionally multi-line for pushes and
// comments) summary for a classified payload. Each kind has its own
// template; unmapped actions fall back to a generic line for the kind so
// every classified event stays deliverable.
func (c *Classifier) render(kind Kind, rawKind string, p *payload) string {
	switch kind {
	case KindPing:
		return "🏓 Webhook connection test successful!"
	case KindPush:
		return c.renderPush(p)
	case KindStar:
		return renderStar(p)
	case KindFork:
		return fmt.Sprintf("🍴 [%s] %s forked the repository! Total: %d🍴",
			p.repo(), p.actor(), forksCount(p))
	case KindCreate:
		return fmt.Sprintf("🆕 [%s] %s created %s: %s",
			p.repo(), p.actor(), orPlaceholder(p.RefType), orPlaceholder(p.Ref))
	case KindDelete:
		return fmt.Sprintf("🗑️ [%s] %s deleted %s: %s",
			p.repo(), p.actor(), orPlaceholder(p.RefType), orPlaceholder(p.Ref))
	case KindIssues:
		return renderIssues(p)
	case KindIssueComment:
		return c.renderIssueComment(p)
	case KindPullRequest:
		return renderPullRequest(p)
	case KindRelease:
		return renderRelease(p)
	case KindCommitComment:
		return renderCommitComment(p)
	default:
		name := rawKind
		if name == "" {
			name = "unidentified"
		}
		return fmt.Sprintf("❔ [%s] %s sent a %s event", p.repo(), p.actor(), name)
	}
}

func (c *Classifier) renderPush(p *payload) string {
	pusher := placeholder
	if p.Pusher != nil && p.Pusher.Name != "" {
		pusher = p.Pusher.Name
	} else if p.Sender != nil && p.Sender.Login != "" {
		pusher = p.Sender.Login
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📮 [%s] %s pushed %d commit(s) to %s:",
		p.repo(), pusher, len(p.Commits), orPlaceholder(p.Ref))
	max := c.MaxCommits
	if max <= 0 {
		max = 5
	}
	for i, cm := range p.Commits {
		if i == max {
			fmt.Fprintf(&b, "\n  ... and %d more", len(p.Commits)-max)
			break
		}
		fmt.Fprintf(&b, "\n  [%s] %s", shortSHA(cm.ID), firstLine(cm.Message))
	}
	return b.String()
}

func renderStar(p *payload) string {
	switch p.Action {
	case "created":
		return fmt.Sprintf("💗 [%s] %s starred the repository! Total: %d⭐",
			p.repo(), p.actor(), starCount(p))
	case "deleted":
		return fmt.Sprintf("💔 [%s] %s unstarred the repository. Total: %d⭐",
			p.repo(), p.actor(), starCount(p))
	default:
		return fmt.Sprintf("⭐ [%s] %s %s a star", p.repo(), p.actor(), orPlaceholder(p.Action))
	}
}

func renderIssues(p *payload) string {
	num, title, url := issueFields(p)
	switch p.Action {
	case "opened":
		return fmt.Sprintf("📝 [%s] %s opened issue #%s: %s\n🔗 %s",
			p.repo(), p.actor(), num, title, url)
	case "closed":
		return fmt.Sprintf("✅ [%s] %s closed issue #%s: %s", p.repo(), p.actor(), num, title)
	case "reopened":
		return fmt.Sprintf("🔄 [%s] %s reopened issue #%s: %s", p.repo(), p.actor(), num, title)
	default:
		return fmt.Sprintf("📌 [%s] %s %s issue #%s: %s",
			p.repo(), p.actor(), orPlaceholder(p.Action), num, title)
	}
}

func (c *Classifier) renderIssueComment(p *payload) string {
	num, _, _ := issueFields(p)
	switch p.Action {
	case "created":
		return fmt.Sprintf("💬 [%s] %s commented on issue #%s:\n%s",
			p.repo(), p.actor(), num, c.commentText(p))
	case "edited":
		return fmt.Sprintf("✏️ [%s] %s edited comment on issue #%s", p.repo(), p.actor(), num)
	case "deleted":
		return fmt.Sprintf("🗑️ [%s] %s deleted comment on issue #%s", p.repo(), p.actor(), num)
	default:
		return fmt.Sprintf("💬 [%s] %s %s comment on issue #%s",
			p.repo(), p.actor(), orPlaceholder(p.Action), num)
	}
}

func renderPullRequest(p *payload) string {
	num, title, url := placeholder, placeholder, placeholder
	merged := false
	if pr := p.PullRequest; pr != nil {
		num = fmt.Sprintf("%d", pr.Number)
		title = orPlaceholder(pr.Title)
		url = orPlaceholder(pr.HTMLURL)
		merged = pr.Merged
	}
	switch {
	case p.Action == "opened":
		return fmt.Sprintf("🔀 [%s] %s opened PR #%s: %s\n🔗 %s",
			p.repo(), p.actor(), num, title, url)
	// GitHub reports merges as action=closed with pull_request.merged set.
	case p.Action == "closed" && merged:
		return fmt.Sprintf("🎉 [%s] %s merged PR #%s: %s", p.repo(), p.actor(), num, title)
	case p.Action == "closed":
		return fmt.Sprintf("✅ [%s] %s closed PR #%s: %s", p.repo(), p.actor(), num, title)
	case p.Action == "reopened":
		return fmt.Sprintf("🔄 [%s] %s reopened PR #%s: %s", p.repo(), p.actor(), num, title)
	default:
		return fmt.Sprintf("🔀 [%s] %s %s PR #%s: %s",
			p.repo(), p.actor(), orPlaceholder(p.Action), num, title)
	}
}

func renderRelease(p *payload) string {
	tag, name, url := placeholder, placeholder, placeholder
	if r := p.Release; r != nil {
		tag = orPlaceholder(r.TagName)
		name = orPlaceholder(r.Name)
		url = orPlaceholder(r.HTMLURL)
	}
	switch p.Action {
	case "published":
		return fmt.Sprintf("🚀 [%s] Released %s: %s\n🔗 %s", p.repo(), tag, name, url)
	case "created":
		return fmt.Sprintf("📦 [%s] Created release %s: %s", p.repo(), tag, name)
	default:
		return fmt.Sprintf("📦 [%s] %s release %s: %s",
			p.repo(), orPlaceholder(p.Action), tag, name)
	}
}

func renderCommitComment(p *payload) string {
	sha := placeholder
	if p.Comment != nil && p.Comment.CommitID != "" {
		sha = shortSHA(p.Comment.CommitID)
	}
	return fmt.Sprintf("💭 [%s] %s commented on commit %s", p.repo(), p.actor(), sha)
}

// commentText quotes the comment body, truncated to TruncateComment runes.
func (c *Classifier) commentText(p *payload) string {
	if p.Comment == nil || p.Comment.Body == "" {
		return placeholder
	}
	body := p.Comment.Body
	limit := c.TruncateComment
	if limit <= 0 {
		limit = 100
	}
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	return string(runes[:limit]) + "..."
}

func issueFields(p *payload) (num, title, url string) {
	num, title, url = placeholder, placeholder, placeholder
	if p.Issue != nil {
		num = fmt.Sprintf("%d", p.Issue.Number)
		title = orPlaceholder(p.Issue.Title)
		url = orPlaceholder(p.Issue.HTMLURL)
	}
	return num, title, url
}

func starCount(p *payload) int {
	if p.Repository != nil {
		return p.Repository.StargazersCount
	}
	return 0
}

func forksCount(p *payload) int {
	if p.Repository != nil {
		return p.Repository.ForksCount
	}
	return 0
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}

// shortSHA abbreviates a commit SHA to seven characters.
func shortSHA(sha string) string {
	if sha == "" {
		return placeholder
	}
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// firstLine returns the first line of a commit message.
func firstLine(msg string) string {
	if msg == "" {
		return placeholder
	}
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}
