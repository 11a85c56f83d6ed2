package engine

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"

	"github.com/Nomad06/brain-defender/internal/guard/domain"
)

// hostShape is the canonical-host sanity check applied before a match
// pattern is built. Anything outside it would poison the pattern.
var hostShape = regexp.MustCompile(`^[a-z0-9]([a-z0-9._-]*[a-z0-9])?$`)

// Projector turns the blocked-host set into validated, ID-stamped
// match/redirect rules. IDs advance monotonically from a watermark so a
// freshly projected batch never collides with rules still installed.
type Projector struct {
	maxRules   int
	landingURL string
	nextID     uint64
}

// NewProjector returns a Projector bounded by the platform's maximum rule
// count. landingURL is the redirect target; the original URL is appended as
// the "from" query parameter by the filter engine's {url} substitution.
func NewProjector(maxRules int, landingURL string) *Projector {
	return &Projector{maxRules: maxRules, landingURL: landingURL, nextID: 0}
}

// SetWatermark moves the ID watermark so the next projected rule gets
// watermark+1. Called at boot with the highest installed ID.
func (p *Projector) SetWatermark(id uint64) {
	if id > p.nextID {
		p.nextID = id
	}
}

// Project builds one rule per host, deterministic for a given host list and
// watermark. Hosts whose pattern cannot be built are skipped and returned in
// the second value; a host count beyond the platform maximum is fatal for
// the whole batch (domain.ErrCapacity) and nothing is projected.
func (p *Projector) Project(hosts []string) ([]domain.ProjectedRule, []string, error) {
	if len(hosts) > p.maxRules {
		return nil, nil, fmt.Errorf("%d hosts over limit %d: %w", len(hosts), p.maxRules, domain.ErrCapacity)
	}
	sorted := append([]string(nil), hosts...)
	sort.Strings(sorted)

	rules := make([]domain.ProjectedRule, 0, len(sorted))
	var skipped []string
	for _, host := range sorted {
		pattern, err := matchPattern(host)
		if err != nil {
			skipped = append(skipped, host)
			continue
		}
		p.nextID++
		rules = append(rules, domain.ProjectedRule{
			ID:             p.nextID,
			MatchPattern:   pattern,
			RedirectTarget: p.landingURL + "?from={url}",
		})
	}
	return rules, skipped, nil
}

// matchPattern builds the per-host pattern: http or https, optional
// subdomain labels, optional path.
func matchPattern(host string) (string, error) {
	if !hostShape.MatchString(host) {
		return "", fmt.Errorf("host %q cannot form a match pattern", host)
	}
	pattern := `^https?://([a-z0-9-]+\.)*` + regexp.QuoteMeta(host) + `(/.*)?$`
	if _, err := regexp.Compile(pattern); err != nil {
		return "", fmt.Errorf("pattern for %q does not compile: %w", host, err)
	}
	return pattern, nil
}

// RedirectFor returns the concrete landing URL for one blocked navigation,
// carrying the original URL in the "from" parameter.
func (p *Projector) RedirectFor(originalURL string) string {
	return p.landingURL + "?from=" + url.QueryEscape(originalURL)
}
