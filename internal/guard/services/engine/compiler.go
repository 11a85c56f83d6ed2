package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/Nomad06/brain-defender/internal/guard/domain"
)

// Compiled is the output of one active-set compilation: the matcher, an
// index of every configured site (blocked or not, used to attribute visits),
// and whether any site carries conditional rules (gates rebuild-on-stats
// churn).
type Compiled struct {
	Active         *ActiveSet
	Sites          map[string]domain.Site
	AnyConditional bool
}

// MatchSite resolves a navigated host to the configured site covering it,
// walking parent domains so subdomain visits count against the apex entry.
func (c *Compiled) MatchSite(host string) (string, bool) {
	for cand := host; cand != ""; {
		if _, ok := c.Sites[cand]; ok {
			return cand, true
		}
		i := strings.IndexByte(cand, '.')
		if i < 0 {
			break
		}
		cand = cand[i+1:]
	}
	return "", false
}

// Compile merges the four inputs into the canonical blocked-host set.
//
// Base pass, per site:
//  1. an active temp-whitelist entry excludes the host;
//  2. otherwise, a non-empty conditional rule list whose evaluation says
//     don't-block excludes it;
//  3. otherwise the schedule decides.
//
// After the base pass, an active focus session unions its hosts in. Session
// hosts are never suppressed by base-pass exclusions: a session is a
// voluntary addition, not a relaxation.
func Compile(sites []domain.Site, stats StatsRepo, whitelist []domain.TempWhitelistEntry, session *domain.FocusSession, now time.Time) (*Compiled, error) {
	whitelisted := make(map[string]bool, len(whitelist))
	for _, e := range whitelist {
		if e.ActiveAt(now) {
			whitelisted[e.Host] = true
		}
	}

	out := &Compiled{Sites: make(map[string]domain.Site, len(sites))}
	blocked := make(map[string]struct{})
	for _, site := range sites {
		out.Sites[site.Host] = site
		if site.HasConditionalRules() {
			out.AnyConditional = true
		}
		if whitelisted[site.Host] {
			continue
		}
		if site.HasConditionalRules() {
			st, err := stats.GetStats(site.Host)
			if err != nil {
				return nil, fmt.Errorf("stats for %q: %w", site.Host, err)
			}
			if !domain.EvaluateRules(site.ConditionalRules, st, now) {
				continue
			}
		}
		if !domain.IsScheduleActive(site.Schedule, now) {
			continue
		}
		blocked[site.Host] = struct{}{}
	}

	if session != nil && session.ActiveAt(now) {
		for _, host := range session.Hosts {
			blocked[host] = struct{}{}
			if _, known := out.Sites[host]; !known {
				// Synthesize a minimal record so visit attribution works
				// for session-only hosts.
				out.Sites[host] = domain.Site{
					Host:             host,
					AddedAt:          now,
					ConditionalRules: []domain.ConditionalRule{},
				}
			}
		}
	}

	hosts := make([]string, 0, len(blocked))
	for h := range blocked {
		hosts = append(hosts, h)
	}
	out.Active = NewActiveSet(hosts)
	return out, nil
}
