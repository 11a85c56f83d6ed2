package engine

import (
	"sort"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
)

// bloomFPRate is the target false-positive rate for the navigation prefilter.
const bloomFPRate = 0.001

// ActiveSet is the compiled blocked-host set. Matching is apex-inclusive: a
// blocked host blocks all of its subdomains. A Bloom filter over reversed
// suffix anchors gives the hot navigation path a cheap definite-negative
// check before the suffix walk.
type ActiveSet struct {
	hosts  map[string]struct{}
	filter *bloom.BloomFilter
}

// NewActiveSet builds the matcher for the given blocked hosts. Hosts are
// expected to be canonical already.
func NewActiveSet(hosts []string) *ActiveSet {
	a := &ActiveSet{hosts: make(map[string]struct{}, len(hosts))}
	for _, h := range hosts {
		a.hosts[h] = struct{}{}
	}
	if len(a.hosts) > 0 {
		a.filter = bloom.NewWithEstimates(uint(len(a.hosts)), bloomFPRate)
		for h := range a.hosts {
			a.filter.Add([]byte(reverseString(h)))
		}
	}
	return a
}

// Len returns the number of blocked hosts; this is the badge count.
func (a *ActiveSet) Len() int { return len(a.hosts) }

// Hosts returns the blocked hosts in sorted order.
func (a *ActiveSet) Hosts() []string {
	hosts := make([]string, 0, len(a.hosts))
	for h := range a.hosts {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}

// Contains reports whether host or any of its parent domains is blocked.
func (a *ActiveSet) Contains(host string) bool {
	if len(a.hosts) == 0 {
		return false
	}
	if !a.mightContain(host) {
		return false
	}
	for cand := host; cand != ""; {
		if _, ok := a.hosts[cand]; ok {
			return true
		}
		i := strings.IndexByte(cand, '.')
		if i < 0 {
			break
		}
		cand = cand[i+1:]
	}
	return false
}

// mightContain tests reversed anchors for host and each parent domain,
// most-specific to apex. A false result is a definite miss.
func (a *ActiveSet) mightContain(host string) bool {
	if a.filter == nil {
		return true
	}
	for cand := host; cand != ""; {
		if a.filter.Test([]byte(reverseString(cand))) {
			return true
		}
		i := strings.IndexByte(cand, '.')
		if i < 0 {
			break
		}
		cand = cand[i+1:]
	}
	return false
}

// reverseString reverses the string bytes so suffix anchors share a common
// prefix in the filter keyspace.
func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
