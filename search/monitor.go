package search

import "github.com/poiesic/trigrep/core"

// SearchMonitor provides hooks to observe the query pipeline.
// Implement this interface to track planning and verification as they run.
type SearchMonitor interface {
	Start(pattern string)
	AfterPlan(plan *Plan)
	CandidateVerified(path string, hits int)
	CandidateStale(c StaleCandidate)
	Finish(matches []core.Match)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                    {}
func (n *noopMonitor) AfterPlan(_ *Plan)                 {}
func (n *noopMonitor) CandidateVerified(_ string, _ int) {}
func (n *noopMonitor) CandidateStale(_ StaleCandidate)   {}
func (n *noopMonitor) Finish(_ []core.Match)             {}
