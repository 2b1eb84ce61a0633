package search

import (
	"github.com/poiesic/docscope/index"
	"github.com/poiesic/docscope/scope"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string, s scope.Scope)
	AfterScope(filter scope.Filter)
	AfterEmbedding(hasVector bool)
	AfterBackend(outcome index.Outcome, hits []index.Hit)
	Finish(resp *Response)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ scope.Scope)              {}
func (n *noopMonitor) AfterScope(_ scope.Filter)                  {}
func (n *noopMonitor) AfterEmbedding(_ bool)                      {}
func (n *noopMonitor) AfterBackend(_ index.Outcome, _ []index.Hit) {}
func (n *noopMonitor) Finish(_ *Response)                         {}
