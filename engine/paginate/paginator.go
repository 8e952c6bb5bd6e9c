// Package paginate slices large result sets into token-budgeted pages.
//
// Pagination is a safety net against over-large tool responses, so it must be
// more reliable than the responses it protects: it never fails, it degrades
// to a valid (possibly empty) page instead.
package paginate

import (
	"github.com/compozy/astsearch/engine/estimate"
	"github.com/compozy/astsearch/pkg/logger"
)

// Budgets maps a response type tag to its token ceiling. The "default" entry
// is required and used for unrecognized tags.
type Budgets map[string]int

// DefaultBudgets returns the built-in token ceilings per response type
func DefaultBudgets() Budgets {
	return Budgets{
		"default":  20000,
		"search":   15000,
		"analysis": 18000,
		"minimal":  8000,
	}
}

// Tunables control the auto page-size heuristic. The values are tuning
// knobs with no derivation behind them; override via config when retuning.
type Tunables struct {
	// PageFill is the fraction of the budget a page should target, leaving
	// headroom for envelope and metadata fields
	PageFill float64
	// MaxPageSize bounds worst-case response size when items are tiny
	MaxPageSize int
	// EmptyPageSize is used when there is no representative item to measure
	EmptyPageSize int
}

// DefaultTunables returns the built-in heuristic values
func DefaultTunables() Tunables {
	return Tunables{
		PageFill:      0.6,
		MaxPageSize:   50,
		EmptyPageSize: 20,
	}
}

// Paginator slices ordered item lists into pages that fit a token budget
type Paginator struct {
	budgets   Budgets
	tunables  Tunables
	estimator *estimate.Estimator
}

// NewPaginator creates a paginator; nil budgets select the defaults
func NewPaginator(budgets Budgets) *Paginator {
	return NewPaginatorWithTunables(budgets, DefaultTunables())
}

// NewPaginatorWithTunables creates a paginator with explicit heuristic values
func NewPaginatorWithTunables(budgets Budgets, tunables Tunables) *Paginator {
	if len(budgets) == 0 {
		budgets = DefaultBudgets()
	}
	if tunables.PageFill <= 0 || tunables.PageFill > 1 {
		tunables.PageFill = DefaultTunables().PageFill
	}
	if tunables.MaxPageSize < 1 {
		tunables.MaxPageSize = DefaultTunables().MaxPageSize
	}
	if tunables.EmptyPageSize < 1 {
		tunables.EmptyPageSize = DefaultTunables().EmptyPageSize
	}
	return &Paginator{
		budgets:   budgets,
		tunables:  tunables,
		estimator: estimate.NewEstimator(),
	}
}

// Budget returns the token ceiling for a response type
func (p *Paginator) Budget(responseType string) int {
	if limit, ok := p.budgets[responseType]; ok {
		return limit
	}
	return p.budgets["default"]
}

// ShouldPaginate reports whether data exceeds the token budget for its
// response type. It never mutates data and never fails.
func (p *Paginator) ShouldPaginate(data any, responseType string) bool {
	limit := p.Budget(responseType)
	tokens := p.estimator.Tokens(data)
	if tokens > limit {
		logger.Info("response exceeds token budget, pagination will be applied",
			"estimated_tokens", tokens,
			"response_type", responseType,
			"limit", limit,
		)
	}
	return tokens > limit
}

// Info describes the position of a page within the full result set
type Info struct {
	TotalCount   int  `json:"total_count"`
	Page         int  `json:"page"`
	PageSize     int  `json:"page_size"`
	TotalPages   int  `json:"total_pages"`
	HasNext      bool `json:"has_next"`
	HasPrevious  bool `json:"has_previous"`
	NextPage     *int `json:"next_page"`
	PreviousPage *int `json:"previous_page"`
}

// Result is one page of items plus an optional aggregate over the whole set
type Result[T any] struct {
	Items      []T            `json:"items"`
	Pagination Info           `json:"pagination"`
	Summary    map[string]any `json:"summary,omitempty"`
}

// SummaryFunc aggregates the full item list (not just the page) into a
// JSON-serializable summary
type SummaryFunc[T any] func(items []T) (map[string]any, error)

// List paginates items. Page numbering is 1-based and clamped into the valid
// range; pageSize <= 0 selects the auto heuristic. A failing or panicking
// summaryFn is logged and yields a nil summary, never an error.
func List[T any](
	p *Paginator,
	items []T,
	page int,
	pageSize int,
	responseType string,
	summaryFn SummaryFunc[T],
) Result[T] {
	totalCount := len(items)

	if pageSize <= 0 {
		pageSize = autoPageSize(p, items, responseType)
	}

	totalPages := (totalCount + pageSize - 1) / pageSize

	// Clamp into [1, totalPages]; an empty set still yields page 1
	page = min(page, totalPages)
	page = max(page, 1)

	start := min((page-1)*pageSize, totalCount)
	end := min(start+pageSize, totalCount)

	summary := runSummary(items, summaryFn)

	result := Result[T]{
		Items: items[start:end],
		Pagination: Info{
			TotalCount:  totalCount,
			Page:        page,
			PageSize:    pageSize,
			TotalPages:  totalPages,
			HasNext:     page < totalPages,
			HasPrevious: page > 1,
		},
		Summary: summary,
	}
	if result.Pagination.HasNext {
		next := page + 1
		result.Pagination.NextPage = &next
	}
	if result.Pagination.HasPrevious {
		prev := page - 1
		result.Pagination.PreviousPage = &prev
	}
	return result
}

// autoPageSize targets PageFill of the budget based on the first item's
// estimated cost, clamped to [1, MaxPageSize]
func autoPageSize[T any](p *Paginator, items []T, responseType string) int {
	if len(items) == 0 {
		return p.tunables.EmptyPageSize
	}

	itemTokens := max(p.estimator.Tokens(items[0]), 1)
	target := int(float64(p.Budget(responseType)) * p.tunables.PageFill)
	size := max(target/itemTokens, 1)
	return min(size, p.tunables.MaxPageSize)
}

func runSummary[T any](items []T, summaryFn SummaryFunc[T]) (summary map[string]any) {
	if summaryFn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("summary function panicked", "panic", r)
			summary = nil
		}
	}()
	s, err := summaryFn(items)
	if err != nil {
		logger.Warn("failed to generate summary", "error", err)
		return nil
	}
	return s
}
