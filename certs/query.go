package certs

import (
	"sort"
	"strings"
)

// FilterAll is the sentinel filter value that disables a filter.
const FilterAll = "all"

// QueryOptions describes one list query over the canonical collection.
// Zero values disable the corresponding behavior: empty search matches
// everything, empty (or "all") filters are off, Page/PageSize fall
// back to 1 and DefaultPageSize.
type QueryOptions struct {
	Search string
	Status string
	Type   string
	Issuer string

	SortBy    string // archive_name, issuer, subject_cn, not_before, not_after, days_to_expiry, status, key_length, file_size
	SortOrder string // asc (default) or desc

	Page     int
	PageSize int

	// Exclude removes certificates whose ID is in the set after
	// filtering, before sorting and pagination. Used for treated
	// markers; the query engine does not manage the marker store.
	Exclude map[string]struct{}
}

// DefaultPageSize matches the upstream dashboard's page size.
const DefaultPageSize = 20

// Pagination is the page envelope returned with every list query.
type Pagination struct {
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// IssuerCount is one per-issuer aggregate.
type IssuerCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats aggregates lifecycle counts over a collection.
type Stats struct {
	Total        int           `json:"total"`
	Valid        int           `json:"valid"`
	ExpiringSoon int           `json:"expiring_soon"`
	Expired      int           `json:"expired"`
	Issuers      []IssuerCount `json:"issuers"`
}

// QueryResult is a single page of results plus the aggregates over
// the filtered (pre-pagination) set.
type QueryResult struct {
	Certificates []Certificate `json:"certificates"`
	Pagination   Pagination    `json:"pagination"`

	// FilteredStats is computed over the filtered collection before
	// pagination, for stat cards tied to the current filters. Use
	// ComputeStats over the full collection for the top-level
	// dashboard counters; the two are deliberately distinct.
	FilteredStats Stats `json:"-"`
}

// Query applies search, filters, sort and pagination over the
// collection. The input slice is never mutated.
func Query(collection []Certificate, opts QueryOptions) QueryResult {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = DefaultPageSize
	}

	filtered := filter(collection, opts)
	sortCerts(filtered, opts.SortBy, opts.SortOrder)

	total := len(filtered)
	pages := (total + opts.PageSize - 1) / opts.PageSize

	start := (opts.Page - 1) * opts.PageSize
	end := start + opts.PageSize
	var page []Certificate
	switch {
	case start >= total:
		page = []Certificate{} // beyond range: empty page, not an error
	case end > total:
		page = filtered[start:total]
	default:
		page = filtered[start:end]
	}

	return QueryResult{
		Certificates: page,
		Pagination: Pagination{
			Page:  opts.Page,
			Size:  opts.PageSize,
			Total: total,
			Pages: pages,
		},
		FilteredStats: ComputeStats(filtered),
	}
}

// FilterByStatus returns the subset with the given status. An empty
// or "all" status returns the input unchanged. Export applies this
// identically to the query engine's status filter.
func FilterByStatus(collection []Certificate, status string) []Certificate {
	if !filterActive(status) {
		return collection
	}
	out := make([]Certificate, 0, len(collection))
	for _, c := range collection {
		if string(c.Status) == status {
			out = append(out, c)
		}
	}
	return out
}

// ComputeStats aggregates lifecycle and per-issuer counts. Issuers
// are ordered by descending count, ties by name, so repeated runs on
// the same collection produce identical output.
func ComputeStats(collection []Certificate) Stats {
	stats := Stats{Total: len(collection)}
	byIssuer := make(map[string]int)

	for _, c := range collection {
		switch c.Status {
		case StatusValid:
			stats.Valid++
		case StatusExpiringSoon:
			stats.ExpiringSoon++
		case StatusExpired:
			stats.Expired++
		}
		if c.Issuer != "" {
			byIssuer[c.Issuer]++
		}
	}

	stats.Issuers = make([]IssuerCount, 0, len(byIssuer))
	for name, count := range byIssuer {
		stats.Issuers = append(stats.Issuers, IssuerCount{Name: name, Count: count})
	}
	sort.Slice(stats.Issuers, func(i, j int) bool {
		if stats.Issuers[i].Count != stats.Issuers[j].Count {
			return stats.Issuers[i].Count > stats.Issuers[j].Count
		}
		return stats.Issuers[i].Name < stats.Issuers[j].Name
	})

	return stats
}

func filterActive(value string) bool {
	return value != "" && value != FilterAll
}

func filter(collection []Certificate, opts QueryOptions) []Certificate {
	search := strings.ToLower(strings.TrimSpace(opts.Search))
	out := make([]Certificate, 0, len(collection))

	for _, c := range collection {
		if opts.Exclude != nil {
			if _, skip := opts.Exclude[c.ID]; skip {
				continue
			}
		}
		if search != "" && !matchesSearch(c, search) {
			continue
		}
		if filterActive(opts.Status) && string(c.Status) != opts.Status {
			continue
		}
		if filterActive(opts.Type) && !strings.Contains(strings.ToLower(string(c.Type)), strings.ToLower(opts.Type)) {
			continue
		}
		if filterActive(opts.Issuer) && !strings.Contains(strings.ToLower(c.Issuer), strings.ToLower(opts.Issuer)) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// matchesSearch reports whether any of the display name, issuer or
// identifier contains the lowercased term.
func matchesSearch(c Certificate, term string) bool {
	return strings.Contains(strings.ToLower(c.ArchiveName), term) ||
		strings.Contains(strings.ToLower(c.Issuer), term) ||
		strings.Contains(strings.ToLower(c.ID), term) ||
		strings.Contains(strings.ToLower(c.SerialNumber), term)
}

// sortCerts orders the slice by the named field. String fields
// compare case-insensitively; "desc" reverses the comparator only.
// The sort is stable so ties keep their prior relative order, which
// keeps pagination reproducible across identical queries.
func sortCerts(collection []Certificate, sortBy, sortOrder string) {
	less := comparator(sortBy)
	if strings.EqualFold(sortOrder, "desc") {
		inner := less
		less = func(a, b Certificate) bool { return inner(b, a) }
	}
	sort.SliceStable(collection, func(i, j int) bool {
		return less(collection[i], collection[j])
	})
}

func comparator(sortBy string) func(a, b Certificate) bool {
	switch sortBy {
	case "archive_name", "name":
		return func(a, b Certificate) bool { return lessFold(a.ArchiveName, b.ArchiveName) }
	case "issuer":
		return func(a, b Certificate) bool { return lessFold(a.Issuer, b.Issuer) }
	case "subject_cn":
		return func(a, b Certificate) bool { return lessFold(a.SubjectCN, b.SubjectCN) }
	case "not_before":
		return func(a, b Certificate) bool { return a.NotBefore.Before(b.NotBefore) }
	case "days_to_expiry":
		return func(a, b Certificate) bool { return a.DaysToExpiry < b.DaysToExpiry }
	case "status":
		return func(a, b Certificate) bool { return lessFold(string(a.Status), string(b.Status)) }
	case "key_length":
		return func(a, b Certificate) bool { return a.KeyLength < b.KeyLength }
	case "file_size":
		return func(a, b Certificate) bool { return a.FileSize < b.FileSize }
	default: // not_after, the upstream dashboard's default
		return func(a, b Certificate) bool { return a.NotAfter.Before(b.NotAfter) }
	}
}

func lessFold(a, b string) bool {
	return strings.ToLower(a) < strings.ToLower(b)
}
