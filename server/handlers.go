package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/houzhh15/certindex/certs"
	"github.com/houzhh15/certindex/logging"
	"github.com/houzhh15/certindex/treated"
	"github.com/houzhh15/certindex/upstream"
)

// handleHealth reports liveness and the current inventory source so a
// degraded (fallback) state is visible from probes.
func (s *Server) handleHealth(c *gin.Context) {
	collection, source, fetchedAt := s.inventory.Snapshot()

	resp := gin.H{
		"status":             "healthy",
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
		"certificates_count": len(collection),
	}
	if source != "" {
		resp["source"] = source
		resp["refreshed_at"] = fetchedAt.UTC().Format(time.RFC3339)
		if source == upstream.SourceFallback {
			resp["status"] = "degraded"
		}
	}

	c.JSON(http.StatusOK, resp)
}

// queryOptionsFromRequest maps the list query parameters onto query
// options. Unknown values pass through; the query engine treats them
// as always-false filters.
func (s *Server) queryOptionsFromRequest(c *gin.Context) certs.QueryOptions {
	opts := certs.QueryOptions{
		Search:    c.Query("search"),
		Status:    c.DefaultQuery("status_filter", certs.FilterAll),
		Type:      c.DefaultQuery("type_filter", certs.FilterAll),
		Issuer:    c.DefaultQuery("issuer_filter", certs.FilterAll),
		SortBy:    c.DefaultQuery("sort_by", "not_after"),
		SortOrder: c.DefaultQuery("sort_order", "asc"),
		Page:      intQuery(c, "page", 1),
		PageSize:  intQuery(c, "size", certs.DefaultPageSize),
	}

	if c.Query("exclude_treated") == "true" && s.store != nil {
		ids, err := s.store.IdentifierSet(c.Request.Context())
		if err != nil {
			s.logger.Warn("Failed to load treated markers for exclusion", "error", err)
		} else {
			opts.Exclude = ids
		}
	}

	return opts
}

// handleList serves the paginated, filtered certificate listing. The
// stats in the envelope describe the filtered set, not the whole
// inventory; the dashboard stat cards follow the active filters.
func (s *Server) handleList(c *gin.Context) {
	collection, source, _ := s.inventory.Snapshot()
	opts := s.queryOptionsFromRequest(c)

	result := certs.Query(collection, opts)

	c.JSON(http.StatusOK, gin.H{
		"certificates": result.Certificates,
		"pagination":   result.Pagination,
		"stats":        result.FilteredStats,
		"source":       source,
	})
}

// handleDetails returns every certificate sharing an archive name.
// One archive can hold several certificates (a chain, or renewals).
func (s *Server) handleDetails(c *gin.Context) {
	name := c.Param("name")
	collection, _, _ := s.inventory.Snapshot()

	var matches []certs.Certificate
	for _, cert := range collection {
		if cert.ArchiveName == name {
			matches = append(matches, cert)
		}
	}

	if len(matches) == 0 {
		respondError(c, http.StatusNotFound, "not_found", "no certificate with this archive name")
		return
	}

	if s.audit != nil {
		event := &logging.DownloadEvent{
			Timestamp:   time.Now().UTC(),
			ArchiveName: name,
			SourceIP:    c.ClientIP(),
			User:        c.GetString("user"),
			Result:      "success",
		}
		if err := s.audit.LogDownload(c.Request.Context(), event); err != nil {
			s.logger.Warn("Failed to write download audit record", "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"archive_name": name,
		"certificates": matches,
	})
}

// handleStats serves dashboard counters over the full inventory,
// independent of any listing filters.
func (s *Server) handleStats(c *gin.Context) {
	collection, source, fetchedAt := s.inventory.Snapshot()
	stats := certs.ComputeStats(collection)

	c.JSON(http.StatusOK, gin.H{
		"total":         stats.Total,
		"valid":         stats.Valid,
		"expiring_soon": stats.ExpiringSoon,
		"expired":       stats.Expired,
		"issuers":       stats.Issuers,
		"source":        source,
		"refreshed_at":  fetchedAt.UTC().Format(time.RFC3339),
	})
}

// handleRescan forces an immediate upstream refresh.
func (s *Server) handleRescan(c *gin.Context) {
	if s.refresh == nil {
		respondError(c, http.StatusServiceUnavailable, "no_refresh", "refresh is not configured")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	if err := s.refresh(ctx, "rescan"); err != nil {
		s.logger.Error("Manual rescan failed", "error", err)
		respondError(c, http.StatusBadGateway, "refresh_failed", err.Error())
		return
	}

	collection, source, _ := s.inventory.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"certificates_count": len(collection),
		"source":             source,
	})
}

func (s *Server) handleExportCSV(c *gin.Context) {
	s.handleExport(c, "csv")
}

func (s *Server) handleExportJSON(c *gin.Context) {
	s.handleExport(c, "json")
}

// handleExport serves the status-filtered inventory as a download.
func (s *Server) handleExport(c *gin.Context, format string) {
	collection, _, _ := s.inventory.Snapshot()
	statusFilter := c.DefaultQuery("status_filter", certs.FilterAll)
	filtered := certs.FilterByStatus(collection, statusFilter)

	var (
		payload     []byte
		contentType string
		filename    string
		err         error
	)
	switch format {
	case "csv":
		payload, err = certs.ExportCSV(collection, statusFilter)
		contentType = "text/csv; charset=utf-8"
		filename = "certificates.csv"
	case "json":
		payload, err = certs.ExportJSON(collection, statusFilter)
		contentType = "application/json; charset=utf-8"
		filename = "certificates.json"
	}
	if err != nil {
		s.logger.Error("Export failed", "format", format, "error", err)
		respondError(c, http.StatusInternalServerError, "export_failed", err.Error())
		return
	}

	if s.audit != nil {
		event := &logging.ExportEvent{
			Timestamp:    time.Now().UTC(),
			Format:       format,
			StatusFilter: statusFilter,
			Count:        len(filtered),
			SourceIP:     c.ClientIP(),
			User:         c.GetString("user"),
		}
		if err := s.audit.LogExport(c.Request.Context(), event); err != nil {
			s.logger.Warn("Failed to write export audit record", "error", err)
		}
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, payload)
}

func (s *Server) handleTreatedList(c *gin.Context) {
	markers, err := s.store.List(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to list treated markers", "error", err)
		respondError(c, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	if markers == nil {
		markers = []*treated.Marker{}
	}

	c.JSON(http.StatusOK, gin.H{
		"treated": markers,
		"count":   len(markers),
	})
}

func (s *Server) handleTreatedSave(c *gin.Context) {
	var marker treated.Marker
	if err := c.ShouldBindJSON(&marker); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if strings.TrimSpace(marker.CertificateID) == "" {
		respondError(c, http.StatusBadRequest, "invalid_body", "id is required")
		return
	}
	if marker.TreatedAt.IsZero() {
		marker.TreatedAt = time.Now().UTC()
	}
	if marker.TreatedBy == "" {
		marker.TreatedBy = c.GetString("user")
	}

	if err := s.store.Save(c.Request.Context(), &marker); err != nil {
		s.logger.Error("Failed to save treated marker", "id", marker.CertificateID, "error", err)
		respondError(c, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}

	c.JSON(http.StatusCreated, marker)
}

func (s *Server) handleTreatedDelete(c *gin.Context) {
	id := c.Param("id")

	if err := s.store.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, treated.ErrNotFound) {
			respondError(c, http.StatusNotFound, "not_found", "no treated marker with this id")
			return
		}
		s.logger.Error("Failed to delete treated marker", "id", id, "error", err)
		respondError(c, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted", "id": id})
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
