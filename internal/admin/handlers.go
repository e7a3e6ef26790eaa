package admin

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"assisted-venue-dedup/internal/auth"
	"assisted-venue-dedup/internal/dedup"
	"assisted-venue-dedup/internal/domain"
	"assisted-venue-dedup/internal/exclusion"
	"assisted-venue-dedup/internal/geocode"
	"assisted-venue-dedup/internal/matcher"
	"assisted-venue-dedup/internal/merge"
	"assisted-venue-dedup/internal/models"
	"assisted-venue-dedup/internal/review"
	"assisted-venue-dedup/internal/spatial"
	errs "assisted-venue-dedup/pkg/errors"
	"assisted-venue-dedup/pkg/events"
	"assisted-venue-dedup/pkg/metrics"
)

// metrics
var (
	mHTTPErrors = metrics.Default.Counter("http_errors_total", "HTTP error responses")
	mMergeCalls = metrics.Default.Counter("http_merge_requests_total", "Merge requests received")
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps error kinds onto HTTP statuses. Unknown errors become
// opaque 500s; their detail belongs in logs, not responses.
func writeError(w http.ResponseWriter, err error) {
	mHTTPErrors.Inc(1)
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errs.Is(err, errs.ErrInvalid):
		status, msg = http.StatusBadRequest, err.Error()
	case errs.Is(err, errs.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errs.Is(err, errs.ErrConstraint):
		status, msg = http.StatusConflict, err.Error()
	case errs.Is(err, errs.ErrProvider):
		status, msg = http.StatusServiceUnavailable, err.Error()
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.NewInvalid("pathID", "invalid venue ID in path", err)
	}
	return id, nil
}

func adminIDFrom(r *http.Request) *int {
	if id, ok := auth.GetAdminIDFromContext(r.Context()); ok {
		return &id
	}
	return nil
}

// scanOptionsFrom parses min_similarity and limit query parameters.
func scanOptionsFrom(r *http.Request) (dedup.ScanOptions, error) {
	var opts dedup.ScanOptions
	if raw := r.URL.Query().Get("min_similarity"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return opts, errs.NewInvalid("scanOptionsFrom", "min_similarity must be a number", err)
		}
		opts.MinSimilarity = &v
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return opts, errs.NewInvalid("scanOptionsFrom", "limit must be a non-negative integer", err)
		}
		opts.Limit = n
	}
	return opts, nil
}

// localitiesFrom collects repeated locality query parameters. Locality
// paths contain "|" so they are passed whole, one parameter per locality.
func localitiesFrom(r *http.Request) []string {
	return r.URL.Query()["locality"]
}

// DuplicatePairsHandler serves GET /api/duplicates?locality=...&locality=...
func DuplicatePairsHandler(svc *dedup.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts, err := scanOptionsFrom(r)
		if err != nil {
			writeError(w, err)
			return
		}
		pairs, err := svc.FindPairs(r.Context(), localitiesFrom(r), opts)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"pairs": pairs, "count": len(pairs)})
	}
}

// DuplicateGroupsHandler serves GET /api/duplicate-groups?locality=...
func DuplicateGroupsHandler(svc *dedup.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts, err := scanOptionsFrom(r)
		if err != nil {
			writeError(w, err)
			return
		}
		groups, err := svc.BuildClusters(r.Context(), localitiesFrom(r), opts)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"groups": groups, "count": len(groups)})
	}
}

// CityReportHandler serves GET /api/duplicate-report?locality=...
func CityReportHandler(svc *dedup.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := svc.CityReport(r.Context(), r.URL.Query().Get("locality"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

// CandidatesHandler serves GET /api/venues/{id}/candidates
func CandidatesHandler(svc *dedup.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		var radius float64
		if raw := r.URL.Query().Get("radius_m"); raw != "" {
			if radius, err = strconv.ParseFloat(raw, 64); err != nil {
				writeError(w, errs.NewInvalid("CandidatesHandler", "radius_m must be a number", err))
				return
			}
		}
		var limit int
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if limit, err = strconv.Atoi(raw); err != nil {
				writeError(w, errs.NewInvalid("CandidatesHandler", "limit must be an integer", err))
				return
			}
		}
		candidates, err := svc.FindCandidates(r.Context(), id, radius, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"candidates": candidates, "count": len(candidates)})
	}
}

// DuplicateCountsHandler serves GET /api/duplicate-counts?ids=1,2,3
func DuplicateCountsHandler(svc *dedup.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawIDs := strings.Split(r.URL.Query().Get("ids"), ",")
		ids := make([]int64, 0, len(rawIDs))
		for _, raw := range rawIDs {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeError(w, errs.NewInvalid("DuplicateCountsHandler", "ids must be a comma-separated list of integers", err))
				return
			}
			ids = append(ids, id)
		}
		counts, err := svc.BatchDuplicateCounts(r.Context(), ids)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"counts": counts})
	}
}

// DuplicateCountHandler serves GET /api/venues/{id}/duplicate-count
func DuplicateCountHandler(svc *dedup.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		n, err := svc.DuplicateCount(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"venue_id": id, "duplicate_count": n})
	}
}

type exclusionRequest struct {
	VenueID1 int64   `json:"venue_id_1"`
	VenueID2 int64   `json:"venue_id_2"`
	Reason   *string `json:"reason,omitempty"`
}

// ExcludeHandler serves POST /api/exclusions
func ExcludeHandler(reg *exclusion.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req exclusionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, errs.NewInvalid("ExcludeHandler", "invalid JSON body", err))
			return
		}
		rec, err := reg.Exclude(r.Context(), req.VenueID1, req.VenueID2, adminIDFrom(r), req.Reason)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

// RemoveExclusionHandler serves DELETE /api/exclusions/{id1}/{id2}
func RemoveExclusionHandler(reg *exclusion.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id1, err := pathID(r, "id1")
		if err != nil {
			writeError(w, err)
			return
		}
		id2, err := pathID(r, "id2")
		if err != nil {
			writeError(w, err)
			return
		}
		if err := reg.Remove(r.Context(), id1, id2, adminIDFrom(r)); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ExcludedPartnersHandler serves GET /api/venues/{id}/exclusions
func ExcludedPartnersHandler(reg *exclusion.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		partners, err := reg.ExcludedPartners(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"venue_id": id, "excluded_partners": partners})
	}
}

type mergeRequest struct {
	SourceVenueID int64    `json:"source_venue_id"`
	TargetVenueID int64    `json:"target_venue_id"`
	Reason        string   `json:"reason,omitempty"`
	Similarity    *float64 `json:"similarity,omitempty"`
	DistanceM     *float64 `json:"distance_m,omitempty"`
}

// MergeHandler serves POST /api/merges
func MergeHandler(eng *merge.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mMergeCalls.Inc(1)
		var req mergeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, errs.NewInvalid("MergeHandler", "invalid JSON body", err))
			return
		}
		res, err := eng.Merge(r.Context(), merge.Request{
			SourceVenueID: req.SourceVenueID,
			TargetVenueID: req.TargetVenueID,
			AdminID:       adminIDFrom(r),
			Reason:        req.Reason,
			Similarity:    req.Similarity,
			DistanceM:     req.DistanceM,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// MergeAuditsByVenueHandler serves GET /api/venues/{id}/merge-audits
func MergeAuditsByVenueHandler(repo domain.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		audits, err := repo.GetMergeAuditsByVenueCtx(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"audits": audits, "count": len(audits)})
	}
}

// MergeAuditsHandler serves GET /api/merge-audits?page=N
func MergeAuditsHandler(repo domain.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		limit := 50
		audits, total, err := repo.GetMergeAuditsPaginatedCtx(r.Context(), limit, (page-1)*limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"audits":      audits,
			"total":       total,
			"page":        page,
			"total_pages": (total + limit - 1) / limit,
		})
	}
}

// BackfillLocalityHandler serves POST /api/venues/{id}/backfill-locality
func BackfillLocalityHandler(bf *geocode.Backfiller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if bf == nil {
			writeError(w, errs.NewProvider("BackfillLocalityHandler", "google_maps", "geocoder not configured", nil))
			return
		}
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		path, err := bf.BackfillVenue(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"venue_id": id, "locality_path": path})
	}
}

type reviewRequest struct {
	VenueID1 int64 `json:"venue_id_1"`
	VenueID2 int64 `json:"venue_id_2"`
}

// ReviewPairHandler serves POST /api/review. The verdict is advisory only.
func ReviewPairHandler(reviewer *review.PairReviewer, repo domain.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reviewer == nil {
			writeError(w, errs.NewProvider("ReviewPairHandler", "openai", "reviewer not configured", nil))
			return
		}
		var req reviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, errs.NewInvalid("ReviewPairHandler", "invalid JSON body", err))
			return
		}
		if req.VenueID1 <= 0 || req.VenueID2 <= 0 || req.VenueID1 == req.VenueID2 {
			writeError(w, errs.NewInvalid("ReviewPairHandler", "two distinct positive venue IDs required", nil))
			return
		}
		venues, err := repo.GetVenuesByIDsCtx(r.Context(), []int64{req.VenueID1, req.VenueID2})
		if err != nil {
			writeError(w, err)
			return
		}
		if len(venues) != 2 {
			writeError(w, errs.NewNotFound("ReviewPairHandler", "venue not found", nil))
			return
		}
		a, b := venues[0], venues[1]
		pair := pairEvidence(a, b)
		verdict, err := reviewer.ReviewPair(r.Context(), a, b, pair)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"pair": pair, "verdict": verdict})
	}
}

// pairEvidence computes the similarity, distance and confidence evidence
// for an arbitrary venue pair so the reviewer sees the same numbers the
// scanner would produce.
func pairEvidence(a, b models.Venue) models.DuplicatePair {
	dist := spatial.PairDistance(a, b)
	sim := matcher.Similarity(a.Name, b.Name)
	pair := models.NewDuplicatePair(a.ID, b.ID, sim, dist)
	pair.Confidence = matcher.PairConfidence(sim, dist)
	return pair
}

// VenueEventsHandler serves GET /api/venues/{id}/events
func VenueEventsHandler(store events.EventStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		evs, err := store.ListByVenue(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"events": evs, "count": len(evs)})
	}
}
