package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"listing_hunter/models"
	"listing_hunter/services"
)

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=new contacted viewed archived"`
}

func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request) {
	filter, msg := parseListingFilter(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	result, err := s.deps.Listings.List(r.Context(), filter)
	if err != nil {
		log.Printf("Listings: list failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load listings")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parseListingFilter(r *http.Request) (services.ListingFilter, string) {
	q := r.URL.Query()
	filter := services.ListingFilter{
		Source:      q.Get("source"),
		City:        q.Get("city"),
		ActiveOnly:  q.Get("active") == "true",
		AuctionOnly: q.Get("auction") == "true",
		Sort:        q.Get("sort"),
	}

	if v := q.Get("status"); v != "" {
		status, ok := models.ParseListingStatus(v)
		if !ok {
			return filter, "invalid status"
		}
		filter.Status = status
	}

	switch filter.Sort {
	case "", services.SortPriceAsc, services.SortPriceDesc:
	default:
		return filter, "invalid sort"
	}

	for name, dst := range map[string]**int64{"price_min": &filter.PriceMin, "price_max": &filter.PriceMax} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, "invalid " + name
		}
		*dst = &n
	}

	return filter, ""
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Listings.Counts(r.Context()))
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	listing, err := s.deps.Listings.Get(r.Context(), id)
	if err != nil {
		if services.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Not found")
			return
		}
		log.Printf("Listings: get %s failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to load listing")
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "status" {
			writeError(w, http.StatusBadRequest, "missing field: status")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := s.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 && fieldErrs[0].Tag() == "required" {
			writeError(w, http.StatusBadRequest, "missing field: status")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	if err := s.deps.Listings.UpdateStatus(r.Context(), id, models.ListingStatus(req.Status)); err != nil {
		if services.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Not found")
			return
		}
		log.Printf("Listings: update %s failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Update failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
