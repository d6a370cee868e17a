package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"listing_hunter/models"
	"listing_hunter/services"
)

type digestResponse struct {
	OK bool `json:"ok"`
	models.DigestResult
}

func (s *Server) handleCronNotify(w http.ResponseWriter, r *http.Request) {
	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found || !secretEqual(token, s.cfg.CronSecret) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	result, err := s.deps.Digest.RunDigest(r.Context())
	if err != nil {
		if errors.Is(err, services.ErrMailerNotConfigured) {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		log.Printf("Digest: run failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Digest failed")
		return
	}
	writeJSON(w, http.StatusOK, digestResponse{OK: true, DigestResult: result})
}
