package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"

	"translocrt/internal/feed"
)

const feedContentType = "application/vnd.google.protobuf"

// FeedHandler serves the realtime feed for one agency per request.
type FeedHandler struct {
	builder *feed.Builder
	logger  *slog.Logger
}

func NewFeedHandler(builder *feed.Builder, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{
		builder: builder,
		logger:  logger.With("component", "feed_handler"),
	}
}

// GetFeed handles GET /rt/{agency_id}/{agency_code}.
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()
	start := time.Now()
	logger := h.logger.With("request_id", uuid.New().String())

	agencyID, err := strconv.ParseUint(r.PathValue("agency_id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "agency_id must be an unsigned integer")
		return
	}
	agencyCode := r.PathValue("agency_code")

	workaround := false
	if v := r.URL.Query().Get("transit_workaround"); v != "" {
		workaround, err = strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "transit_workaround must be a boolean")
			return
		}
	}

	message, err := h.builder.Build(r.Context(), agencyID, agencyCode, workaround)
	if err != nil {
		if r.Context().Err() == context.Canceled {
			logger.Debug("client disconnected", "agency_id", agencyID)
			return
		}
		ServerStats.IncFeedErrors()
		logger.Error("feed build failed",
			"agency_id", agencyID,
			"agency_code", agencyCode,
			"error", err,
		)
		respondError(w, http.StatusBadGateway, "failed to build feed")
		return
	}

	body, err := proto.Marshal(message)
	if err != nil {
		ServerStats.IncFeedErrors()
		logger.Error("feed marshal failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to serialize feed")
		return
	}

	ServerStats.IncFeedsBuilt()
	logger.Info("feed served",
		"agency_id", agencyID,
		"agency_code", agencyCode,
		"workaround", workaround,
		"entities", len(message.Entity),
		"size_bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	w.Header().Set("Content-Type", feedContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
