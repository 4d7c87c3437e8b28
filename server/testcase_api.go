package main

import (
	"net/http"
	"strings"

	"github.com/testgenie-labs/testgenie-go/internal/testcase"
)

func (api *serverAPI) handleFullCreate(w http.ResponseWriter, r *http.Request) {
	var req testcase.FullCreateInput
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.Test.Summary) == "" {
		api.writeError(w, r, http.StatusBadRequest, "summary_required")
		return
	}

	res, err := api.testcases.FullCreate(r.Context(), req)
	if err != nil {
		api.upstreamError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, res)
}

type bulkCreateRequest struct {
	Items []testcase.FullCreateInput `json:"items"`
}

const bulkMaxItems = 50

func (api *serverAPI) handleBulkFullCreate(w http.ResponseWriter, r *http.Request) {
	var req bulkCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if len(req.Items) == 0 {
		api.writeError(w, r, http.StatusBadRequest, "items_required")
		return
	}
	if len(req.Items) > bulkMaxItems {
		api.writeError(w, r, http.StatusRequestEntityTooLarge, "too_many_items")
		return
	}

	res := api.testcases.BulkCreate(r.Context(), req.Items)
	api.writeJSON(w, http.StatusOK, res)
}
