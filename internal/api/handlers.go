package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"giftflow/internal/orchestrator"
	"giftflow/internal/store"
	"giftflow/internal/types"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ExportFilename is the attachment name offered by the export endpoint.
const ExportFilename = "giftflow-gifts.csv"

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orchestrator.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, orchestrator.ErrInvalidMode),
		errors.Is(err, orchestrator.ErrNoProduct),
		errors.Is(err, orchestrator.ErrNotApproved),
		errors.Is(err, types.ErrInvalidState):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes an optional JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// =============================================================================
// ORCHESTRATION
// =============================================================================

type orchestrateRequest struct {
	Mode string `json:"mode"`
}

type orchestrateResponse struct {
	Success   bool                   `json:"success"`
	RunID     string                 `json:"runId"`
	Mode      orchestrator.Mode      `json:"mode"`
	Processed int                    `json:"processed"`
	Results   []orchestrator.Outcome `json:"results"`
	Error     string                 `json:"error,omitempty"`
}

func (s *Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	var req orchestrateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	mode, err := orchestrator.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A dropped client does not abort the batch mid-way.
	report, err := s.engine.Run(context.WithoutCancel(r.Context()), mode)
	if report == nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	resp := orchestrateResponse{
		Success:   err == nil,
		RunID:     report.RunID,
		Mode:      report.Mode,
		Processed: report.Processed,
		Results:   report.Outcomes,
	}
	status := http.StatusOK
	if err != nil {
		s.logger.Warn("orchestration interrupted", zap.String("run_id", report.RunID), zap.Error(err))
		resp.Error = err.Error()
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, resp)
}

// =============================================================================
// GIFTS
// =============================================================================

type giftsResponse struct {
	Gifts []*types.WorkItem `json:"gifts"`
	Count int               `json:"count"`
}

func (s *Server) handleListGifts(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.List(r.Context(), nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []*types.WorkItem{}
	}
	writeJSON(w, http.StatusOK, giftsResponse{Gifts: items, Count: len(items)})
}

type importResponse struct {
	Success  bool              `json:"success"`
	Imported int               `json:"imported"`
	Skipped  []string          `json:"skipped"`
	Warnings []string          `json:"warnings"`
	Gifts    []*types.WorkItem `json:"gifts"`
}

// handleImportGifts accepts either a multipart form with a "file" field or a
// raw CSV body. The upload replaces every stored gift.
func (s *Server) handleImportGifts(w http.ResponseWriter, r *http.Request) {
	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "No file uploaded")
			return
		}
		defer file.Close()
		src = file
	}

	data, err := io.ReadAll(src)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := store.Import(r.Context(), s.store, bytes.NewReader(data))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.engine.Alternatives().Clear()

	s.logger.Info("gifts imported",
		zap.Int("imported", len(res.Items)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int("warnings", len(res.Warnings)))
	writeJSON(w, http.StatusOK, importResponse{
		Success:  true,
		Imported: len(res.Items),
		Skipped:  orEmpty(res.Skipped),
		Warnings: orEmpty(res.Warnings),
		Gifts:    res.Items,
	})
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Server) handleClearGifts(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.engine.Alternatives().Clear()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "All gifts cleared"})
}

func (s *Server) handleExportGifts(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := store.Export(r.Context(), s.store, &buf); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+ExportFilename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleGetGift(w http.ResponseWriter, r *http.Request) {
	it, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// patchRequest lists the operator-editable fields. Absent fields are left
// unchanged.
type patchRequest struct {
	ApprovalStatus *string `json:"approvalStatus"`
	OrderStatus    *string `json:"orderStatus"`
	Riddle         *string `json:"riddle"`
	CardLink       *string `json:"cardLink"`
	ProductLink    *string `json:"productLink"`
	ProductImage   *string `json:"productImage"`
}

func (s *Server) handlePatchGift(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req patchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	current, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	patch, err := req.toPatch(current)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.store.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "gift": updated})
}

func (req patchRequest) toPatch(current *types.WorkItem) (types.Patch, error) {
	var p types.Patch
	if req.ApprovalStatus != nil {
		a, err := types.ParseApprovalState(*req.ApprovalStatus)
		if err != nil {
			return p, err
		}
		p.Approval = &a
	}
	if req.OrderStatus != nil {
		o, err := types.ParseOrderState(*req.OrderStatus)
		if err != nil {
			return p, err
		}
		p.Order = &o
	}
	p.Riddle = req.Riddle
	p.CardURL = req.CardLink

	if req.ProductLink != nil || req.ProductImage != nil {
		ref := types.ProductRef{}
		if current.Product != nil {
			ref = *current.Product
		}
		if req.ProductLink != nil {
			ref.URL = *req.ProductLink
		}
		if req.ProductImage != nil {
			ref.ImageURL = *req.ProductImage
		}
		p.Product = &ref
	}
	return p, nil
}

// =============================================================================
// SINGLE-ITEM STAGES
// =============================================================================

type giftRequest struct {
	GiftID string `json:"giftId"`
	Action string `json:"action,omitempty"`
}

func (s *Server) readGiftRequest(w http.ResponseWriter, r *http.Request) (giftRequest, bool) {
	var req giftRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if strings.TrimSpace(req.GiftID) == "" {
		writeError(w, http.StatusBadRequest, "giftId is required")
		return req, false
	}
	return req, true
}

type stageFunc func(ctx context.Context, id string) (*orchestrator.StepResult, error)

func (s *Server) stageHandler(fn stageFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := s.readGiftRequest(w, r)
		if !ok {
			return
		}
		res, err := fn(r.Context(), req.GiftID)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// =============================================================================
// WEBHOOK
// =============================================================================

// MsgNoAction is returned when a webhook event needs no follow-up.
const MsgNoAction = "No action needed"

// handleWebhook reacts to approval decisions. A denial, or an event for an
// item already marked Denied, triggers alternative cycling.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readGiftRequest(w, r)
	if !ok {
		return
	}

	it, err := s.store.Get(r.Context(), req.GiftID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if !strings.EqualFold(req.Action, "denied") && it.Approval != types.ApprovalDenied {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": MsgNoAction})
		return
	}

	res, err := s.engine.HandleDenial(r.Context(), req.GiftID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
