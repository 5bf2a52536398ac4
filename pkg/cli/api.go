package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mchmarny/agape/pkg/data"
	"github.com/mchmarny/agape/pkg/impact"
	"github.com/mchmarny/agape/pkg/rule"
	"github.com/mchmarny/agape/pkg/score"
)

const (
	historyLimitMax = 500
)

// evaluateRequest is the body of POST /api/evaluate. Text is a pointer so a
// missing field can be told apart from an empty string.
type evaluateRequest struct {
	Text    *string            `json:"text"`
	Weights map[string]float64 `json:"weights,omitempty"`
	Save    bool               `json:"save,omitempty"`
}

// writeJSON encodes v before writing the header so an encoding failure can
// still be reported as a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
		b, status = []byte(`{"error":"error encoding response"}`), http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(b, '\n')); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a bounded JSON body into v and writes the 400 itself
// when the body does not fit.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, serverMaxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}

	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &typeErr):
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("invalid type for field %q: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value))
	case errors.As(err, &maxErr):
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
	default:
		writeError(w, http.StatusBadRequest, "error binding json")
	}
	slog.Debug("error binding json", "error", err)
	return false
}

func (srv *apiServer) evaluateHandler(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == nil {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	var o score.Overrides
	if len(req.Weights) > 0 {
		o = make(score.Overrides, len(req.Weights))
		for k, v := range req.Weights {
			o[rule.Category(k)] = v
		}
	}

	res, err := srv.scorer.Load().EvaluateWith(*req.Text, o)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	srv.metrics.evaluations.WithLabelValues(string(res.Level)).Inc()
	srv.metrics.scores.Observe(res.Score)

	out := &evalOutput{Source: data.SourceAPI, Result: res}
	if req.Save {
		e := data.NewEvaluation(data.SourceAPI, *req.Text, res)
		if err := data.SaveEvaluation(srv.db, e); err != nil {
			slog.Error("failed to save evaluation", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to save evaluation")
			return
		}
		out.ID = e.ID
	}

	writeJSON(w, http.StatusOK, out)
}

func (srv *apiServer) rulesHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, srv.scorer.Load().Rules())
}

func (srv *apiServer) historyHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	since, err := parseDate(q.Get("since"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	level, err := parseLevel(q.Get("level"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := data.ListEvaluations(srv.db, data.ListCriteria{
		Since:  since,
		Level:  level,
		Source: q.Get("source"),
		Limit:  queryParamInt(r, "limit", data.EvaluationLimitDefault, historyLimitMax),
	})
	if err != nil {
		slog.Error("failed to list evaluations", "error", err)
		writeError(w, http.StatusInternalServerError, "error querying evaluations")
		return
	}

	writeJSON(w, http.StatusOK, list)
}

func (srv *apiServer) historyItemHandler(w http.ResponseWriter, r *http.Request) {
	e, err := data.GetEvaluation(srv.db, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			writeError(w, http.StatusNotFound, "evaluation not found")
			return
		}
		slog.Error("failed to get evaluation", "error", err)
		writeError(w, http.StatusInternalServerError, "error querying evaluation")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (srv *apiServer) summaryHandler(w http.ResponseWriter, r *http.Request) {
	since, err := parseDate(r.URL.Query().Get("since"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s, err := data.GetSummary(srv.db, since)
	if err != nil {
		slog.Error("failed to get summary", "error", err)
		writeError(w, http.StatusInternalServerError, "error querying summary")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func valueImpactHandler(w http.ResponseWriter, r *http.Request) {
	var in impact.ValueInput
	if !decodeJSON(w, r, &in) {
		return
	}
	v, err := impact.ValueImpact(in)
	writeImpact(w, impact.KindValue, v, err)
}

func humanPotentialHandler(w http.ResponseWriter, r *http.Request) {
	var in impact.PotentialInput
	if !decodeJSON(w, r, &in) {
		return
	}
	v, err := impact.HumanPotential(in)
	writeImpact(w, impact.KindPotential, v, err)
}

func writeImpact(w http.ResponseWriter, kind impact.Kind, v float64, err error) {
	if err != nil {
		if errors.Is(err, impact.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "error computing impact")
		return
	}
	writeJSON(w, http.StatusOK, impact.Option{Name: string(kind), Kind: kind, Value: v})
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryParamInt(r *http.Request, key string, def, maxVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}

	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Debug("error converting query string to int", "value", v, "error", err)
		return def
	}

	if i < 1 || i > maxVal {
		return def
	}

	return i
}
