package httphandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/watchzerg/magnet-picker-sub000/internal/common"
	"github.com/watchzerg/magnet-picker-sub000/internal/engine"
	"github.com/watchzerg/magnet-picker-sub000/internal/entity"
	"github.com/watchzerg/magnet-picker-sub000/internal/service/pick"
	"github.com/watchzerg/magnet-picker-sub000/internal/service/rule"
)

const (
	requestTimeout = 10 * time.Second
	maxBodySize    = 1 << 20
)

var (
	idRegexp = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)
)

type RuleService interface {
	List(ctx context.Context) ([]*rule.RuleView, error)
	Add(ctx context.Context, t entity.RuleType) (*rule.RuleView, error)
	Update(ctx context.Context, r *entity.Rule) (*rule.RuleView, error)
	SetEnabled(ctx context.Context, id string, enabled bool) (*rule.RuleView, error)
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, ids []string) ([]*rule.RuleView, error)
	Check(ctx context.Context, r *entity.Rule) (engine.ValidationResult, error)
}

type SettingsService interface {
	Settings(ctx context.Context) (entity.SelectionSettings, error)
	SaveSettings(ctx context.Context, settings entity.SelectionSettings) error
}

type ScanService interface {
	Scan(ctx context.Context) (int, error)
}

type PickService interface {
	Pick(ctx context.Context) (*entity.Selection, []*entity.Candidate, error)
	Scores(ctx context.Context) ([]*pick.ScoreView, error)
	Selection(ctx context.Context) (*entity.Selection, error)
}

type ReportService interface {
	Report(ctx context.Context, w io.Writer) error
}

type addRuleRequest struct {
	Type entity.RuleType `json:"type"`
}

type orderRequest struct {
	IDs []string `json:"ids"`
}

type scanResponse struct {
	Count int `json:"count"`
}

type pickResponse struct {
	Selection  *entity.Selection   `json:"selection"`
	Candidates []*entity.Candidate `json:"candidates"`
}

func NewListRulesHandler(srv RuleService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ListRulesHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		views, err := srv.List(ctx)
		if err != nil {
			writeError(w, log, err)

			return
		}

		writeJSON(w, log, http.StatusOK, views)
	}
}

func NewAddRuleHandler(srv RuleService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "AddRuleHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		var req addRuleRequest
		if err := decode(w, r, &req); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		view, err := srv.Add(ctx, req.Type)
		if err != nil {
			writeError(w, log, err)

			return
		}

		writeJSON(w, log, http.StatusCreated, view)
	}
}

func NewUpdateRuleHandler(srv RuleService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "UpdateRuleHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !idRegexp.MatchString(id) {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		rl := &entity.Rule{}
		if err := decode(w, r, rl); err != nil {
			log.Debug("Cannot decode rule", slog.Any("error", err))
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}
		rl.ID = id

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		view, err := srv.Update(ctx, rl)
		if err != nil {
			writeError(w, log, err)

			return
		}

		writeJSON(w, log, http.StatusOK, view)
	}
}

func NewEnableRuleHandler(srv RuleService, enabled bool, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "EnableRuleHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !idRegexp.MatchString(id) {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		view, err := srv.SetEnabled(ctx, id, enabled)
		if err != nil {
			writeError(w, log, err)

			return
		}

		writeJSON(w, log, http.StatusOK, view)
	}
}

func NewDeleteRuleHandler(srv RuleService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "DeleteRuleHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !idRegexp.MatchString(id) {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		if err := srv.Delete(ctx, id); err != nil {
			writeError(w, log, err)

			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func NewReorderRulesHandler(srv RuleService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ReorderRulesHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		var req orderRequest
		if err := decode(w, r, &req); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		views, err := srv.Reorder(ctx, req.IDs)
		if err != nil {
			writeError(w, log, err)

			return
		}

		writeJSON(w, log, http.StatusOK, views)
	}
}

// NewCheckRuleHandler validates a draft rule without saving it.
func NewCheckRuleHandler(srv RuleService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "CheckRuleHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		rl := &entity.Rule{}
		if err := decode(w, r, rl); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		res, err := srv.Check(ctx, rl)
		if err != nil {
			writeError(w, log, err)

			return
		}

		writeJSON(w, log, http.StatusOK, res)
	}
}

func NewGetSettingsHandler(srv SettingsService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "GetSettingsHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		settings, err := srv.Settings(ctx)
		if err != nil {
			writeError(w, log, err)

			return
		}

		writeJSON(w, log, http.StatusOK, settings)
	}
}

func NewSaveSettingsHandler(srv SettingsService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "SaveSettingsHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		var settings entity.SelectionSettings
		if err := decode(w, r, &settings); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		if err := srv.SaveSettings(ctx, settings); err != nil {
			writeError(w, log, err)

			return
		}

		writeJSON(w, log, http.StatusOK, settings)
	}
}

// NewScanHandler starts a scan of the pages directory. The scan is not bound to the request
// so a dropped client does not abort it.
func NewScanHandler(srv ScanService, timeout time.Duration, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ScanHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		n, err := srv.Scan(ctx)
		if err != nil {
			writeError(w, log, err)

			return
		}

		writeJSON(w, log, http.StatusOK, scanResponse{Count: n})
	}
}

func NewPickHandler(srv PickService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "PickHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		sel, candidates, err := srv.Pick(ctx)
		if err != nil {
			writeError(w, log, err)

			return
		}

		writeJSON(w, log, http.StatusOK, pickResponse{Selection: sel, Candidates: candidates})
	}
}

func NewScoresHandler(srv PickService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ScoresHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		views, err := srv.Scores(ctx)
		if err != nil {
			writeError(w, log, err)

			return
		}

		writeJSON(w, log, http.StatusOK, views)
	}
}

func NewSelectionHandler(srv PickService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "SelectionHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		sel, err := srv.Selection(ctx)
		if err != nil {
			writeError(w, log, err)

			return
		}

		writeJSON(w, log, http.StatusOK, sel)
	}
}

func NewReportHandler(srv ReportService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ReportHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		buf := bytes.Buffer{}
		if err := srv.Report(ctx, &buf); err != nil {
			writeError(w, log, err)

			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buf.Bytes())
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))

	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Cannot encode response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, common.ErrRuleNotFoundError),
		errors.Is(err, common.ErrSelectionNotFoundError),
		errors.Is(err, common.ErrNoCandidatesFoundError):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, common.ErrUnknownRuleTypeError),
		errors.Is(err, common.ErrInvalidRuleError),
		errors.Is(err, common.ErrInvalidSettingsError),
		errors.Is(err, common.ErrRuleOrderMismatchError):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, common.ErrScanHasAlreadyStarted):
		http.Error(w, "Scan process has already started", http.StatusConflict)
	default:
		log.Error("Request failed", slog.Any("error", err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
