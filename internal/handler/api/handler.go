package api

import (
	"errors"

	"alphaspike/internal/feature"
	apprepo "alphaspike/internal/repository"
	"alphaspike/internal/usecase"
	xhttp "alphaspike/pkg/http"
	applogger "alphaspike/pkg/logger"
	"alphaspike/pkg/util"

	"github.com/labstack/echo/v4"
)

// Handler exposes the scan results and performance reports over HTTP.
// All mutation happens through the engines; the handler never touches
// the store's write paths directly.
type Handler struct {
	registry *feature.Registry
	store    *apprepo.Store
	scanner  *usecase.ScanEngine
	tracker  *usecase.Tracker
	syncer   *usecase.SyncOrchestrator
	l        *applogger.Logger
}

// NewHandler wires the serve-mode API.
func NewHandler(
	registry *feature.Registry,
	store *apprepo.Store,
	scanner *usecase.ScanEngine,
	tracker *usecase.Tracker,
	syncer *usecase.SyncOrchestrator,
	l *applogger.Logger,
) *Handler {
	if l == nil {
		l = applogger.Nop()
	}
	return &Handler{
		registry: registry,
		store:    store,
		scanner:  scanner,
		tracker:  tracker,
		syncer:   syncer,
		l:        l,
	}
}

// RegisterRoutes attaches all routes to the Echo instance.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api/v1")
	g.GET("/features", h.Features)
	g.GET("/signals", h.Signals)
	g.GET("/performance", h.Performance)
	g.POST("/scan", h.Scan)
	g.POST("/sync", h.Sync)
}

// Health reports liveness and store reachability.
func (h *Handler) Health(c echo.Context) error {
	if err := h.store.DB().PingContext(c.Request().Context()); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.InternalError("store unreachable").WithError(err))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

type featureInfo struct {
	Name    string `json:"name"`
	MinDays int    `json:"min_days"`
}

// Features lists the registered detectors.
func (h *Handler) Features(c echo.Context) error {
	configs := h.registry.All()
	out := make([]featureInfo, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, featureInfo{Name: cfg.Name, MinDays: cfg.MinDays})
	}
	return xhttp.ListResponse(c, out, int64(len(out)))
}

// Signals returns the persisted signal set for one feature and scan
// date.
func (h *Handler) Signals(c echo.Context) error {
	featureName := c.QueryParam("feature")
	date := c.QueryParam("date")
	if featureName == "" || date == "" {
		return xhttp.BadRequestResponse(c, "feature and date are required")
	}
	if _, ok := util.ParseDay(date); !ok {
		return xhttp.BadRequestResponse(c, "date must be YYYYMMDD")
	}

	set, err := h.store.GetSignalSet(c.Request().Context(), featureName, date)
	if errors.Is(err, apprepo.ErrNotFound) {
		return xhttp.NotFoundResponse(c, "no scan recorded for this feature and date")
	}
	if err != nil {
		h.l.Error("signals lookup failed", applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, set)
}

// Performance returns the tracker's verdict for a feature ("" for
// all), optionally restricted to one scan date.
func (h *Handler) Performance(c echo.Context) error {
	featureName := c.QueryParam("feature")
	date := c.QueryParam("date")
	if date != "" {
		if _, ok := util.ParseDay(date); !ok {
			return xhttp.BadRequestResponse(c, "date must be YYYYMMDD")
		}
	}

	perfs, err := h.tracker.Track(c.Request().Context(), featureName, date)
	if err != nil {
		h.l.Error("performance tracking failed", applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, perfs, int64(len(perfs)))
}

type scanRequest struct {
	EndDate  string   `json:"end_date" validate:"required,len=8"`
	Features []string `json:"features"`
	Force    bool     `json:"force"`
}

// Scan runs detectors at an end date, answering from cache unless
// force is set.
func (h *Handler) Scan(c echo.Context) error {
	req := &scanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if _, ok := util.ParseDay(req.EndDate); !ok {
		return xhttp.BadRequestResponse(c, "end_date must be YYYYMMDD")
	}

	results, err := h.scanner.Scan(c.Request().Context(), req.EndDate, req.Features, req.Force)
	if err != nil {
		h.l.Error("scan failed", applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, results, int64(len(results)))
}

type syncRequest struct {
	EndDate string `json:"end_date" validate:"required,len=8"`
}

// Sync brings the universe's bar history current through end_date.
func (h *Handler) Sync(c echo.Context) error {
	req := &syncRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if _, ok := util.ParseDay(req.EndDate); !ok {
		return xhttp.BadRequestResponse(c, "end_date must be YYYYMMDD")
	}

	summary, err := h.syncer.Run(c.Request().Context(), req.EndDate)
	if err != nil {
		h.l.Error("sync failed", applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, summary)
}
