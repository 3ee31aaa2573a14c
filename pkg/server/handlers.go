package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/matzehuels/labelkit/pkg/buildinfo"
	"github.com/matzehuels/labelkit/pkg/config"
	"github.com/matzehuels/labelkit/pkg/errors"
	"github.com/matzehuels/labelkit/pkg/geometry"
	"github.com/matzehuels/labelkit/pkg/items"
	"github.com/matzehuels/labelkit/pkg/pipeline"
	"github.com/matzehuels/labelkit/pkg/templates"
	"github.com/matzehuels/labelkit/pkg/transport"
)

// printRequest is the raw print boundary body.
type printRequest struct {
	Host      string `json:"host" validate:"required"`
	Port      int    `json:"port" validate:"omitempty,min=1,max=65535"`
	ZPL       string `json:"zpl" validate:"required"`
	TimeoutMs int    `json:"timeoutMs" validate:"omitempty,min=1,max=600000"`
}

// printResponse is shared by both print endpoints.
type printResponse struct {
	OK     bool   `json:"ok"`
	Bytes  int    `json:"bytes"`
	Blocks int    `json:"blocks,omitempty"`
	JobID  string `json:"jobId,omitempty"`
}

type errorResponse struct {
	OK    bool        `json:"ok"`
	Error string      `json:"error"`
	Code  errors.Code `json:"code,omitempty"`
}

// labelRequest carries articles plus how to lay them out. Template, when
// set, supplies geometry, dpi and QR before Options fields are applied.
type labelRequest struct {
	Items    []items.Article `json:"items" validate:"dive"`
	Options  labelOptions    `json:"options"`
	Template string          `json:"template,omitempty" validate:"omitempty,uuid"`
	Printer  string          `json:"printer,omitempty"`
}

// labelOptions is pipeline.Options with a partial geometry: only the fields
// present in the request replace the template or config values.
type labelOptions struct {
	pipeline.Options
	Geometry *geometryPatch `json:"geometry,omitempty"`
}

type geometryPatch struct {
	WidthMM     *float64 `json:"widthMm"`
	HeightMM    *float64 `json:"heightMm"`
	MarginMM    *float64 `json:"marginMm"`
	BarHeightMM *float64 `json:"barHeightMm"`
	QRSizeMM    *float64 `json:"qrSizeMm"`
}

// apply overwrites the fields of g that p sets.
func (p *geometryPatch) apply(g *geometry.PrintGeometry) {
	if p == nil {
		return
	}
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&g.WidthMM, p.WidthMM)
	set(&g.HeightMM, p.HeightMM)
	set(&g.MarginMM, p.MarginMM)
	set(&g.BarHeightMM, p.BarHeightMM)
	set(&g.QRSizeMM, p.QRSizeMM)
}

func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	var req printRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := errors.ValidateHost(req.Host); err != nil {
		s.writeError(w, r, err)
		return
	}

	job := transport.Job{
		Host:    req.Host,
		Port:    req.Port,
		Payload: []byte(req.ZPL),
		Timeout: time.Duration(req.TimeoutMs) * time.Millisecond,
		Grace:   s.config.Transport.Grace,
	}
	res, err := s.runner.Send(r.Context(), job)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, printResponse{OK: true, Bytes: res.Bytes})
}

func (s *Server) handleLabelsZPL(w http.ResponseWriter, r *http.Request) {
	req, opts, ok := s.labelRequest(w, r)
	if !ok {
		return
	}
	opts.Formats = []string{pipeline.FormatZPL}
	res, err := s.runner.Render(r.Context(), items.LineItems(req.Items), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Label-Count", strconv.Itoa(res.Blocks))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Artifacts[pipeline.FormatZPL])
}

func (s *Server) handleLabelsPreview(w http.ResponseWriter, r *http.Request) {
	req, opts, ok := s.labelRequest(w, r)
	if !ok {
		return
	}
	opts.Formats = []string{pipeline.FormatSVG}
	res, err := s.runner.Render(r.Context(), items.LineItems(req.Items), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Artifacts[pipeline.FormatSVG])
}

func (s *Server) handleLabelsPrint(w http.ResponseWriter, r *http.Request) {
	req, opts, ok := s.labelRequest(w, r)
	if !ok {
		return
	}
	printer, err := s.config.ResolvePrinter(req.Printer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts.Printer = printer.Host
	opts.Port = printer.Port
	opts.Timeout = s.config.Transport.Timeout
	opts.Grace = s.config.Transport.Grace

	jobID := uuid.New()
	opts.Logger = s.logger.With("job", jobID, "printer", printer.Name)
	res, err := s.runner.Print(r.Context(), items.LineItems(req.Items), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, printResponse{
		OK:     true,
		Bytes:  res.Delivery.Bytes,
		Blocks: res.Blocks,
		JobID:  jobID.String(),
	})
}

// labelRequest decodes and validates a label request and resolves its
// render options: server defaults, then the template, then request fields.
func (s *Server) labelRequest(w http.ResponseWriter, r *http.Request) (labelRequest, pipeline.Options, bool) {
	var req labelRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return req, pipeline.Options{}, false
	}

	opts := pipeline.Options{
		Geometry:  s.config.Label.Geometry,
		DPI:       s.config.Label.DPI,
		ShowQR:    s.config.Label.ShowQR,
		Refresh:   req.Options.Refresh,
		MaxLabels: s.config.Label.MaxLabels,
	}
	if req.Template != "" {
		id, err := templates.ParseID(req.Template)
		if err != nil {
			s.writeError(w, r, err)
			return req, opts, false
		}
		t, err := s.templates.Get(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return req, opts, false
		}
		opts.Geometry, opts.DPI, opts.ShowQR = t.Geometry, t.DPI, t.ShowQR
	}
	req.Options.Geometry.apply(&opts.Geometry)
	if req.Options.DPI != 0 {
		opts.DPI = req.Options.DPI
	}
	if req.Options.ShowQR {
		opts.ShowQR = true
	}
	return req, opts, true
}

func (s *Server) handlePrinters(w http.ResponseWriter, r *http.Request) {
	printers := s.config.Printers
	if printers == nil {
		printers = []config.Printer{}
	}
	writeJSON(w, http.StatusOK, printers)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := s.templates.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []templates.Template{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	var t templates.Template
	if err := s.decode(r, &t); err != nil {
		s.writeError(w, r, err)
		return
	}
	created := t.ID == uuid.Nil
	if err := s.templates.Save(r.Context(), &t); err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
		w.Header().Set("Location", "/api/templates/"+t.ID.String())
	}
	writeJSON(w, status, t)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := templates.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.templates.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := templates.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.templates.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}

// decode reads a JSON body into v and runs struct validation.
func (s *Server) decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "malformed request body")
	}
	if err := s.validate.Struct(v); err != nil {
		return validationError(err)
	}
	return nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway && status != http.StatusGatewayTimeout {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
	}
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, status, errorResponse{OK: false, Error: errors.UserMessage(err), Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Fprintf(w, `{"ok":false,"error":%q}`, err.Error())
	}
}
