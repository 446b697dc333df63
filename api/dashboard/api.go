package dashboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kilianp07/energyledger/app"
	"github.com/kilianp07/energyledger/auth"
	"github.com/kilianp07/energyledger/core/ledger"
	"github.com/kilianp07/energyledger/core/model"
	"github.com/kilianp07/energyledger/infra/audit"
	"github.com/kilianp07/energyledger/pkg/export"
)

// KPIs is the body of GET /api/ledger/kpis.
type KPIs struct {
	Meter   string          `json:"meter"`
	Window  ledger.Window   `json:"window"`
	Label   string          `json:"label"`
	At      time.Time       `json:"at"`
	Current model.Quantity  `json:"current_balance_kW"`
	Delta   ledger.Delta    `json:"balance_delta"`
	Summary ledger.Summary  `json:"summary"`
	Buckets []ledger.Bucket `json:"buckets"`
}

var contentTypes = map[string]string{
	"csv":  "text/csv; charset=utf-8",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"pdf":  "application/pdf",
}

func (s *server) ledgerJSON(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.refresh(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.View)
}

func (s *server) kpisJSON(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.refresh(w, r)
	if !ok {
		return
	}
	buckets := snap.Buckets
	if buckets == nil {
		buckets = []ledger.Bucket{}
	}
	writeJSON(w, http.StatusOK, KPIs{
		Meter:   snap.Meter,
		Window:  snap.Window,
		Label:   snap.Window.Label(),
		At:      snap.At,
		Current: snap.Current,
		Delta:   snap.Delta,
		Summary: snap.Summary,
		Buckets: buckets,
	})
}

func (s *server) export(w http.ResponseWriter, r *http.Request) {
	format := mux.Vars(r)["format"]
	snap, ok := s.refresh(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	var err error
	switch format {
	case "csv":
		err = export.WriteCSV(&buf, snap.View)
	case "xlsx":
		err = export.WriteXLSX(&buf, snap.Report())
	case "pdf":
		err = export.WritePDF(&buf, snap.Report())
	}
	if err != nil {
		s.log.Errorf("export %s: %v", format, err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	name := fmt.Sprintf("%s-%s-%s.%s", snap.Meter, snap.Window, snap.At.UTC().Format("20060102T1504"), format)
	w.Header().Set("Content-Type", contentTypes[format])
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(buf.Bytes())
}

// auditJSON serves the session user's audit trail, filtered by the optional
// kind, start and end (RFC3339) parameters.
func (s *server) auditJSON(w http.ResponseWriter, r *http.Request) {
	var q audit.Query
	params := r.URL.Query()
	switch kind := params.Get("kind"); kind {
	case "", audit.KindRefresh, audit.KindLogin:
		q.Kind = kind
	default:
		writeError(w, http.StatusBadRequest, "unknown kind "+kind)
		return
	}
	for name, dst := range map[string]*time.Time{"start": &q.Start, "end": &q.End} {
		raw := params.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad "+name+": "+err.Error())
			return
		}
		*dst = t
	}
	sess := sessionFrom(r.Context())
	recs, err := s.svc.AuditTrail(r.Context(), sess.Identity, q)
	switch {
	case err == nil:
	case errors.Is(err, app.ErrAuditDisabled):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, auth.ErrNoMeter):
		writeError(w, http.StatusForbidden, err.Error())
		return
	default:
		s.log.Errorf("audit for %s: %v", sess.Identity.Subject, err)
		writeError(w, http.StatusInternalServerError, "audit query failed")
		return
	}
	if recs == nil {
		recs = []audit.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
