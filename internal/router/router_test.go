package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"deja/internal/domain/accessgrants"
	"deja/internal/platform/metrics"
	"deja/internal/ports/notify"
	"deja/internal/router"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(router.NewRouter(router.Options{
		AuthVerifier: nil,
		Metrics:      metrics.New(),
		Logger:       zerolog.Nop(),
		PhoneRegion:  "BR",
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestHTTP_EndToEnd_StockWithCoCaregiver(t *testing.T) {
	ts := newTestServer(t)

	ownerID := "owner-1"
	delegateID := "delegate-1"

	// 1) Representante crea paciente y medicamento (caja de 30)
	patientID := createResource(t, ts.URL, ownerID, "/patients", map[string]any{
		"name": "Helena",
		"sex":  "female",
	})
	medID := createResource(t, ts.URL, ownerID, "/medications", map[string]any{
		"name":          "Losartana",
		"dosage_amount": "50",
		"dosage_unit":   "mg",
		"form":          "tablet",
		"box_quantity":  "30",
	})

	// 2) Posología: dos veces por día => 2 unidades/día
	{
		st, body := doReq(t, ts.URL, "POST", "/medications/"+medID+"/patients", ownerID, map[string]any{
			"patient_id":           patientID,
			"frequency":            "twice_daily",
			"administration_times": []string{"08:00", "20:00"},
			"treatment_type":       "continuous",
		})
		if st != http.StatusCreated {
			t.Fatalf("expected 201 assign posology, got %d body=%s", st, string(body))
		}
	}

	// 3) Entrada de una caja
	{
		st, body := doReq(t, ts.URL, "POST", "/stock/"+medID+"/movements", ownerID, map[string]any{
			"direction": "in",
			"boxes":     "1",
			"reason":    "compra",
		})
		if st != http.StatusCreated {
			t.Fatalf("expected 201 stock in, got %d body=%s", st, string(body))
		}
	}
	if got := stockStatus(t, ts.URL, ownerID, medID); got.DaysRemaining == nil || *got.DaysRemaining != 15 || got.Level != "ok" {
		t.Fatalf("expected 15 days ok, got %+v", got)
	}

	// 4) Co-cuidador sin grant no toca el stock
	{
		st, _ := doReq(t, ts.URL, "POST", "/stock/"+medID+"/movements", delegateID, map[string]any{
			"direction": "out",
			"quantity":  "2",
		})
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 before grant, got %d", st)
		}
	}

	// 5) Invitación con stock:write y aceptación
	grantID := createResource(t, ts.URL, ownerID, "/patients/"+patientID+"/grants", map[string]any{
		"grantee_user_id": delegateID,
		"scopes":          []string{string(accessgrants.ScopeStockWrite)},
	})
	{
		st, body := doReq(t, ts.URL, "POST", "/grants/"+grantID+"/accept", delegateID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 accept grant, got %d body=%s", st, string(body))
		}
	}

	// 6) Co-cuidador registra una salida
	{
		st, body := doReq(t, ts.URL, "POST", "/stock/"+medID+"/movements", delegateID, map[string]any{
			"direction": "out",
			"quantity":  "2",
			"reason":    "dosis del día",
		})
		if st != http.StatusCreated {
			t.Fatalf("expected 201 stock out by delegate, got %d body=%s", st, string(body))
		}
	}
	if got := stockStatus(t, ts.URL, ownerID, medID); got.DaysRemaining == nil || *got.DaysRemaining != 14 {
		t.Fatalf("expected 14 days after out, got %+v", got)
	}

	// 7) stock:write no habilita leer la medicación del paciente
	{
		st, _ := doReq(t, ts.URL, "GET", "/patients/"+patientID+"/medications", delegateID, nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 patient medications without scope, got %d", st)
		}
	}

	// 8) Paciente con posologías no se puede borrar
	{
		st, _ := doReq(t, ts.URL, "DELETE", "/patients/"+patientID, ownerID, nil)
		if st != http.StatusConflict {
			t.Fatalf("expected 409 delete patient in use, got %d", st)
		}
	}

	// 9) Resumen de inicio
	{
		st, body := doReq(t, ts.URL, "GET", "/summary", ownerID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 summary, got %d body=%s", st, string(body))
		}
	}

	// 10) Revocado, pierde acceso inmediatamente
	{
		st, body := doReq(t, ts.URL, "POST", "/grants/"+grantID+"/revoke", ownerID, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 revoke grant, got %d body=%s", st, string(body))
		}
	}
	{
		st, _ := doReq(t, ts.URL, "POST", "/stock/"+medID+"/movements", delegateID, map[string]any{
			"direction": "out",
			"quantity":  "2",
		})
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 after revoke, got %d", st)
		}
	}
}

type pushRecorder struct{ msgs []notify.Message }

func (p *pushRecorder) Send(_ context.Context, m notify.Message) error {
	p.msgs = append(p.msgs, m)
	return nil
}

func TestAlertsDispatchAll_ReachesOwnerWithoutSettings(t *testing.T) {
	push := &pushRecorder{}
	opts := router.Options{
		Senders:     map[notify.Channel]notify.Sender{notify.ChannelPush: push},
		Metrics:     metrics.New(),
		Logger:      zerolog.Nop(),
		PhoneRegion: "BR",
	}
	svc := router.NewServices(opts)
	ts := httptest.NewServer(router.Mount(opts, svc))
	t.Cleanup(ts.Close)

	ownerID := "owner-2"
	patientID := createResource(t, ts.URL, ownerID, "/patients", map[string]any{"name": "Jorge"})
	medID := createResource(t, ts.URL, ownerID, "/medications", map[string]any{
		"name":          "Metformina",
		"dosage_amount": "850",
		"dosage_unit":   "mg",
		"box_quantity":  "30",
	})
	if st, body := doReq(t, ts.URL, "POST", "/medications/"+medID+"/patients", ownerID, map[string]any{
		"patient_id":           patientID,
		"frequency":            "twice_daily",
		"administration_times": []string{"08:00", "20:00"},
		"treatment_type":       "continuous",
	}); st != http.StatusCreated {
		t.Fatalf("expected 201 assign posology, got %d body=%s", st, string(body))
	}
	// 2 unidades a 2/día => 1 día de stock, crítico
	if st, body := doReq(t, ts.URL, "POST", "/stock/"+medID+"/movements", ownerID, map[string]any{
		"direction": "in",
		"quantity":  "2",
	}); st != http.StatusCreated {
		t.Fatalf("expected 201 stock in, got %d body=%s", st, string(body))
	}

	ctx := context.Background()
	saved, err := svc.Settings.ListOwners(ctx)
	if err != nil {
		t.Fatalf("list settings owners: %v", err)
	}
	if len(saved) != 0 {
		t.Fatalf("expected no saved settings yet, got %v", saved)
	}

	reports, err := svc.Dispatcher.DispatchAll(ctx, svc.Medications, svc.Prescriptions, svc.Settings)
	if err != nil {
		t.Fatalf("dispatch all: %v", err)
	}
	if len(reports) != 1 || reports[0].OwnerUserID != ownerID {
		t.Fatalf("expected one report for %s, got %+v", ownerID, reports)
	}
	if reports[0].Err != nil || reports[0].Alerts != 1 {
		t.Fatalf("expected 1 alert without error, got %+v", reports[0])
	}
	if len(push.msgs) != 1 || push.msgs[0].To != ownerID {
		t.Fatalf("expected one push to %s, got %+v", ownerID, push.msgs)
	}
}

func TestHTTP_InviteGrant_RejectsUnknownScope(t *testing.T) {
	ts := newTestServer(t)

	ownerID := "owner-1"
	patientID := createResource(t, ts.URL, ownerID, "/patients", map[string]any{"name": "Helena"})

	st, _ := doReq(t, ts.URL, "POST", "/patients/"+patientID+"/grants", ownerID, map[string]any{
		"grantee_user_id": "delegate-1",
		"scopes":          []string{"patient:read", "stock:unknown"},
	})
	if st != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown scope, got %d", st)
	}
}

func TestHTTP_RequiresUser(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/patients", "/stock", "/alerts", "/summary"} {
		st, _ := doReq(t, ts.URL, "GET", path, "", nil)
		if st != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 without user, got %d", path, st)
		}
	}
}

func TestHTTP_OperationalEndpoints(t *testing.T) {
	ts := newTestServer(t)

	if st, _ := doReq(t, ts.URL, "GET", "/health", "", nil); st != http.StatusOK {
		t.Fatalf("expected 200 health, got %d", st)
	}

	// un request previo para que el contador HTTP tenga muestras
	_, _ = doReq(t, ts.URL, "GET", "/patients", "owner-1", nil)

	st, body := doReq(t, ts.URL, "GET", "/metrics", "", nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 metrics, got %d", st)
	}
	if !bytes.Contains(body, []byte("deja_http_requests_total")) {
		t.Fatalf("metrics output missing http counter")
	}
}

type stockStatusResponse struct {
	DaysRemaining *int   `json:"days_remaining"`
	Level         string `json:"level"`
}

func stockStatus(t *testing.T, baseURL, userID, medID string) stockStatusResponse {
	t.Helper()

	st, body := doReq(t, baseURL, "GET", "/stock/"+medID, userID, nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 stock status, got %d body=%s", st, string(body))
	}
	var resp stockStatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode stock status: %v", err)
	}
	return resp
}

func createResource(t *testing.T, baseURL, userID, path string, payload map[string]any) string {
	t.Helper()

	st, body := doReq(t, baseURL, "POST", path, userID, payload)
	if st != http.StatusCreated {
		t.Fatalf("expected 201 POST %s, got %d body=%s", path, st, string(body))
	}

	var resp struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &resp)
	if resp.ID == "" {
		t.Fatalf("POST %s: missing id body=%s", path, string(body))
	}
	return resp.ID
}

func doReq(t *testing.T, baseURL, method, path, debugUserID string, body any) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if debugUserID != "" {
		req.Header.Set("X-Debug-User-ID", debugUserID)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, respBody
}
