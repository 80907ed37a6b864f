package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/internal/audit"
	"custodia/internal/events"
	jwttoken "custodia/internal/jwt_token"
	participantservice "custodia/internal/participant/service"
	participantstore "custodia/internal/participant/store"
	shipmentservice "custodia/internal/shipment/service"
	shipmentstore "custodia/internal/shipment/store"
	trackerservice "custodia/internal/tracker/service"
	trackerstore "custodia/internal/tracker/store"
	id "custodia/pkg/domain"
)

const testAdminToken = "test-admin-token"

type apiFixture struct {
	router   http.Handler
	recorder *events.Recorder
	jwt      *jwttoken.JWTService

	admin    id.ParticipantID
	shipper  id.ParticipantID
	carrier  id.ParticipantID
	retailer id.ParticipantID
	outsider id.ParticipantID
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &apiFixture{
		recorder: events.NewRecorder(),
		jwt:      jwttoken.NewJWTService("router-test-key", "custodia", "custodia-api"),
		admin:    id.NewParticipantID(),
		shipper:  id.NewParticipantID(),
		carrier:  id.NewParticipantID(),
		retailer: id.NewParticipantID(),
		outsider: id.NewParticipantID(),
	}

	registry := participantservice.NewRegistry(participantstore.NewInMemory(), f.admin, logger)
	tracker := trackerservice.New(trackerstore.NewInMemory(), registry, logger)
	engine := shipmentservice.New(
		shipmentstore.NewInMemory(), registry, tracker,
		audit.NewPublisher(audit.NewInMemoryStore()), logger,
		shipmentservice.WithEvents(f.recorder),
	)

	f.router = NewRouter(RouterDeps{
		Shipments:    NewShipmentHandler(engine, logger),
		Participants: NewParticipantHandler(registry, logger),
		Tracker:      NewTrackerHandler(tracker, logger),
		Validator:    f.jwt,
		AdminToken:   testAdminToken,
		Logger:       logger,
	})

	ctx := context.Background()
	for _, p := range []struct {
		participantID id.ParticipantID
		name          string
		role          id.Role
	}{
		{f.shipper, "Apex Pharma", id.RoleManufacturer},
		{f.carrier, "Meridian Freight", id.RoleDistributor},
		{f.retailer, "Corner Drugstore", id.RoleRetailer},
	} {
		_, err := registry.Register(ctx, f.admin, participantservice.RegisterInput{
			ID:        p.participantID,
			Name:      p.name,
			Role:      p.role,
			PublicKey: "pk-" + p.name,
		})
		require.NoError(t, err)
	}
	return f
}

func (f *apiFixture) do(t *testing.T, caller id.ParticipantID, method, path string, body any, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !caller.IsNil() {
		token, err := f.jwt.GenerateAccessToken(caller, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func withAdminToken(req *http.Request) {
	req.Header.Set("X-Admin-Token", testAdminToken)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst))
}

func (f *apiFixture) createShipmentPayload(trackingNumber string) map[string]any {
	return map[string]any{
		"tracking_number": trackingNumber,
		"product_ref":     "SKU-42",
		"shipper":         f.shipper.String(),
		"consignee":       f.retailer.String(),
		"origin": map[string]string{
			"latitude": "52.37", "longitude": "4.89",
			"address": "Dock 4, Rotterdam", "country_code": "NL", "facility_type": "warehouse",
		},
		"destination": map[string]string{
			"latitude": "40.71", "longitude": "-74.00",
			"address": "Pier 11, New York", "country_code": "US", "facility_type": "port",
		},
		"estimated_delivery": time.Now().Add(96 * time.Hour).UTC().Format(time.RFC3339),
		"stages": []map[string]any{
			{"name": "pickup", "responsible_party": f.shipper.String()},
			{"name": "linehaul", "responsible_party": f.carrier.String()},
		},
	}
}

func (f *apiFixture) createShipment(t *testing.T, trackingNumber string) string {
	t.Helper()
	rec := f.do(t, f.shipper, http.MethodPost, "/shipments", f.createShipmentPayload(trackingNumber))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &resp)
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func TestCreateCarriesHandlersAndCustoms(t *testing.T) {
	f := newAPIFixture(t)

	payload := f.createShipmentPayload("TN-HC-1")
	payload["authorized_handlers"] = []string{f.carrier.String()}
	payload["customs_declarations"] = []string{"EX-A/2026-0042"}

	rec := f.do(t, f.shipper, http.MethodPost, "/shipments", payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		ID                  string   `json:"id"`
		CurrentCustodian    string   `json:"current_custodian"`
		AuthorizedHandlers  []string `json:"authorized_handlers"`
		CustomsDeclarations []string `json:"customs_declarations"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, f.shipper.String(), resp.CurrentCustodian)
	assert.Equal(t, []string{f.carrier.String()}, resp.AuthorizedHandlers)
	assert.Equal(t, []string{"EX-A/2026-0042"}, resp.CustomsDeclarations)

	t.Run("handler may record GPS without holding custody", func(t *testing.T) {
		gps := f.do(t, f.carrier, http.MethodPost, "/shipments/"+resp.ID+"/gps", map[string]any{
			"latitude": "50.11", "longitude": "8.68", "source": "unit-12",
		})
		assert.Equal(t, http.StatusOK, gps.Code, gps.Body.String())
	})

	t.Run("malformed handler id is rejected", func(t *testing.T) {
		bad := f.createShipmentPayload("TN-HC-2")
		bad["authorized_handlers"] = []string{"not-a-uuid"}
		rec := f.do(t, f.shipper, http.MethodPost, "/shipments", bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestBearerTokenRequired(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, id.ParticipantID{}, http.MethodGet, "/shipments/tracking/TN-1", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/shipments/tracking/TN-1", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec2 := httptest.NewRecorder()
	f.router.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusUnauthorized, rec2.Code)
}

func TestAdminTokenRequired(t *testing.T) {
	f := newAPIFixture(t)

	body := map[string]any{
		"id": id.NewParticipantID().String(), "name": "X", "role": "auditor", "public_key": "pk",
	}
	rec := f.do(t, f.admin, http.MethodPost, "/participants", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, f.admin, http.MethodPost, "/participants", body, withAdminToken)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestHealthzIsPublic(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, id.ParticipantID{}, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestShipmentLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	shipmentID := f.createShipment(t, "TN-HTTP-1")

	rec := f.do(t, f.shipper, http.MethodGet, "/shipments/"+shipmentID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched struct {
		TrackingNumber string `json:"tracking_number"`
		Status         string `json:"status"`
	}
	decodeBody(t, rec, &fetched)
	assert.Equal(t, "TN-HTTP-1", fetched.TrackingNumber)
	assert.Equal(t, "created", fetched.Status)

	rec = f.do(t, f.shipper, http.MethodGet, "/shipments/tracking/TN-HTTP-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, f.shipper, http.MethodPost, "/shipments/"+shipmentID+"/custody", map[string]any{
		"new_custodian": f.carrier.String(),
		"signature":     "sig-handover",
		"location": map[string]string{
			"latitude": "51.92", "longitude": "4.48",
			"address": "Transfer yard", "country_code": "NL", "facility_type": "yard",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var afterTransfer struct {
		CurrentCustodian string `json:"current_custodian"`
		Status           string `json:"status"`
	}
	decodeBody(t, rec, &afterTransfer)
	assert.Equal(t, f.carrier.String(), afterTransfer.CurrentCustodian)
	assert.Equal(t, "in_transit", afterTransfer.Status)

	rec = f.do(t, f.carrier, http.MethodGet, "/tracker/"+shipmentID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entry struct {
		TrackingNumber string `json:"tracking_number"`
	}
	decodeBody(t, rec, &entry)
	assert.Equal(t, "TN-HTTP-1", entry.TrackingNumber)

	rec = f.do(t, f.carrier, http.MethodPost, "/shipments/"+shipmentID+"/gps", map[string]any{
		"latitude": "51.00", "longitude": "3.50", "source": "gps",
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, f.shipper, http.MethodGet, "/shipments/"+shipmentID+"/audit", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	f := newAPIFixture(t)
	shipmentID := f.createShipment(t, "TN-HTTP-ERR")

	t.Run("unauthorized actor is 403", func(t *testing.T) {
		rec := f.do(t, f.outsider, http.MethodPost, "/shipments", f.createShipmentPayload("TN-HTTP-NOPE"))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown shipment is 404", func(t *testing.T) {
		rec := f.do(t, f.shipper, http.MethodGet, "/shipments/"+id.NewShipmentID().String(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/shipments", bytes.NewReader([]byte("{not json")))
		token, err := f.jwt.GenerateAccessToken(f.shipper, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate tracking number is 409", func(t *testing.T) {
		rec := f.do(t, f.shipper, http.MethodPost, "/shipments", f.createShipmentPayload("TN-HTTP-ERR"))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("disallowed status override is 422", func(t *testing.T) {
		rec := f.do(t, f.admin, http.MethodPost, "/shipments/"+shipmentID+"/status",
			map[string]any{"status": "in_transit"}, withAdminToken)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("allowed status override is 200", func(t *testing.T) {
		rec := f.do(t, f.admin, http.MethodPost, "/shipments/"+shipmentID+"/status",
			map[string]any{"status": "delayed"}, withAdminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp struct {
			Status string `json:"status"`
		}
		decodeBody(t, rec, &resp)
		assert.Equal(t, "delayed", resp.Status)
	})
}

func TestZoneRoutes(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, f.admin, http.MethodPost, "/zones", map[string]any{
		"name":        "EU customs corridor",
		"countries":   []string{"NL", "DE", "BE"},
		"regulations": []string{"EU-2017/625"},
	}, withAdminToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, f.carrier, http.MethodPost, "/zones", map[string]any{
		"name": "rogue zone", "countries": []string{"NL"},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, f.carrier, http.MethodGet, "/zones?country=DE", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Zones []struct {
			Name string `json:"name"`
		} `json:"zones"`
	}
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Zones, 1)
	assert.Equal(t, "EU customs corridor", resp.Zones[0].Name)

	rec = f.do(t, f.carrier, http.MethodGet, "/zones?country=FR", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var empty struct {
		Zones []json.RawMessage `json:"zones"`
	}
	decodeBody(t, rec, &empty)
	assert.Empty(t, empty.Zones)
}
