package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testLocation(lat, long string) Location {
	return Location{
		Latitude:     lat,
		Longitude:    long,
		Address:      "1 Harbor Way",
		CountryCode:  "NL",
		FacilityType: "warehouse",
	}
}

func newTestShipment(t *testing.T, stages ...id.ParticipantID) *Shipment {
	t.Helper()
	shipper := id.NewParticipantID()
	if len(stages) == 0 {
		stages = []id.ParticipantID{shipper}
	}
	plan := make([]SupplyStage, len(stages))
	for i, party := range stages {
		plan[i] = SupplyStage{
			Name:             "stage-" + string(rune('a'+i)),
			ResponsibleParty: party,
			ExpectedLocation: testLocation("52.37", "4.89"),
		}
	}
	sh, err := NewShipment(id.NewShipmentID(), NewShipmentInput{
		TrackingNumber:    "TRK-0001",
		ProductRef:        "SKU-778",
		Shipper:           shipper,
		Consignee:         id.NewParticipantID(),
		Origin:            testLocation("52.37", "4.89"),
		Destination:       testLocation("40.71", "-74.00"),
		EstimatedDelivery: testNow.Add(72 * time.Hour),
		Stages:            plan,
	}, testNow)
	require.NoError(t, err)
	return sh
}

func TestNewShipment(t *testing.T) {
	t.Run("initial state", func(t *testing.T) {
		sh := newTestShipment(t)
		assert.Equal(t, StatusCreated, sh.Status)
		assert.Equal(t, sh.Shipper, sh.CurrentCustodian)
		assert.Equal(t, sh.Origin, sh.CurrentLocation)
		assert.Equal(t, 0, sh.CurrentStageIndex)
		assert.Equal(t, 0, sh.RiskScore)
		assert.NotEmpty(t, sh.IntegrityDigest)
		assert.Equal(t, sh.IntegrityDigest, sh.ChainDigest)
	})

	t.Run("rejects empty stage plan", func(t *testing.T) {
		_, err := NewShipment(id.NewShipmentID(), NewShipmentInput{
			TrackingNumber: "TRK-0002",
			ProductRef:     "SKU-1",
			Shipper:        id.NewParticipantID(),
			Consignee:      id.NewParticipantID(),
			Origin:         testLocation("1", "1"),
			Destination:    testLocation("2", "2"),
		}, testNow)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects pre-completed stage", func(t *testing.T) {
		_, err := NewShipment(id.NewShipmentID(), NewShipmentInput{
			TrackingNumber: "TRK-0003",
			ProductRef:     "SKU-1",
			Shipper:        id.NewParticipantID(),
			Consignee:      id.NewParticipantID(),
			Origin:         testLocation("1", "1"),
			Destination:    testLocation("2", "2"),
			Stages: []SupplyStage{{
				Name:             "done",
				ResponsibleParty: id.NewParticipantID(),
				Completed:        true,
			}},
		}, testNow)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("authorized handlers are kept, deduplicated, and skip the shipper", func(t *testing.T) {
		shipper := id.NewParticipantID()
		handler := id.NewParticipantID()
		sh, err := NewShipment(id.NewShipmentID(), NewShipmentInput{
			TrackingNumber:     "TRK-0004",
			ProductRef:         "SKU-1",
			Shipper:            shipper,
			Consignee:          id.NewParticipantID(),
			AuthorizedHandlers: []id.ParticipantID{handler, handler, shipper},
			Origin:             testLocation("1", "1"),
			Destination:        testLocation("2", "2"),
			Stages: []SupplyStage{{
				Name:             "pickup",
				ResponsibleParty: shipper,
			}},
		}, testNow)
		require.NoError(t, err)
		assert.Equal(t, []id.ParticipantID{handler}, sh.AuthorizedHandlers)
		assert.True(t, sh.IsHandler(handler))
		assert.True(t, sh.IsHandler(shipper))
		assert.False(t, sh.IsHandler(id.NewParticipantID()))
	})

	t.Run("rejects a nil authorized handler", func(t *testing.T) {
		shipper := id.NewParticipantID()
		_, err := NewShipment(id.NewShipmentID(), NewShipmentInput{
			TrackingNumber:     "TRK-0005",
			ProductRef:         "SKU-1",
			Shipper:            shipper,
			Consignee:          id.NewParticipantID(),
			AuthorizedHandlers: []id.ParticipantID{{}},
			Origin:             testLocation("1", "1"),
			Destination:        testLocation("2", "2"),
			Stages: []SupplyStage{{
				Name:             "pickup",
				ResponsibleParty: shipper,
			}},
		}, testNow)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("creation digest is deterministic", func(t *testing.T) {
		a := CreationDigest("TRK-1", "origin street", "destination street")
		b := CreationDigest("TRK-1", "origin street", "destination street")
		c := CreationDigest("TRK-2", "origin street", "destination street")
		assert.Equal(t, a, b)
		assert.NotEqual(t, a, c)
	})
}

func TestCustodyTransfer(t *testing.T) {
	sh := newTestShipment(t)
	next := id.NewParticipantID()

	t.Run("only the custodian may transfer", func(t *testing.T) {
		err := sh.CanTransferCustody(id.NewParticipantID())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("accepted transfer moves custody and location", func(t *testing.T) {
		require.NoError(t, sh.CanTransferCustody(sh.Shipper))
		before := sh.ChainDigest
		handover := testLocation("51.92", "4.48")
		sh.ApplyCustodyTransfer(CustodySignature{
			Signer:    sh.Shipper,
			Signature: "sig-1",
			Action:    "custody_transfer",
			Location:  handover,
			Timestamp: testNow.Add(time.Hour),
		}, next)

		assert.Equal(t, next, sh.CurrentCustodian)
		assert.Equal(t, handover, sh.CurrentLocation)
		assert.Equal(t, StatusInTransit, sh.Status)
		assert.Len(t, sh.CustodyChain, 1)
		assert.NotEqual(t, before, sh.ChainDigest)
		assert.Equal(t, sh.IntegrityDigest, CreationDigest(sh.TrackingNumber, sh.Origin.Address, sh.Destination.Address))
	})

	t.Run("chain length tracks accepted transfers", func(t *testing.T) {
		third := id.NewParticipantID()
		require.NoError(t, sh.CanTransferCustody(next))
		sh.ApplyCustodyTransfer(CustodySignature{
			Signer:    next,
			Signature: "sig-2",
			Location:  testLocation("50.0", "3.0"),
			Timestamp: testNow.Add(2 * time.Hour),
		}, third)
		assert.Len(t, sh.CustodyChain, 2)
		assert.Equal(t, third, sh.CurrentCustodian)
	})
}

func TestStageCompletion(t *testing.T) {
	partyA := id.NewParticipantID()
	partyB := id.NewParticipantID()

	t.Run("strictly sequential and delivered on last stage", func(t *testing.T) {
		sh := newTestShipment(t, partyA, partyB)

		require.NoError(t, sh.CanCompleteStage(partyA))
		delivered := sh.ApplyStageCompletion([]string{"sig-a"}, testNow.Add(time.Hour))
		assert.False(t, delivered)
		assert.Equal(t, 1, sh.CurrentStageIndex)
		assert.Equal(t, StatusInTransit, sh.Status)
		assert.Nil(t, sh.ActualDelivery)

		require.NoError(t, sh.CanCompleteStage(partyB))
		delivered = sh.ApplyStageCompletion([]string{"sig-b"}, testNow.Add(2*time.Hour))
		assert.True(t, delivered)
		assert.Equal(t, 2, sh.CurrentStageIndex)
		assert.Equal(t, StatusDelivered, sh.Status)
		require.NotNil(t, sh.ActualDelivery)
		assert.Equal(t, testNow.Add(2*time.Hour), *sh.ActualDelivery)
	})

	t.Run("wrong party is unauthorized", func(t *testing.T) {
		sh := newTestShipment(t, partyA, partyB)
		err := sh.CanCompleteStage(partyB)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Equal(t, 0, sh.CurrentStageIndex)
	})

	t.Run("no stage past the end", func(t *testing.T) {
		sh := newTestShipment(t, partyA)
		require.NoError(t, sh.CanCompleteStage(partyA))
		sh.ApplyStageCompletion(nil, testNow)
		err := sh.CanCompleteStage(partyA)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func TestSeals(t *testing.T) {
	sh := newTestShipment(t)

	t.Run("only custodian may seal", func(t *testing.T) {
		err := sh.CanAddSeal(id.NewParticipantID(), "SEAL-1")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("seal ids are unique per shipment", func(t *testing.T) {
		require.NoError(t, sh.CanAddSeal(sh.CurrentCustodian, "SEAL-1"))
		sh.ApplySeal(TamperSeal{SealID: "SEAL-1", Type: "bolt", AppliedBy: sh.CurrentCustodian, AppliedAt: testNow})
		err := sh.CanAddSeal(sh.CurrentCustodian, "SEAL-1")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("a seal breaks exactly once", func(t *testing.T) {
		seal := sh.FindSeal("SEAL-1")
		require.NotNil(t, seal)
		require.NoError(t, seal.CanBreak())

		sh.ApplySealBreak(seal, "visual inspection", testNow.Add(time.Hour))
		assert.True(t, seal.Broken)
		require.NotNil(t, seal.BrokenAt)
		assert.Equal(t, "visual inspection", seal.DetectionMethod)

		err := seal.CanBreak()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func TestIncidentRiskScore(t *testing.T) {
	sh := newTestShipment(t)

	sh.ApplyIncident(SecurityAlert{Type: AlertTheft, Severity: 4, Timestamp: testNow})
	assert.Equal(t, 40, sh.RiskScore)

	sh.ApplyIncident(SecurityAlert{Type: AlertRouteDeviate, Severity: 4, Timestamp: testNow})
	assert.Equal(t, 80, sh.RiskScore)

	// Saturates at exactly 100, never above.
	sh.ApplyIncident(SecurityAlert{Type: AlertTamper, Severity: 5, Timestamp: testNow})
	assert.Equal(t, 100, sh.RiskScore)

	sh.ApplyIncident(SecurityAlert{Type: AlertOther, Severity: 1, Timestamp: testNow})
	assert.Equal(t, 100, sh.RiskScore)
	assert.Len(t, sh.Alerts, 4)
}

func TestGPSPointUpdatesOnlyCoordinates(t *testing.T) {
	sh := newTestShipment(t)
	origAddress := sh.CurrentLocation.Address
	origCountry := sh.CurrentLocation.CountryCode

	sh.ApplyGPSPoint(GPSPoint{Latitude: "48.85", Longitude: "2.35", Source: "tracker-unit", RecordedAt: testNow})

	assert.Equal(t, "48.85", sh.CurrentLocation.Latitude)
	assert.Equal(t, "2.35", sh.CurrentLocation.Longitude)
	assert.Equal(t, origAddress, sh.CurrentLocation.Address)
	assert.Equal(t, origCountry, sh.CurrentLocation.CountryCode)
	assert.Len(t, sh.GPSTrail, 1)
}

func TestSensorTrailAppendOnly(t *testing.T) {
	sh := newTestShipment(t)
	reading := SensorReading{SensorID: "S-1", Quantity: QuantityTemperature, Value: 4.2, RecordedAt: testNow}

	sh.ApplySensorReading(reading, nil)
	assert.Len(t, sh.SensorTrail, 1)
	assert.Empty(t, sh.Violations)

	violation := &ConditionViolation{SensorID: "S-1", Quantity: QuantityTemperature, Observed: 50, Severity: 1, DetectedAt: testNow}
	sh.ApplySensorReading(SensorReading{SensorID: "S-1", Quantity: QuantityTemperature, Value: 50, RecordedAt: testNow}, violation)
	assert.Len(t, sh.SensorTrail, 2)
	assert.Len(t, sh.Violations, 1)
}

func TestStatusOverrides(t *testing.T) {
	t.Run("only lost, delayed, recalled are administrative", func(t *testing.T) {
		sh := newTestShipment(t)
		err := sh.CanUpdateStatus(StatusDelivered)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))

		require.NoError(t, sh.CanUpdateStatus(StatusLost))
		sh.ApplyStatusUpdate(StatusLost)
		assert.Equal(t, StatusLost, sh.Status)
	})

	t.Run("delivered shipments can only be recalled", func(t *testing.T) {
		party := id.NewParticipantID()
		sh := newTestShipment(t, party)
		sh.ApplyStageCompletion(nil, testNow)
		require.Equal(t, StatusDelivered, sh.Status)

		err := sh.CanUpdateStatus(StatusLost)
		require.Error(t, err)
		require.NoError(t, sh.CanUpdateStatus(StatusRecalled))
		sh.ApplyStatusUpdate(StatusRecalled)
		assert.Equal(t, StatusRecalled, sh.Status)
	})
}

func TestChainDigestAdvancesOnEveryMutation(t *testing.T) {
	sh := newTestShipment(t)
	seen := map[string]bool{sh.ChainDigest: true}

	sh.ApplySeal(TamperSeal{SealID: "S", AppliedBy: sh.CurrentCustodian, AppliedAt: testNow})
	require.False(t, seen[sh.ChainDigest])
	seen[sh.ChainDigest] = true

	sh.ApplyGPSPoint(GPSPoint{Latitude: "1", Longitude: "2", RecordedAt: testNow})
	require.False(t, seen[sh.ChainDigest])
	seen[sh.ChainDigest] = true

	sh.ApplyIncident(SecurityAlert{Type: AlertOther, Severity: 1, Timestamp: testNow})
	require.False(t, seen[sh.ChainDigest])

	// The creation digest never moves.
	assert.Equal(t, CreationDigest(sh.TrackingNumber, sh.Origin.Address, sh.Destination.Address), sh.IntegrityDigest)
}
