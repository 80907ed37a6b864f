//go:build integration

package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custodia/internal/shipment/models"
	"custodia/internal/shipment/store"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/testutil/containers"
)

type PostgresShipmentSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresShipmentSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresShipmentSuite))
}

func (s *PostgresShipmentSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresShipmentSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "shipments"))
}

func (s *PostgresShipmentSuite) newShipment(trackingNumber string) *models.Shipment {
	shipper := id.NewParticipantID()
	sh, err := models.NewShipment(id.NewShipmentID(), models.NewShipmentInput{
		TrackingNumber:    trackingNumber,
		ProductRef:        "SKU-1",
		Shipper:           shipper,
		Consignee:         id.NewParticipantID(),
		Origin:            models.Location{Latitude: "52.37", Longitude: "4.89", Address: "Origin", CountryCode: "NL"},
		Destination:       models.Location{Latitude: "40.71", Longitude: "-74.00", Address: "Dest", CountryCode: "US"},
		EstimatedDelivery: time.Now().UTC().Add(72 * time.Hour),
		Stages:            []models.SupplyStage{{Name: "pickup", ResponsibleParty: shipper}},
	}, time.Now().UTC())
	s.Require().NoError(err)
	return sh
}

func (s *PostgresShipmentSuite) TestCreateAndFind() {
	ctx := context.Background()
	sh := s.newShipment("PGTN-1")
	s.Require().NoError(s.store.Create(ctx, sh))

	byID, err := s.store.FindByID(ctx, sh.ID)
	s.Require().NoError(err)
	s.Equal(sh.TrackingNumber, byID.TrackingNumber)
	s.Equal(sh.ChainDigest, byID.ChainDigest)

	byTracking, err := s.store.FindByTrackingNumber(ctx, "PGTN-1")
	s.Require().NoError(err)
	s.Equal(sh.ID, byTracking.ID)
}

func (s *PostgresShipmentSuite) TestDuplicateTrackingNumber() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newShipment("PGTN-DUP")))
	err := s.store.Create(ctx, s.newShipment("PGTN-DUP"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresShipmentSuite) TestFindUnknown() {
	_, err := s.store.FindByID(context.Background(), id.NewShipmentID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresShipmentSuite) TestDeleteFreesTrackingNumber() {
	ctx := context.Background()
	sh := s.newShipment("PGTN-DEL")
	s.Require().NoError(s.store.Create(ctx, sh))
	s.Require().NoError(s.store.Delete(ctx, sh.ID))

	_, err := s.store.FindByID(ctx, sh.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	s.Require().NoError(s.store.Create(ctx, s.newShipment("PGTN-DEL")))
}

func (s *PostgresShipmentSuite) TestExecuteAppliesAndBumpsVersion() {
	ctx := context.Background()
	sh := s.newShipment("PGTN-EXEC")
	s.Require().NoError(s.store.Create(ctx, sh))

	updated, err := s.store.Execute(ctx, sh.ID,
		func(cur *models.Shipment) error { return nil },
		func(cur *models.Shipment) {
			cur.ApplyGPSPoint(models.GPSPoint{Latitude: "51.0", Longitude: "4.0", RecordedAt: time.Now().UTC()})
		},
	)
	s.Require().NoError(err)
	s.Equal(int64(1), updated.Version)
	s.Len(updated.GPSTrail, 1)

	reloaded, err := s.store.FindByID(ctx, sh.ID)
	s.Require().NoError(err)
	s.Len(reloaded.GPSTrail, 1)
	s.NotEqual(sh.ChainDigest, reloaded.ChainDigest)
}

func (s *PostgresShipmentSuite) TestExecuteValidateErrorLeavesRowUntouched() {
	ctx := context.Background()
	sh := s.newShipment("PGTN-VAL")
	s.Require().NoError(s.store.Create(ctx, sh))

	wantErr := sentinel.ErrInvalidState
	_, err := s.store.Execute(ctx, sh.ID,
		func(*models.Shipment) error { return wantErr },
		func(*models.Shipment) { s.FailNow("apply must not run after a validation error") },
	)
	s.Require().ErrorIs(err, wantErr)

	reloaded, err := s.store.FindByID(ctx, sh.ID)
	s.Require().NoError(err)
	s.Equal(int64(0), reloaded.Version)
}

// TestExecuteSerializesWriters drives concurrent mutations through the row
// lock and expects every append to land exactly once.
func (s *PostgresShipmentSuite) TestExecuteSerializesWriters() {
	ctx := context.Background()
	sh := s.newShipment("PGTN-CONC")
	s.Require().NoError(s.store.Create(ctx, sh))

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(ctx, sh.ID,
				func(*models.Shipment) error { return nil },
				func(cur *models.Shipment) {
					cur.ApplyGPSPoint(models.GPSPoint{Latitude: "50.0", Longitude: "3.0", RecordedAt: time.Now().UTC()})
				},
			)
			s.NoError(err)
		}()
	}
	wg.Wait()

	reloaded, err := s.store.FindByID(ctx, sh.ID)
	s.Require().NoError(err)
	s.Len(reloaded.GPSTrail, writers)
	s.Equal(int64(writers), reloaded.Version)
}
