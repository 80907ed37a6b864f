package httptransport

import (
	"time"

	"custodia/internal/shipment/models"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

type stageRequest struct {
	Name                  string          `json:"name"`
	ResponsibleParty      string          `json:"responsible_party"`
	ExpectedLocation      models.Location `json:"expected_location"`
	RequiredVerifications []string        `json:"required_verifications,omitempty"`
	RequiredDocuments     []string        `json:"required_documents,omitempty"`
	ExpectedDurationMin   int             `json:"expected_duration_minutes,omitempty"`
}

type createShipmentRequest struct {
	TrackingNumber     string                           `json:"tracking_number"`
	ProductRef         string                           `json:"product_ref"`
	Shipper            string                           `json:"shipper"`
	Consignee          string                           `json:"consignee"`
	AuthorizedHandlers []string                         `json:"authorized_handlers,omitempty"`
	Origin             models.Location                  `json:"origin"`
	Destination        models.Location                  `json:"destination"`
	EstimatedDelivery  time.Time                        `json:"estimated_delivery"`
	Stages             []stageRequest                   `json:"stages"`
	EnvBounds          map[models.Quantity]models.Range `json:"env_bounds,omitempty"`
	MaxExposureMinutes int                              `json:"max_exposure_minutes,omitempty"`
	TimeSensitive      bool                             `json:"time_sensitive,omitempty"`
	Documents          map[string]string                `json:"documents,omitempty"`
	Insurance          []string                         `json:"insurance,omitempty"`
	Customs            []string                         `json:"customs_declarations,omitempty"`
}

func (req createShipmentRequest) toInput() (models.NewShipmentInput, error) {
	shipper, err := id.ParseParticipantID(req.Shipper)
	if err != nil {
		return models.NewShipmentInput{}, dErrors.WithField(dErrors.CodeInvalidInput, "invalid shipper id", "shipper")
	}
	consignee, err := id.ParseParticipantID(req.Consignee)
	if err != nil {
		return models.NewShipmentInput{}, dErrors.WithField(dErrors.CodeInvalidInput, "invalid consignee id", "consignee")
	}
	handlers := make([]id.ParticipantID, 0, len(req.AuthorizedHandlers))
	for _, h := range req.AuthorizedHandlers {
		handler, err := id.ParseParticipantID(h)
		if err != nil {
			return models.NewShipmentInput{}, dErrors.WithField(dErrors.CodeInvalidInput, "invalid authorized handler id", "authorized_handlers")
		}
		handlers = append(handlers, handler)
	}
	stages := make([]models.SupplyStage, 0, len(req.Stages))
	for _, s := range req.Stages {
		party, err := id.ParseParticipantID(s.ResponsibleParty)
		if err != nil {
			return models.NewShipmentInput{}, dErrors.WithField(dErrors.CodeInvalidInput, "invalid responsible party id", "stages")
		}
		stages = append(stages, models.SupplyStage{
			Name:                  s.Name,
			ResponsibleParty:      party,
			ExpectedLocation:      s.ExpectedLocation,
			RequiredVerifications: s.RequiredVerifications,
			RequiredDocuments:     s.RequiredDocuments,
			ExpectedDuration:      time.Duration(s.ExpectedDurationMin) * time.Minute,
		})
	}
	return models.NewShipmentInput{
		TrackingNumber:     req.TrackingNumber,
		ProductRef:         req.ProductRef,
		Shipper:            shipper,
		Consignee:          consignee,
		AuthorizedHandlers: handlers,
		Origin:             req.Origin,
		Destination:        req.Destination,
		EstimatedDelivery:  req.EstimatedDelivery,
		Stages:             stages,
		EnvSpec: models.EnvironmentalSpec{
			Bounds:             req.EnvBounds,
			MaxExposureMinutes: req.MaxExposureMinutes,
			TimeSensitive:      req.TimeSensitive,
		},
		Documents: req.Documents,
		Insurance: req.Insurance,
		Customs:   req.Customs,
	}, nil
}

type transferCustodyRequest struct {
	NewCustodian string          `json:"new_custodian"`
	Signature    string          `json:"signature"`
	Location     models.Location `json:"location"`
	Witness      string          `json:"witness,omitempty"`
	Notes        string          `json:"notes,omitempty"`
}

type completeStageRequest struct {
	Signatures []string `json:"signatures"`
}

type addSealRequest struct {
	SealID    string `json:"seal_id"`
	Type      string `json:"type"`
	Signature string `json:"signature"`
}

type breakSealRequest struct {
	DetectionMethod string `json:"detection_method"`
}

type sensorReadingRequest struct {
	SensorID        string          `json:"sensor_id"`
	Quantity        models.Quantity `json:"quantity"`
	Value           float64         `json:"value"`
	Unit            string          `json:"unit"`
	QualityScore    float64         `json:"quality_score"`
	CalibrationDate time.Time       `json:"calibration_date"`
	RecordedAt      time.Time       `json:"recorded_at"`
}

type gpsPointRequest struct {
	Latitude   string    `json:"latitude"`
	Longitude  string    `json:"longitude"`
	AccuracyM  float64   `json:"accuracy_m"`
	Source     string    `json:"source"`
	RecordedAt time.Time `json:"recorded_at"`
}

type incidentRequest struct {
	Type        string          `json:"type"`
	Severity    int             `json:"severity"`
	Description string          `json:"description"`
	Location    models.Location `json:"location"`
}

type checkpointRequest struct {
	Name      string          `json:"name"`
	Signature string          `json:"signature"`
	Location  models.Location `json:"location"`
	Notes     string          `json:"notes,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type registerParticipantRequest struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Role           string   `json:"role"`
	PublicKey      string   `json:"public_key"`
	Certifications []string `json:"certifications,omitempty"`
	Regions        []string `json:"regions,omitempty"`
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

type recordAuditRequest struct {
	RiskRating int `json:"risk_rating"`
}

type registerZoneRequest struct {
	Name        string   `json:"name"`
	Countries   []string `json:"countries"`
	Regulations []string `json:"regulations,omitempty"`
}
