package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stage - этап прохождения PIB
type Stage string

const (
	StageSubmitted Stage = "submitted"
	StagePayment   Stage = "payment"
	StageCustoms   Stage = "customs"
	StageSPPB      Stage = "sppb"
)

// Stages - этапы в порядке прохождения
var Stages = []Stage{StageSubmitted, StagePayment, StageCustoms, StageSPPB}

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusDelayed    Status = "delayed"
)

// StageState - состояние одного этапа
type StageState struct {
	Stage     Stage      `json:"stage"`
	Status    Status     `json:"status"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// PIBSubmission - данные формы подачи PIB
type PIBSubmission struct {
	SJCNumber       string `json:"sjcNumber"`
	SJCCode         string `json:"sjcCode"`
	StuffingDate    string `json:"stuffingDate,omitempty"`
	SJCPrintDate    string `json:"sjcPrintDate,omitempty"`
	Origin          string `json:"origin"`
	Destination     string `json:"destination"`
	Service         string `json:"service,omitempty"`
	ShipperName     string `json:"shipperName"`
	ShipperAddress  string `json:"shipperAddress,omitempty"`
	ShipperPhone    string `json:"shipperPhone,omitempty"`
	VesselName      string `json:"vesselName"`
	RONumber        string `json:"roNumber"`
	ContainerPrefix string `json:"containerPrefix,omitempty"`
	ContainerNumber string `json:"containerNumber"`
	ContainerSize   string `json:"containerSize,omitempty"`
	ContainerStatus string `json:"containerStatus,omitempty"`
	SealNumber      string `json:"sealNumber,omitempty"`
	Importer        string `json:"importer,omitempty"`
	HSCode          string `json:"hsCode,omitempty"`
	QuoteToken      string `json:"quoteToken,omitempty"`
}

// Declaration - поданная PIB и ее отслеживание
type Declaration struct {
	ID            string          `json:"id"`
	Submission    PIBSubmission   `json:"submission"`
	Stages        []StageState    `json:"stages"`
	CurrentStage  Stage           `json:"currentStage"`
	Status        Status          `json:"status"`
	Notifications []string        `json:"notifications"`
	TotalTax      decimal.Decimal `json:"totalTax"`
	LandedCost    decimal.Decimal `json:"landedCost"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// TrackingEvent - событие от таможни или оператора
type TrackingEvent struct {
	DeclarationID string    `json:"declarationId"`
	Stage         Stage     `json:"stage"`
	Status        Status    `json:"status"`
	At            time.Time `json:"at"`
	Note          string    `json:"note,omitempty"`
}
