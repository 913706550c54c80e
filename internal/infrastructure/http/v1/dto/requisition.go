package dto

import (
	"time"

	"medstock/internal/core/apperror"
	"medstock/internal/core/id"
	"medstock/internal/core/types"
	"medstock/internal/domain/fulfillment"
	"medstock/internal/domain/requisition"
)

type CreateRequisitionLineRequest struct {
	ItemID       string         `json:"itemId" binding:"required"`
	RequestedQty types.Quantity `json:"requestedQty" binding:"required"`
	Note         string         `json:"note"`
}

type CreateRequisitionRequest struct {
	Source      string                         `json:"source" binding:"required"`
	RequesterID string                         `json:"requesterId" binding:"required"`
	WarehouseID string                         `json:"warehouseId" binding:"required"`
	Date        *time.Time                     `json:"date"`
	Remarks     string                         `json:"remarks"`
	Lines       []CreateRequisitionLineRequest `json:"lines" binding:"required"`
}

// ToModel builds a requisition from the request. Validation of
// references and quantities happens in the service.
func (r CreateRequisitionRequest) ToModel() (*requisition.Requisition, error) {
	requesterID, err := id.Parse(r.RequesterID)
	if err != nil {
		return nil, apperror.NewValidation("invalid requesterId format")
	}
	warehouseID, err := id.Parse(r.WarehouseID)
	if err != nil {
		return nil, apperror.NewValidation("invalid warehouseId format")
	}

	date := time.Now().UTC()
	if r.Date != nil {
		date = r.Date.UTC()
	}

	req := &requisition.Requisition{
		Date:        date,
		Source:      requisition.Source(r.Source),
		RequesterID: requesterID,
		WarehouseID: warehouseID,
		Remarks:     r.Remarks,
	}
	for _, l := range r.Lines {
		itemID, err := id.Parse(l.ItemID)
		if err != nil {
			return nil, apperror.NewValidation("invalid line itemId format")
		}
		req.Lines = append(req.Lines, requisition.Line{
			ItemID:       itemID,
			RequestedQty: l.RequestedQty,
			Note:         l.Note,
		})
	}
	return req, nil
}

type ApproveLineRequest struct {
	ItemID   string         `json:"itemId" binding:"required"`
	Quantity types.Quantity `json:"quantity"`
}

type ApproveRequisitionRequest struct {
	Lines []ApproveLineRequest `json:"lines" binding:"required"`
}

func (r ApproveRequisitionRequest) ToApprovals() ([]fulfillment.LineApproval, error) {
	approvals := make([]fulfillment.LineApproval, 0, len(r.Lines))
	for _, l := range r.Lines {
		itemID, err := id.Parse(l.ItemID)
		if err != nil {
			return nil, apperror.NewValidation("invalid line itemId format")
		}
		approvals = append(approvals, fulfillment.LineApproval{
			ItemID:   itemID,
			Quantity: l.Quantity,
		})
	}
	return approvals, nil
}

type RejectRequisitionRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type DispatchRequisitionRequest struct {
	Remarks string `json:"remarks"`
}

type DeliverLineRequest struct {
	ItemID   string         `json:"itemId" binding:"required"`
	Quantity types.Quantity `json:"quantity" binding:"required"`
}

// DeliverRequisitionRequest confirms a delivery. Without lines the
// whole outstanding shipment is confirmed; with lines only the named
// amounts are.
type DeliverRequisitionRequest struct {
	Lines []DeliverLineRequest `json:"lines"`
}

func (r DeliverRequisitionRequest) ToDeliveries() ([]fulfillment.LineDelivery, error) {
	deliveries := make([]fulfillment.LineDelivery, 0, len(r.Lines))
	for _, l := range r.Lines {
		itemID, err := id.Parse(l.ItemID)
		if err != nil {
			return nil, apperror.NewValidation("invalid line itemId format")
		}
		deliveries = append(deliveries, fulfillment.LineDelivery{
			ItemID:   itemID,
			Quantity: l.Quantity,
		})
	}
	return deliveries, nil
}

type RequisitionLineResponse struct {
	ID           string         `json:"id"`
	ItemID       string         `json:"itemId"`
	RequestedQty types.Quantity `json:"requestedQty"`
	ApprovedQty  types.Quantity `json:"approvedQty"`
	DeliveredQty types.Quantity `json:"deliveredQty"`
	Note         string         `json:"note,omitempty"`
}

type RequisitionResponse struct {
	ID          string                    `json:"id"`
	Number      string                    `json:"number"`
	Date        time.Time                 `json:"date"`
	Source      string                    `json:"source"`
	RequesterID string                    `json:"requesterId"`
	WarehouseID string                    `json:"warehouseId"`
	Status      string                    `json:"status"`
	Remarks     string                    `json:"remarks,omitempty"`
	ApprovedBy  string                    `json:"approvedBy,omitempty"`
	ApprovedAt  *time.Time                `json:"approvedAt,omitempty"`
	RejectedBy  string                    `json:"rejectedBy,omitempty"`
	RejectedAt  *time.Time                `json:"rejectedAt,omitempty"`
	RejectedFor string                    `json:"rejectedFor,omitempty"`
	Lines       []RequisitionLineResponse `json:"lines"`
	CreatedBy   string                    `json:"createdBy,omitempty"`
	CreatedAt   time.Time                 `json:"createdAt"`
	UpdatedAt   time.Time                 `json:"updatedAt"`
	Version     int                       `json:"version"`
}

func MapRequisitionToDTO(r *requisition.Requisition) RequisitionResponse {
	lines := make([]RequisitionLineResponse, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = RequisitionLineResponse{
			ID:           l.ID.String(),
			ItemID:       l.ItemID.String(),
			RequestedQty: l.RequestedQty,
			ApprovedQty:  l.ApprovedQty,
			DeliveredQty: l.DeliveredQty,
			Note:         l.Note,
		}
	}
	return RequisitionResponse{
		ID:          r.ID.String(),
		Number:      r.Number,
		Date:        r.Date,
		Source:      string(r.Source),
		RequesterID: r.RequesterID.String(),
		WarehouseID: r.WarehouseID.String(),
		Status:      string(r.Status),
		Remarks:     r.Remarks,
		ApprovedBy:  r.ApprovedBy,
		ApprovedAt:  r.ApprovedAt,
		RejectedBy:  r.RejectedBy,
		RejectedAt:  r.RejectedAt,
		RejectedFor: r.RejectedFor,
		Lines:       lines,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Version:     r.Version,
	}
}
