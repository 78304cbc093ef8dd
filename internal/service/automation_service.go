package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront-orders/internal/apperr"
	"storefront-orders/internal/model"
)

const automatedNote = "Automated update"

// sweepRule advances orders resting in from. Orders qualify after dwell in
// from, or once their estimated delivery passed when byEstimate is set.
type sweepRule struct {
	from       model.Status
	to         model.Status
	dwell      time.Duration
	byEstimate bool
}

var sweepRules = []sweepRule{
	{from: model.StatusConfirmed, to: model.StatusProcessing, dwell: 2 * time.Hour},
	{from: model.StatusProcessing, to: model.StatusShipped, dwell: 24 * time.Hour},
	{from: model.StatusShipped, to: model.StatusDelivered, byEstimate: true},
}

type SweepItem struct {
	OrderID     string       `json:"orderId"`
	OrderNumber string       `json:"orderNumber"`
	From        model.Status `json:"from"`
	To          model.Status `json:"to"`
	Success     bool         `json:"success"`
	Message     string       `json:"message,omitempty"`
}

type SweepResult struct {
	Processed int         `json:"processed"`
	Updated   int         `json:"updated"`
	Failed    int         `json:"failed"`
	Results   []SweepItem `json:"results"`
	RanAt     time.Time   `json:"ranAt"`
}

type TrackingEvent struct {
	Status      string    `json:"status"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Timestamp   time.Time `json:"timestamp"`
	Completed   bool      `json:"completed"`
}

type Simulation struct {
	OrderID           string          `json:"orderId"`
	OrderNumber       string          `json:"orderNumber"`
	Status            model.Status    `json:"status"`
	Carrier           string          `json:"carrier"`
	TrackingNumber    string          `json:"trackingNumber"`
	EstimatedDelivery time.Time       `json:"estimatedDelivery"`
	Events            []TrackingEvent `json:"events"`
}

type AutomationService struct {
	status *StatusService
}

func NewAutomationService(status *StatusService) *AutomationService {
	return &AutomationService{status: status}
}

// RunAutomatedUpdates advances every order whose dwell time elapsed. Each
// advance is an ordinary transition made by the system actor.
func (a *AutomationService) RunAutomatedUpdates(ctx context.Context, actor model.Actor) (*SweepResult, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbidden("admin privileges required")
	}

	now := a.status.now()
	res := &SweepResult{Results: make([]SweepItem, 0), RanAt: now}
	for _, rule := range sweepRules {
		f := model.OrderFilter{Statuses: []model.Status{rule.from}}
		if rule.byEstimate {
			f.EstimatedDeliveryBefore = now
		} else {
			f.StatusChangedBefore = now.Add(-rule.dwell)
		}

		orders, _, err := a.status.Orders.List(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("sweep %s orders: %w", rule.from, err)
		}

		for _, o := range orders {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			res.Processed++
			item := SweepItem{OrderID: o.ID.Hex(), OrderNumber: o.OrderNumber, From: rule.from, To: rule.to}
			if _, err := a.status.transition(ctx, model.SystemActor, o, StatusUpdate{Status: rule.to, Note: automatedNote}); err != nil {
				item.Message = apperr.Message(err)
				res.Failed++
			} else {
				item.Success = true
				res.Updated++
			}
			res.Results = append(res.Results, item)
		}
	}

	a.status.Logger.Info("automated status sweep",
		"processed", res.Processed,
		"updated", res.Updated,
		"failed", res.Failed,
	)
	return res, nil
}

// stage is one step of the simulated journey. share is the fraction of the
// delivery window after which it happens.
type stage struct {
	status      string
	reached     model.Status
	description string
	share       float64
}

var stages = []stage{
	{status: "pending", reached: model.StatusPending, description: "Order placed", share: 0},
	{status: "confirmed", reached: model.StatusConfirmed, description: "Order confirmed", share: 0.05},
	{status: "processing", reached: model.StatusProcessing, description: "Order is being packed", share: 0.15},
	{status: "shipped", reached: model.StatusShipped, description: "Parcel handed to carrier", share: 0.3},
	{status: "in_transit", reached: model.StatusDelivered, description: "Parcel in transit", share: 0.6},
	{status: "out_for_delivery", reached: model.StatusDelivered, description: "Out for delivery", share: 0.9},
	{status: "delivered", reached: model.StatusDelivered, description: "Delivered", share: 1},
}

var stageRank = map[model.Status]int{
	model.StatusPending:    0,
	model.StatusConfirmed:  1,
	model.StatusProcessing: 2,
	model.StatusShipped:    3,
	model.StatusDelivered:  6,
}

const fulfilmentCentre = "Nairobi fulfilment centre"

// SimulateTracking fabricates a carrier timeline for demos. The result
// depends only on the stored order.
func (a *AutomationService) SimulateTracking(ctx context.Context, actor model.Actor, orderID string) (*Simulation, error) {
	o, err := a.status.GetOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}

	start := o.CreatedAt
	eta := start.Add(windowFor(o.ShippingMethod))
	sim := &Simulation{
		OrderID:     o.ID.Hex(),
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		Carrier:     defaultCarrier,
		// simulated numbers derive from the order id so repeated calls agree
		TrackingNumber: "SIM" + strings.ToUpper(o.ID.Hex()[14:]),
	}
	if o.Tracking != nil {
		if o.Tracking.Carrier != "" {
			sim.Carrier = o.Tracking.Carrier
		}
		if o.Tracking.TrackingNumber != "" {
			sim.TrackingNumber = o.Tracking.TrackingNumber
		}
		if o.Tracking.EstimatedDelivery != nil && o.Tracking.EstimatedDelivery.After(start) {
			eta = *o.Tracking.EstimatedDelivery
		}
	}
	sim.EstimatedDelivery = eta

	reachedAt := make(map[model.Status]time.Time)
	rank := -1
	for _, h := range o.StatusHistory {
		if _, seen := reachedAt[h.Status]; !seen {
			reachedAt[h.Status] = h.Timestamp
		}
		if r, ok := stageRank[h.Status]; ok && r > rank {
			rank = r
		}
	}

	destination := o.ShippingAddress.City
	if destination == "" {
		destination = "destination"
	}
	window := eta.Sub(start)
	for i, st := range stages {
		ts := start.Add(time.Duration(float64(window) * st.share))
		if at, ok := reachedAt[st.reached]; ok && stageRank[st.reached] == i {
			ts = at
		}
		ev := TrackingEvent{
			Status:      st.status,
			Description: st.description,
			Location:    stageLocation(i, destination),
			Timestamp:   ts,
			Completed:   i <= rank,
		}
		if o.Status.Terminal() && !ev.Completed {
			continue
		}
		sim.Events = append(sim.Events, ev)
	}

	if o.Status.Terminal() {
		ts := o.StatusChangedAt
		if at, ok := reachedAt[o.Status]; ok {
			ts = at
		}
		desc := "Order cancelled"
		if o.Status == model.StatusRefunded {
			desc = "Order refunded"
		}
		sim.Events = append(sim.Events, TrackingEvent{
			Status:      string(o.Status),
			Description: desc,
			Location:    fulfilmentCentre,
			Timestamp:   ts,
			Completed:   true,
		})
	}
	return sim, nil
}

func stageLocation(i int, destination string) string {
	switch {
	case i <= 3:
		return fulfilmentCentre
	case i == 4:
		return "En route to " + destination
	default:
		return destination
	}
}
