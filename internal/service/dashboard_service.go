package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"storefront-orders/internal/apperr"
	"storefront-orders/internal/model"
	"storefront-orders/internal/pricing"
)

const (
	defaultMetricsDays = 30
	maxMetricsDays     = 365
	dashboardListLimit = 50
)

// OrderSummary is the row shape of dashboard lists.
type OrderSummary struct {
	ID                string       `json:"id"`
	OrderNumber       string       `json:"orderNumber"`
	UserID            string       `json:"userId"`
	Status            model.Status `json:"status"`
	TotalAmount       float64      `json:"totalAmount"`
	StatusChangedAt   time.Time    `json:"statusChangedAt"`
	CreatedAt         time.Time    `json:"createdAt"`
	EstimatedDelivery *time.Time   `json:"estimatedDelivery,omitempty"`
}

type TodayTotals struct {
	Orders    int     `json:"orders"`
	Revenue   float64 `json:"revenue"`
	Delivered int     `json:"delivered"`
	Shipped   int     `json:"shipped"`
}

type Dashboard struct {
	StatusCounts       map[model.Status]int64 `json:"statusCounts"`
	PendingAction      []OrderSummary         `json:"pendingAction"`
	PendingActionCount int64                  `json:"pendingActionCount"`
	OverdueShipments   []OrderSummary         `json:"overdueShipments"`
	OverdueCount       int64                  `json:"overdueCount"`
	Today              TodayTotals            `json:"today"`
	GeneratedAt        time.Time              `json:"generatedAt"`
}

type DailyPoint struct {
	Date    string  `json:"date"`
	Orders  int     `json:"orders"`
	Revenue float64 `json:"revenue"`
}

type Metrics struct {
	Days                    int                  `json:"days"`
	TotalOrders             int                  `json:"totalOrders"`
	Revenue                 float64              `json:"revenue"`
	AverageOrderValue       float64              `json:"averageOrderValue"`
	CancellationRate        float64              `json:"cancellationRate"`
	AverageFulfillmentHours float64              `json:"averageFulfillmentHours"`
	OnTimeDeliveryRate      float64              `json:"onTimeDeliveryRate"`
	RefundedAmount          float64              `json:"refundedAmount"`
	StatusBreakdown         map[model.Status]int `json:"statusBreakdown"`
	Daily                   []DailyPoint         `json:"daily"`
}

type PendingUpdates struct {
	ThresholdHours int            `json:"thresholdHours"`
	Count          int64          `json:"count"`
	Orders         []OrderSummary `json:"orders"`
}

type DashboardService struct {
	Deps
	threshold time.Duration
	loc       *time.Location
}

// NewDashboardService aggregates over orders. threshold is the dwell time
// after which a pending or confirmed order needs action; loc defines "today".
func NewDashboardService(d Deps, threshold time.Duration, loc *time.Location) *DashboardService {
	if threshold <= 0 {
		threshold = 24 * time.Hour
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardService{Deps: d, threshold: threshold, loc: loc}
}

// scope limits aggregation to what actor may see.
func scope(actor model.Actor) (model.OrderFilter, error) {
	switch {
	case actor.IsAdmin():
		return model.OrderFilter{}, nil
	case actor.IsSeller() && actor.ID != "":
		return model.OrderFilter{Seller: actor.ID}, nil
	default:
		return model.OrderFilter{}, apperr.Forbidden("admin or seller privileges required")
	}
}

func (s *DashboardService) Dashboard(ctx context.Context, actor model.Actor) (*Dashboard, error) {
	base, err := scope(actor)
	if err != nil {
		return nil, err
	}
	now := s.now()

	counts, err := s.Orders.CountByStatus(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	full := make(map[model.Status]int64, len(model.Statuses))
	for _, st := range model.Statuses {
		full[st] = counts[st]
	}

	pending, pendingTotal, err := s.pendingAction(ctx, base, now.Add(-s.threshold))
	if err != nil {
		return nil, err
	}

	overdueFilter := base
	overdueFilter.Statuses = []model.Status{model.StatusShipped}
	overdueFilter.EstimatedDeliveryBefore = now
	overdueFilter.Page, overdueFilter.Limit = 1, dashboardListLimit
	overdue, overdueTotal, err := s.Orders.List(ctx, overdueFilter)
	if err != nil {
		return nil, fmt.Errorf("overdue shipments: %w", err)
	}

	todayFilter := base
	todayFilter.CreatedFrom = s.midnight(now)
	today, _, err := s.Orders.List(ctx, todayFilter)
	if err != nil {
		return nil, fmt.Errorf("today's orders: %w", err)
	}

	return &Dashboard{
		StatusCounts:       full,
		PendingAction:      summaries(pending),
		PendingActionCount: pendingTotal,
		OverdueShipments:   summaries(overdue),
		OverdueCount:       overdueTotal,
		Today:              todayTotals(today),
		GeneratedAt:        now,
	}, nil
}

// PendingUpdates lists pending or confirmed orders idle for longer than
// hours. Zero hours uses the configured threshold.
func (s *DashboardService) PendingUpdates(ctx context.Context, actor model.Actor, hours int) (*PendingUpdates, error) {
	base, err := scope(actor)
	if err != nil {
		return nil, err
	}
	if hours < 0 {
		return nil, apperr.Validation("hours must not be negative")
	}
	threshold := s.threshold
	if hours > 0 {
		threshold = time.Duration(hours) * time.Hour
	}

	orders, total, err := s.pendingAction(ctx, base, s.now().Add(-threshold))
	if err != nil {
		return nil, err
	}
	return &PendingUpdates{
		ThresholdHours: int(threshold / time.Hour),
		Count:          total,
		Orders:         summaries(orders),
	}, nil
}

func (s *DashboardService) pendingAction(ctx context.Context, base model.OrderFilter, before time.Time) ([]*model.Order, int64, error) {
	f := base
	f.Statuses = []model.Status{model.StatusPending, model.StatusConfirmed}
	f.StatusChangedBefore = before
	f.Page, f.Limit = 1, dashboardListLimit
	orders, total, err := s.Orders.List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("pending orders: %w", err)
	}
	return orders, total, nil
}

// Metrics aggregates the orders created during the last days days.
func (s *DashboardService) Metrics(ctx context.Context, actor model.Actor, days int) (*Metrics, error) {
	base, err := scope(actor)
	if err != nil {
		return nil, err
	}
	if days == 0 {
		days = defaultMetricsDays
	}
	if days < 0 || days > maxMetricsDays {
		return nil, apperr.Validation("days must be between 1 and %d", maxMetricsDays)
	}

	now := s.now()
	f := base
	f.CreatedFrom = s.midnight(now).AddDate(0, 0, -(days - 1))
	orders, _, err := s.Orders.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("metrics orders: %w", err)
	}

	m := &Metrics{
		Days:            days,
		TotalOrders:     len(orders),
		StatusBreakdown: make(map[model.Status]int),
	}

	var (
		revenue, refunded = decimal.Zero, decimal.Zero
		billable, cancel  int
		fulfilHours       float64
		delivered, onTime int
		withEstimate      int
		daily             = make(map[string]*DailyPoint)
	)
	for _, o := range orders {
		m.StatusBreakdown[o.Status]++
		refunded = refunded.Add(decimal.NewFromFloat(o.RefundTotal(model.RefundApproved)))

		day := o.CreatedAt.In(s.loc).Format("2006-01-02")
		p, ok := daily[day]
		if !ok {
			p = &DailyPoint{Date: day}
			daily[day] = p
		}
		p.Orders++

		if o.Status == model.StatusCancelled {
			cancel++
			continue
		}
		billable++
		revenue = revenue.Add(decimal.NewFromFloat(o.TotalAmount))
		p.Revenue = pricing.Sum(p.Revenue, o.TotalAmount)

		if o.Tracking != nil && o.Tracking.ActualDelivery != nil {
			delivered++
			fulfilHours += o.Tracking.ActualDelivery.Sub(o.CreatedAt).Hours()
			if o.Tracking.EstimatedDelivery != nil {
				withEstimate++
				if !o.Tracking.ActualDelivery.After(*o.Tracking.EstimatedDelivery) {
					onTime++
				}
			}
		}
	}

	m.Revenue = revenue.Round(2).InexactFloat64()
	m.RefundedAmount = refunded.Round(2).InexactFloat64()
	if billable > 0 {
		m.AverageOrderValue = revenue.Div(decimal.NewFromInt(int64(billable))).Round(2).InexactFloat64()
	}
	m.CancellationRate = percent(cancel, m.TotalOrders)
	if delivered > 0 {
		m.AverageFulfillmentHours = decimal.NewFromFloat(fulfilHours / float64(delivered)).Round(2).InexactFloat64()
	}
	m.OnTimeDeliveryRate = percent(onTime, withEstimate)

	m.Daily = make([]DailyPoint, 0, len(daily))
	for _, p := range daily {
		m.Daily = append(m.Daily, *p)
	}
	sort.Slice(m.Daily, func(i, j int) bool { return m.Daily[i].Date < m.Daily[j].Date })
	return m, nil
}

// midnight is the start of t's day in the configured zone.
func (s *DashboardService) midnight(t time.Time) time.Time {
	local := t.In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
}

func todayTotals(orders []*model.Order) TodayTotals {
	var (
		t       TodayTotals
		revenue = decimal.Zero
	)
	for _, o := range orders {
		t.Orders++
		switch o.Status {
		case model.StatusDelivered:
			t.Delivered++
		case model.StatusShipped:
			t.Shipped++
		}
		if o.Status != model.StatusCancelled {
			revenue = revenue.Add(decimal.NewFromFloat(o.TotalAmount))
		}
	}
	t.Revenue = revenue.Round(2).InexactFloat64()
	return t
}

func summaries(orders []*model.Order) []OrderSummary {
	out := make([]OrderSummary, 0, len(orders))
	for _, o := range orders {
		sum := OrderSummary{
			ID:              o.ID.Hex(),
			OrderNumber:     o.OrderNumber,
			UserID:          o.UserID,
			Status:          o.Status,
			TotalAmount:     o.TotalAmount,
			StatusChangedAt: o.StatusChangedAt,
			CreatedAt:       o.CreatedAt,
		}
		if o.Tracking != nil {
			sum.EstimatedDelivery = o.Tracking.EstimatedDelivery
		}
		out = append(out, sum)
	}
	return out
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(whole))).
		Round(2).
		InexactFloat64()
}
