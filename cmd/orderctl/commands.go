package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"storefront-orders/internal/model"
	"storefront-orders/internal/service"
)

var errUsage = errors.New("usage: orderctl [flags] dashboard|sweep")

type dashboardSource interface {
	Dashboard(ctx context.Context, actor model.Actor) (*service.Dashboard, error)
}

type sweepRunner interface {
	RunAutomatedUpdates(ctx context.Context, actor model.Actor) (*service.SweepResult, error)
}

func execute(ctx context.Context, w io.Writer, args []string, dashboards dashboardSource, sweeps sweepRunner) error {
	if len(args) != 1 {
		return errUsage
	}
	switch args[0] {
	case "dashboard":
		d, err := dashboards.Dashboard(ctx, model.SystemActor)
		if err != nil {
			return fmt.Errorf("load dashboard: %w", err)
		}
		return renderDashboard(w, d)
	case "sweep":
		res, err := sweeps.RunAutomatedUpdates(ctx, model.SystemActor)
		if err != nil {
			return fmt.Errorf("run sweep: %w", err)
		}
		return renderSweep(w, res)
	default:
		return errUsage
	}
}

func renderDashboard(w io.Writer, d *service.Dashboard) error {
	counts := tablewriter.NewWriter(w)
	counts.Header("Status", "Orders")
	for _, st := range model.Statuses {
		if err := counts.Append([]string{string(st), strconv.FormatInt(d.StatusCounts[st], 10)}); err != nil {
			return err
		}
	}
	if err := counts.Render(); err != nil {
		return err
	}

	today := tablewriter.NewWriter(w)
	today.Header("Today", "Value")
	rows := [][]string{
		{"orders", strconv.Itoa(d.Today.Orders)},
		{"revenue", strconv.FormatFloat(d.Today.Revenue, 'f', 2, 64)},
		{"shipped", strconv.Itoa(d.Today.Shipped)},
		{"delivered", strconv.Itoa(d.Today.Delivered)},
		{"pending action", strconv.FormatInt(d.PendingActionCount, 10)},
		{"overdue shipments", strconv.FormatInt(d.OverdueCount, 10)},
	}
	for _, r := range rows {
		if err := today.Append(r); err != nil {
			return err
		}
	}
	return today.Render()
}

func renderSweep(w io.Writer, res *service.SweepResult) error {
	table := tablewriter.NewWriter(w)
	table.Header("Order", "From", "To", "Result")
	for _, it := range res.Results {
		result := "updated"
		if !it.Success {
			result = it.Message
		}
		if err := table.Append([]string{it.OrderNumber, string(it.From), string(it.To), result}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "processed %d, updated %d, failed %d\n", res.Processed, res.Updated, res.Failed)
	return err
}
