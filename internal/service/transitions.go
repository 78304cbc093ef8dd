package service

import "storefront-orders/internal/model"

// transitions lists the statuses a status update may reach from each
// status. Statuses without an entry are final for status updates; a
// delivered order only moves on to refunded through refund approval.
var transitions = map[model.Status][]model.Status{
	model.StatusPending:    {model.StatusConfirmed, model.StatusCancelled},
	model.StatusConfirmed:  {model.StatusProcessing, model.StatusCancelled},
	model.StatusProcessing: {model.StatusShipped, model.StatusCancelled},
	model.StatusShipped:    {model.StatusDelivered},
}

// customerCancellable are the statuses from which the owner may cancel.
var customerCancellable = map[model.Status]bool{
	model.StatusPending:   true,
	model.StatusConfirmed: true,
}

func canTransition(from, to model.Status) bool {
	return contains(transitions[from], to)
}

func contains(arr []model.Status, s model.Status) bool {
	for _, v := range arr {
		if v == s {
			return true
		}
	}
	return false
}

// progress is the share of the fulfilment path an order has covered.
var progress = map[model.Status]int{
	model.StatusPending:    10,
	model.StatusConfirmed:  25,
	model.StatusProcessing: 50,
	model.StatusShipped:    75,
	model.StatusDelivered:  100,
	model.StatusCancelled:  0,
	model.StatusRefunded:   0,
}
