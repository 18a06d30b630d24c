// Package pipeline wires the four job queues between order intake, the
// picking workers and the dock monitor.
package pipeline

import (
	"warehouse/orders"
	"warehouse/queue"
)

// PickRequest asks a worker to pick a confirmed order.
type PickRequest struct {
	Order orders.Order
}

// DockAssignment asks a worker to load a picked order onto a docked truck.
type DockAssignment struct {
	Order orders.Order
	Dock  int
}

// RestockAssignment asks a worker to unload a restock truck.
type RestockAssignment struct {
	Dock int
}

// Pipeline holds one queue per hand-off:
//
//	Intake    client → workers          (PickRequest)
//	Completed workers → dock monitor    (picked orders)
//	Load      dock monitor → workers    (DockAssignment)
//	Restock   dock monitor → workers    (RestockAssignment)
type Pipeline struct {
	Intake    *queue.Queue[PickRequest]
	Completed *queue.Queue[orders.Order]
	Load      *queue.Queue[DockAssignment]
	Restock   *queue.Queue[RestockAssignment]
}

func New() *Pipeline {
	return &Pipeline{
		Intake:    queue.New[PickRequest](),
		Completed: queue.New[orders.Order](),
		Load:      queue.New[DockAssignment](),
		Restock:   queue.New[RestockAssignment](),
	}
}

// Depths is a point-in-time view of queue lengths.
type Depths struct {
	Intake    int `json:"intake"`
	Completed int `json:"completed"`
	Load      int `json:"load"`
	Restock   int `json:"restock"`
}

func (p *Pipeline) Depths() Depths {
	return Depths{
		Intake:    p.Intake.Len(),
		Completed: p.Completed.Len(),
		Load:      p.Load.Len(),
		Restock:   p.Restock.Len(),
	}
}
