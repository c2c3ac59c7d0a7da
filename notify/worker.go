package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"cropconnect/models"
	"cropconnect/mq"
	"cropconnect/utils"
)

// Worker persists domain events as notifications and pushes them live.
type Worker struct {
	store Store
	hub   *Hub
}

func NewWorker(store Store, hub *Hub) *Worker {
	return &Worker{store: store, hub: hub}
}

// Run consumes events from the broker until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, broker mq.Broker) {
	mq.Consume(ctx, broker, w.Handle)
}

func (w *Worker) Handle(ctx context.Context, evt mq.Event) {
	if evt.UserID == "" {
		return
	}
	created := evt.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	n := models.Notification{
		NotificationID: utils.GetUUID(),
		UserID:         evt.UserID,
		Type:           evt.Type,
		Title:          evt.Title,
		Message:        evt.Message,
		Data:           evt.Data,
		CreatedAt:      created,
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := w.store.Create(sctx, n); err != nil {
		log.Printf("[notify] save %s for %s: %v", evt.Type, evt.UserID, err)
	}
	data, err := json.Marshal(n)
	if err != nil {
		log.Printf("[notify] marshal: %v", err)
		return
	}
	w.hub.Send(n.UserID, data)
}
