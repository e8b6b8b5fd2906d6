package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/davicafu/leadhook/internal/webhook/domain"
)

const DefaultCollection = "webhooks"

// EventStoreMongoDB implementa domain.PayloadStore sobre una colección de solo inserción.
type EventStoreMongoDB struct {
	coll *mongo.Collection
}

// NewEventStoreMongoDB hace ping al primario antes de devolver el store.
func NewEventStoreMongoDB(ctx context.Context, client *mongo.Client, dbName, collection string) (*EventStoreMongoDB, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return &EventStoreMongoDB{coll: client.Database(dbName).Collection(collection)}, nil
}

// --- Structs de BSON para el mapeo ---
// Se definen localmente para no "contaminar" el dominio con tags de BSON.

type mongoWebhookEvent struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	ReceivedAt time.Time          `bson:"receivedAt"`
	Source     string             `bson:"source"`
	Headers    map[string]string  `bson:"headers"`
	Payload    interface{}        `bson:"payload"`
	Processed  bool               `bson:"processed"`

	Platform   string        `bson:"platform,omitempty"`
	ObjectType string        `bson:"objectType,omitempty"`
	EntryCount *int          `bson:"entryCount,omitempty"`
	EntryID    string        `bson:"entryId,omitempty"`
	EntryTime  int64         `bson:"entryTime,omitempty"`
	Changes    []mongoChange `bson:"changes,omitempty"`
}

type mongoChange struct {
	Field string      `bson:"field"`
	Value interface{} `bson:"value"`
}

// Save inserta el evento y devuelve el ObjectID generado en hexadecimal.
func (s *EventStoreMongoDB) Save(ctx context.Context, evt *domain.WebhookEvent) (string, error) {
	res, err := s.coll.InsertOne(ctx, toMongoWebhookEvent(evt))
	if err != nil {
		return "", fmt.Errorf("insert webhook event: %w", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Sprintf("%v", res.InsertedID), nil
	}
	evt.ID = oid.Hex()
	return evt.ID, nil
}

func (s *EventStoreMongoDB) Available() bool {
	return s.coll != nil
}

// --- Helpers de Mapeo ---

func toMongoWebhookEvent(evt *domain.WebhookEvent) *mongoWebhookEvent {
	me := &mongoWebhookEvent{
		ReceivedAt: evt.ReceivedAt,
		Source:     evt.Source,
		Headers:    evt.Headers,
		Payload:    evt.Payload,
		Processed:  false,
	}

	if evt.IsPlatformEvent() {
		count := evt.EntryCount
		me.Platform = evt.Platform
		me.ObjectType = evt.ObjectType
		me.EntryCount = &count
		me.EntryID = evt.EntryID
		me.EntryTime = evt.EntryTime
		for _, c := range evt.Changes {
			me.Changes = append(me.Changes, mongoChange{Field: c.Field, Value: c.Value})
		}
	}
	return me
}

// Verificación en tiempo de compilación.
var _ domain.PayloadStore = (*EventStoreMongoDB)(nil)
