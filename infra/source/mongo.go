package source

import (
	"context"
	"fmt"
	"os"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kilianp07/energyledger/core/model"
	coresource "github.com/kilianp07/energyledger/core/source"
)

// MongoURIEnv is read when the mongo source config carries no uri.
const MongoURIEnv = "MONGO_CONNECTION_STRING"

// MongoConfig configures MongoSource. With an empty Collection every meter
// has a collection named after it; otherwise all meters share Collection and
// are told apart by MeterField.
type MongoConfig struct {
	URI        string `json:"uri"`
	Database   string `json:"database"`
	Collection string `json:"collection"`
	MeterField string `json:"meter_field"`
	TimeField  string `json:"time_field"`
	// ClientRange filters the time range after decoding instead of in the
	// query, for collections whose timestamps are strings or epoch numbers.
	ClientRange bool `json:"client_range"`
}

// SetDefaults fills unset fields.
func (c *MongoConfig) SetDefaults() {
	if c.URI == "" {
		c.URI = os.Getenv(MongoURIEnv)
	}
	if c.Database == "" {
		c.Database = "telemetry"
	}
	if c.MeterField == "" {
		c.MeterField = "meter"
	}
	if c.TimeField == "" {
		c.TimeField = "timestamp"
	}
}

// MongoSource reads telemetry documents from a MongoDB (or Cosmos DB Mongo
// API) collection, one document per sample.
type MongoSource struct {
	client *mongo.Client
	cfg    MongoConfig
}

// NewMongoSource connects and pings the server.
func NewMongoSource(ctx context.Context, cfg MongoConfig) (*MongoSource, error) {
	cfg.SetDefaults()
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo: uri is required (or set %s)", MongoURIEnv)
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &MongoSource{client: client, cfg: cfg}, nil
}

// Filter builds the selector for q.
func (m *MongoSource) Filter(q coresource.Query) bson.D {
	filter := bson.D{}
	if m.cfg.Collection != "" {
		filter = append(filter, bson.E{Key: m.cfg.MeterField, Value: q.Meter})
	}
	if m.cfg.ClientRange || (q.Start.IsZero() && q.End.IsZero()) {
		return filter
	}
	rng := bson.D{}
	if !q.Start.IsZero() {
		rng = append(rng, bson.E{Key: "$gte", Value: q.Start.UTC()})
	}
	if !q.End.IsZero() {
		rng = append(rng, bson.E{Key: "$lt", Value: q.End.UTC()})
	}
	return append(filter, bson.E{Key: m.cfg.TimeField, Value: rng})
}

// Query finds the documents of q.Meter sorted by timestamp. Documents whose
// timestamp cannot be read fail the query.
func (m *MongoSource) Query(ctx context.Context, q coresource.Query) ([]model.Sample, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	coll := m.cfg.Collection
	if coll == "" {
		coll = q.Meter
	}
	proj := bson.D{{Key: "_id", Value: 0}, {Key: m.cfg.TimeField, Value: 1}}
	for _, f := range q.Fields {
		proj = append(proj, bson.E{Key: f, Value: 1})
	}
	opts := options.Find().
		SetProjection(proj).
		SetSort(bson.D{{Key: m.cfg.TimeField, Value: 1}})
	cur, err := m.client.Database(m.cfg.Database).Collection(coll).Find(ctx, m.Filter(q), opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	defer func() { _ = cur.Close(context.Background()) }()

	var out []model.Sample
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo decode: %w", err)
		}
		ts, err := model.ParseTimestamp(bsonValue(doc[m.cfg.TimeField]))
		if err != nil {
			return nil, fmt.Errorf("mongo document: %w", err)
		}
		if m.cfg.ClientRange && !q.Contains(ts) {
			continue
		}
		fields := make(map[string]model.Quantity, len(q.Fields))
		for _, f := range q.Fields {
			if raw, ok := doc[f]; ok {
				fields[f] = model.Coerce(bsonValue(raw))
			}
		}
		out = append(out, model.Sample{Timestamp: ts.UTC(), Fields: fields})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo cursor: %w", err)
	}
	return out, nil
}

// Close disconnects the client.
func (m *MongoSource) Close() error {
	return m.client.Disconnect(context.Background())
}

// bsonValue maps driver types onto the plain values model understands.
func bsonValue(raw any) any {
	switch v := raw.(type) {
	case primitive.DateTime:
		return v.Time().UTC()
	case primitive.Decimal128:
		return v.String()
	case primitive.Timestamp:
		return int64(v.T) * 1000
	}
	return raw
}
