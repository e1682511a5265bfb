// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package storage

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoBackend implements Backend on top of one mongo deployment.
type MongoBackend struct {
	client *mongo.Client
	db     *mongo.Database
}

// OpenMongoBackend connects to the shard described by desc. The initial ping
// is part of opening: a shard that cannot be reached at startup surfaces
// immediately instead of on the first write.
func OpenMongoBackend(ctx context.Context, desc ShardDescriptor) (Backend, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(desc.URI))
	if err != nil {
		return nil, ErrOpenBackend.WithCause(err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, ErrOpenBackend.WithCausef("ping %s: %v", RedactURI(desc.URI), err)
	}

	return &MongoBackend{
		client: client,
		db:     client.Database(desc.DatabaseName),
	}, nil
}

func (b *MongoBackend) Insert(ctx context.Context, collection string, doc Document) (WriteResult, error) {
	raw, err := bson.Marshal(bson.M(doc))
	if err != nil {
		return WriteResult{}, ErrBackendCall.WithCause(err)
	}
	if _, err := b.db.Collection(collection).InsertOne(ctx, bson.Raw(raw)); err != nil {
		return WriteResult{}, err
	}
	return WriteResult{BytesWritten: uint64(len(raw))}, nil
}

func (b *MongoBackend) Find(ctx context.Context, collection string, filter Document, limit int64) ([]Document, error) {
	opts := options.Find()
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}

	cursor, err := b.db.Collection(collection).Find(ctx, bson.M(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(raw))
	for _, m := range raw {
		docs = append(docs, Document(m))
	}
	return docs, nil
}

func (b *MongoBackend) Delete(ctx context.Context, collection string, filter Document) (int64, error) {
	res, err := b.db.Collection(collection).DeleteMany(ctx, bson.M(filter))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// SizeBytes reports dataSize+indexSize from dbStats. Sizes come back as
// numbers of unspecified bson type, so they are decoded as float64.
func (b *MongoBackend) SizeBytes(ctx context.Context) (uint64, error) {
	var stats struct {
		DataSize  float64 `bson:"dataSize"`
		IndexSize float64 `bson:"indexSize"`
	}
	res := b.db.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}})
	if err := res.Decode(&stats); err != nil {
		return 0, ErrBackendCall.WithCausef("dbStats: %v", err)
	}
	return uint64(stats.DataSize + stats.IndexSize), nil
}

func (b *MongoBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx, readpref.Primary())
}

func (b *MongoBackend) Close(ctx context.Context) error {
	return b.client.Disconnect(ctx)
}
