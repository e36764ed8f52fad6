package weaviate

import (
	"context"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// SDK encapsulates all Weaviate operations
type SDK struct {
	client *weaviate.Client
}

// NewSDK creates a new instance of SDK
func NewSDK(client *weaviate.Client) *SDK {
	return &SDK{
		client: client,
	}
}

// EnsureSchema creates the class schema if it does not exist yet.
func (w *SDK) EnsureSchema(ctx context.Context, className string, properties []*models.Property, vectorizer string) error {
	exists, err := w.classExists(ctx, className)
	if err != nil {
		return fmt.Errorf("failed to check if class exists: %w", err)
	}
	if exists {
		return nil
	}

	class := &models.Class{
		Class:      className,
		Properties: properties,
		Vectorizer: vectorizer,
	}

	if err := w.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create Weaviate class: %w", err)
	}

	return nil
}

// classExists checks if a class exists in the schema
func (w *SDK) classExists(ctx context.Context, className string) (bool, error) {
	schema, err := w.client.Schema().Getter().Do(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get schema: %w", err)
	}

	for _, class := range schema.Classes {
		if class.Class == className {
			return true, nil
		}
	}

	return false, nil
}

// DeleteSchema deletes a class schema and every object in it.
func (w *SDK) DeleteSchema(ctx context.Context, className string) error {
	exists, err := w.classExists(ctx, className)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if err := w.client.Schema().ClassDeleter().WithClassName(className).Do(ctx); err != nil {
		return fmt.Errorf("failed to delete Weaviate class: %w", err)
	}

	return nil
}

// VectorObject represents a single object with its vector and properties
type VectorObject struct {
	ID         string
	Vector     []float32
	Properties map[string]interface{}
}

// BatchAddVectors adds multiple vector objects to a class in a single operation
func (w *SDK) BatchAddVectors(ctx context.Context, className string, objects []VectorObject) error {
	objs := make([]*models.Object, len(objects))
	for i, obj := range objects {
		objs[i] = &models.Object{
			ID:         strfmt.UUID(obj.ID),
			Class:      className,
			Properties: obj.Properties,
			Vector:     obj.Vector,
		}
	}

	batcher := w.client.Batch().ObjectsBatcher()
	resp, err := batcher.WithObjects(objs...).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to batch add vectors: %w", err)
	}
	if len(resp) == 0 {
		return fmt.Errorf("batch operation returned no results")
	}
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch object rejected: %s", r.Result.Errors.Error[0].Message)
		}
	}

	return nil
}

// Count returns the number of objects stored in a class. A missing class
// counts as zero.
func (w *SDK) Count(ctx context.Context, className string) (int, error) {
	exists, err := w.classExists(ctx, className)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	result, err := w.client.GraphQL().Aggregate().
		WithClassName(className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate class count: %w", err)
	}

	if agg, ok := result.Data["Aggregate"].(map[string]interface{}); ok {
		if rows, ok := agg[className].([]interface{}); ok && len(rows) > 0 {
			if row, ok := rows[0].(map[string]interface{}); ok {
				if meta, ok := row["meta"].(map[string]interface{}); ok {
					if count, ok := meta["count"].(float64); ok {
						return int(count), nil
					}
				}
			}
		}
	}

	return 0, nil
}

// QueryConfig represents configuration for vector similarity search
type QueryConfig struct {
	Fields    []string // Fields to return in the result
	Limit     int      // Maximum number of results
	Certainty float64  // Optional certainty threshold in [0,1]
}

const DefaultQueryLimit = 20

// QueryResult represents a single result from vector similarity search
type QueryResult struct {
	ID         string
	Certainty  float64 // Similarity in [0,1]
	Properties map[string]interface{}
}

// QueryVectors performs vector similarity search in a class. A missing
// class yields an empty result rather than an error.
func (w *SDK) QueryVectors(ctx context.Context, className string, vector []float32, config QueryConfig) ([]QueryResult, error) {
	exists, err := w.classExists(ctx, className)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	fields := make([]graphql.Field, len(config.Fields))
	for i, field := range config.Fields {
		fields[i] = graphql.Field{Name: field}
	}
	fields = append(fields, graphql.Field{Name: "_additional { id certainty }"})

	nearVectorBuilder := w.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	if config.Certainty > 0 {
		nearVectorBuilder.WithCertainty(float32(config.Certainty))
	}

	if config.Limit <= 0 {
		config.Limit = DefaultQueryLimit
	}

	result, err := w.client.GraphQL().Get().
		WithClassName(className).
		WithFields(fields...).
		WithNearVector(nearVectorBuilder).
		WithLimit(config.Limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}

	var queryResults []QueryResult
	if data, ok := result.Data["Get"].(map[string]interface{}); ok {
		if objects, ok := data[className].([]interface{}); ok {
			for _, obj := range objects {
				objMap, ok := obj.(map[string]interface{})
				if !ok {
					continue
				}
				additional, _ := objMap["_additional"].(map[string]interface{})

				properties := make(map[string]interface{})
				for k, v := range objMap {
					if k != "_additional" {
						properties[k] = v
					}
				}

				qr := QueryResult{Properties: properties}
				if additional != nil {
					qr.ID, _ = additional["id"].(string)
					qr.Certainty, _ = additional["certainty"].(float64)
				}
				queryResults = append(queryResults, qr)
			}
		}
	}

	return queryResults, nil
}
