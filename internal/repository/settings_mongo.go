package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const settingsDocID = "global"

type MongoSettingsRepository struct {
	collection *mongo.Collection
}

func NewMongoSettingsRepository(db *mongo.Database) *MongoSettingsRepository {
	return &MongoSettingsRepository{
		collection: db.Collection("settings"),
	}
}

func (m *MongoSettingsRepository) GetSettings(ctx context.Context) (*domain.Settings, error) {
	var s domain.Settings
	err := m.collection.FindOne(ctx, bson.M{"_id": settingsDocID}).Decode(&s)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &s, nil
}

func (m *MongoSettingsRepository) SaveSettings(ctx context.Context, s *domain.Settings) error {
	s.UpdatedAt = time.Now().UTC()

	opts := options.Replace().SetUpsert(true)
	_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": settingsDocID}, s, opts)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
