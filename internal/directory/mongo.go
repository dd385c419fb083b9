package directory

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fathima-sithara/inbox-service/internal/models"
)

// userDoc mirrors the users collection. Role is decoded loosely
// because older records store it as a string and newer ones as an
// array of tags; NormalizeRole flattens both at the boundary.
type userDoc struct {
	ID          string `bson:"_id"`
	DisplayName string `bson:"display_name"`
	Name        string `bson:"name"` // legacy field
	PhotoURL    string `bson:"photo_url"`
	Role        any    `bson:"role"`
}

type MongoDirectory struct {
	users *mongo.Collection
}

func NewMongoDirectory(users *mongo.Collection) *MongoDirectory {
	return &MongoDirectory{users: users}
}

func (d *MongoDirectory) Lookup(ctx context.Context, id string) (*models.PartnerMetadata, error) {
	var doc userDoc
	err := d.users.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory lookup %s: %w", id, err)
	}

	name := doc.DisplayName
	if name == "" {
		name = doc.Name
	}
	return &models.PartnerMetadata{
		ID:          doc.ID,
		DisplayName: name,
		PhotoURL:    doc.PhotoURL,
		Role:        models.NormalizeRole(doc.Role),
	}, nil
}
