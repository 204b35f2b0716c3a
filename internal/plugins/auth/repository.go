package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/keyxmakerx/gatehouse/internal/apperror"
)

// usersCollection is the MongoDB collection holding credentials.
const usersCollection = "users"

// UserRepository defines the data access contract for credentials. Not found
// is reported as an apperror NotFound; any other error is a store fault.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user *User) error
}

// userDocument is the stored shape of a user in MongoDB.
type userDocument struct {
	ID                   string     `bson:"_id"`
	Email                string     `bson:"email"`
	Password             string     `bson:"password"`
	ResetPasswordToken   *string    `bson:"resetPasswordToken,omitempty"`
	ResetPasswordExpires *time.Time `bson:"resetPasswordExpires,omitempty"`
	CreatedAt            time.Time  `bson:"createdAt"`
}

func toDocument(u *User) userDocument {
	return userDocument{
		ID:                   u.ID,
		Email:                u.Email,
		Password:             u.PasswordHash,
		ResetPasswordToken:   u.ResetToken,
		ResetPasswordExpires: u.ResetTokenExpiry,
		CreatedAt:            u.CreatedAt,
	}
}

func (d *userDocument) toUser() *User {
	return &User{
		ID:               d.ID,
		Email:            d.Email,
		PasswordHash:     d.Password,
		ResetToken:       d.ResetPasswordToken,
		ResetTokenExpiry: d.ResetPasswordExpires,
		CreatedAt:        d.CreatedAt,
	}
}

// mongoUserRepository implements UserRepository on a MongoDB collection.
type mongoUserRepository struct {
	users *mongo.Collection
}

// NewMongoUserRepository creates a repository on the users collection of db.
// Call EnsureUserIndexes once at startup.
func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{users: db.Collection(usersCollection)}
}

// EnsureUserIndexes creates the unique email index. Registration depends on
// it to reject concurrent duplicates.
func EnsureUserIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uq_users_email"),
	})
	if err != nil {
		return fmt.Errorf("creating users email index: %w", err)
	}
	return nil
}

// FindByEmail retrieves a user by exact email.
func (r *mongoUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var doc userDocument
	err := r.users.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.NewNotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by email: %w", err)
	}

	user := doc.toUser()
	if err := user.validateResetPair(); err != nil {
		return nil, err
	}
	return user, nil
}

// Create inserts a new user document.
func (r *mongoUserRepository) Create(ctx context.Context, user *User) error {
	if _, err := r.users.InsertOne(ctx, toDocument(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}
