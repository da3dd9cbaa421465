package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User mirrors a document of the users collection. Field names follow the
// camelCase layout the collection already uses.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password" json:"-"`

	ResumeText string  `bson:"resumeText,omitempty" json:"resumeText,omitempty"`
	TargetRole string  `bson:"targetRole,omitempty" json:"targetRole,omitempty"`
	Roadmap    Roadmap `bson:"roadmap" json:"roadmap"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}
