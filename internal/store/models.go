package store

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Timeline item types stored in the user_data collection.
const (
	TypeBotConversation        = "bot_conversation"
	TypeConnectionConversation = "connection_conversation"
	TypeNotes                  = "notes"
	TypeConnection             = "connection"
	TypeEmergencyCall          = "emergency_call"
	TypeGoal                   = "goal"
	TypeGoalCompletion         = "goal_completion"
)

// User is one user_info document.
type User struct {
	ID               bson.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	Username         string        `bson:"username" json:"username"`
	Email            string        `bson:"email" json:"email"`
	PatientName      string        `bson:"patient_name,omitempty" json:"patient_name,omitempty"`
	DateOfBirth      string        `bson:"date_of_birth,omitempty" json:"date_of_birth,omitempty"`
	Diagnosis        []string      `bson:"diagnosis,omitempty" json:"diagnosis,omitempty"`
	PrescriptionDate string        `bson:"prescription_date,omitempty" json:"prescription_date,omitempty"`
	CreatedAt        int64         `bson:"created_at" json:"created_at"`
}

// Annotation is derived metadata attached to conversations and notes. Empty
// fields mean the annotation service was unavailable when the item was
// written.
type Annotation struct {
	Summary   string `bson:"summary,omitempty" json:"summary,omitempty"`
	Sentiment string `bson:"sentiment,omitempty" json:"sentiment,omitempty"`
	Mood      string `bson:"mood,omitempty" json:"mood,omitempty"`
	Takeaways string `bson:"takeaways,omitempty" json:"takeaways,omitempty"`
}

// TimelineItem is one user_data document. The collection is heterogeneous:
// the Type field decides which optional fields are meaningful.
type TimelineItem struct {
	ID     bson.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	UserID string        `bson:"user_id" json:"user_id"`
	Type   string        `bson:"type" json:"type"`

	// Conversations and notes.
	ConversationWith string `bson:"conversation_with,omitempty" json:"conversation_with,omitempty"`
	ConversationType string `bson:"conversation_type,omitempty" json:"conversation_type,omitempty"`
	Content          string `bson:"content,omitempty" json:"content,omitempty"`
	Annotation       `bson:",inline"`

	// Connections.
	ConnectionName   string `bson:"connection_name,omitempty" json:"connection_name,omitempty"`
	ConnectionUserID string `bson:"connection_user_id,omitempty" json:"connection_user_id,omitempty"`

	// Emergency calls.
	HotlineCalled string `bson:"hotline_called,omitempty" json:"hotline_called,omitempty"`

	// Goals and goal completions.
	Text           string         `bson:"text,omitempty" json:"text,omitempty"`
	Task           string         `bson:"task,omitempty" json:"task,omitempty"`
	Details        map[string]any `bson:"details,omitempty" json:"details,omitempty"`
	Completed      *bool          `bson:"completed,omitempty" json:"completed,omitempty"`
	Frequency      string         `bson:"frequency,omitempty" json:"frequency,omitempty"`
	GoalID         bson.ObjectID  `bson:"goal_id,omitempty" json:"goal_id,omitempty"`
	PrescriptionID bson.ObjectID  `bson:"prescription_id,omitempty" json:"prescription_id,omitempty"`
	Expiry         int64          `bson:"expiry,omitempty" json:"expiry,omitempty"`
	LastUpdated    int64          `bson:"last_updated,omitempty" json:"last_updated,omitempty"`

	// Voice turns keep a pointer to the synthesized audio in object storage.
	RecordingPath string `bson:"recording_path,omitempty" json:"recording_path,omitempty"`

	Timestamp int64 `bson:"timestamp" json:"timestamp"`
}

// PrescriptionTask is one actionable item extracted from a prescription.
type PrescriptionTask struct {
	Type      string         `bson:"type" json:"type"`
	Task      string         `bson:"task" json:"task"`
	Details   map[string]any `bson:"details,omitempty" json:"details,omitempty"`
	Completed bool           `bson:"completed" json:"completed"`
}

// Prescription is one prescriptions document.
type Prescription struct {
	ID               bson.ObjectID      `bson:"_id,omitempty" json:"_id,omitempty"`
	UserID           string             `bson:"user_id" json:"user_id"`
	PrescriptionDate string             `bson:"prescription_date,omitempty" json:"prescription_date,omitempty"`
	RawText          string             `bson:"raw_text,omitempty" json:"raw_text,omitempty"`
	FilePath         string             `bson:"file_path,omitempty" json:"file_path,omitempty"`
	Tasks            []PrescriptionTask `bson:"tasks" json:"tasks"`
	CreatedAt        int64              `bson:"created_at" json:"created_at"`
	Expiry           int64              `bson:"expiry,omitempty" json:"expiry,omitempty"`
	LastUpdated      int64              `bson:"last_updated,omitempty" json:"last_updated,omitempty"`
}
