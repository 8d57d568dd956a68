// Command seed populates the database with the demo data set: two users,
// their prescriptions, per-task goals, and a handful of timeline items.
package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Swastik3/HackHarvard2024/internal/config"
	"github.com/Swastik3/HackHarvard2024/internal/logging"
	"github.com/Swastik3/HackHarvard2024/internal/store"
)

func daysAgo(d int) int64 {
	return time.Now().Add(-time.Duration(d) * 24 * time.Hour).UnixMilli()
}

func daysFromNow(d int) int64 {
	return time.Now().Add(time.Duration(d) * 24 * time.Hour).UnixMilli()
}

func main() {
	logger := logging.New()
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := store.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logger.Fatal("mongo unavailable", zap.Error(err))
	}
	defer func() { _ = st.Close(context.Background()) }()

	if err := st.Reset(ctx); err != nil {
		logger.Fatal("reset failed", zap.Error(err))
	}
	if err := st.EnsureIndexes(ctx); err != nil {
		logger.Fatal("index creation failed", zap.Error(err))
	}

	janeID, err := st.CreateUser(ctx, store.User{
		Username:    "jane_d",
		Email:       "janedoe@example.com",
		PatientName: "Jane Doe",
		DateOfBirth: "1985-01-01",
		Diagnosis: []string{
			"Generalized Anxiety Disorder (GAD)",
			"Post-Traumatic Stress Disorder (PTSD)",
		},
		PrescriptionDate: "2024-10-12",
	})
	if err != nil {
		logger.Fatal("create user failed", zap.Error(err))
	}
	johnID, err := st.CreateUser(ctx, store.User{
		Username:         "john_d",
		Email:            "johndoe@example.com",
		PatientName:      "John Doe",
		DateOfBirth:      "1998-05-20",
		Diagnosis:        []string{"Anorexia Nervosa"},
		PrescriptionDate: "2024-10-12",
	})
	if err != nil {
		logger.Fatal("create user failed", zap.Error(err))
	}
	logger.Info("created demo users", zap.String("jane", janeID), zap.String("john", johnID))

	janePrescription := store.Prescription{
		UserID:           janeID,
		PrescriptionDate: "2024-10-12",
		Tasks: []store.PrescriptionTask{
			{
				Type: "medication",
				Task: "Take Calmvera 10 mg",
				Details: map[string]any{
					"dosage":   "Take one tablet orally twice daily after meals.",
					"quantity": "60 tablets",
					"refills":  1,
				},
			},
			{
				Type: "medication",
				Task: "Take Restwell XR 50 mg",
				Details: map[string]any{
					"dosage":   "Take one capsule orally at bedtime.",
					"quantity": "30 capsules",
					"refills":  1,
				},
			},
			{
				Type: "therapeutic_activity",
				Task: "Attend Cognitive Behavioral Therapy (CBT) Sessions",
				Details: map[string]any{
					"description": "Attend weekly Cognitive Behavioral Therapy (CBT) sessions with a licensed therapist.",
				},
			},
			{
				Type: "therapeutic_activity",
				Task: "Daily Mindfulness Meditation",
				Details: map[string]any{
					"description": "Engage in daily mindfulness meditation for at least 15 minutes.",
				},
			},
			{
				Type: "therapeutic_activity",
				Task: "Physical Exercise",
				Details: map[string]any{
					"description": "Participate in moderate physical activity (e.g., walking, yoga) for 30 minutes, at least 5 days a week.",
				},
			},
			{
				Type: "therapeutic_activity",
				Task: "Establish Sleep Hygiene",
				Details: map[string]any{
					"description": "Establish a regular sleep schedule aiming for 7-9 hours of quality sleep per night.",
				},
			},
			{
				Type: "therapeutic_activity",
				Task: "Daily Journaling",
				Details: map[string]any{
					"description": "Write in a journal daily to reflect on thoughts and emotions.",
				},
			},
		},
		CreatedAt: daysAgo(10),
		Expiry:    daysFromNow(60),
	}
	johnPrescription := store.Prescription{
		UserID:           johnID,
		PrescriptionDate: "2024-10-12",
		Tasks: []store.PrescriptionTask{
			{
				Type: "medication",
				Task: "Take AppetiGrow 5 mg",
				Details: map[string]any{
					"dosage":   "Take one tablet orally once daily in the morning with food.",
					"quantity": "30 tablets",
					"refills":  2,
				},
			},
			{
				Type: "medication",
				Task: "Take MoodLift XR 75 mg",
				Details: map[string]any{
					"dosage":   "Take one capsule orally at bedtime.",
					"quantity": "30 capsules",
					"refills":  2,
				},
			},
			{
				Type: "therapeutic_activity",
				Task: "Attend Cognitive Behavioral Therapy (CBT) Sessions",
				Details: map[string]any{
					"description": "Attend twice-weekly Cognitive Behavioral Therapy (CBT) sessions focusing on eating behaviors and body image.",
				},
			},
			{
				Type: "therapeutic_activity",
				Task: "Nutritional Counseling",
				Details: map[string]any{
					"description": "Meet with a registered dietitian weekly to develop a personalized meal plan and address nutritional deficiencies.",
				},
			},
			{
				Type: "therapeutic_activity",
				Task: "Physical Activity",
				Details: map[string]any{
					"description": "Engage in gentle yoga or stretching exercises 3 times a week, as recommended by your healthcare provider.",
				},
			},
		},
		CreatedAt: daysAgo(8),
		Expiry:    daysFromNow(90),
	}

	for _, p := range []store.Prescription{janePrescription, johnPrescription} {
		id, err := st.AddPrescription(ctx, p)
		if err != nil {
			logger.Fatal("add prescription failed", zap.Error(err))
		}
		if err := st.SpawnGoals(ctx, p, id); err != nil {
			logger.Fatal("spawn goals failed", zap.Error(err))
		}
	}
	logger.Info("inserted prescriptions and goals")

	timeline := []store.TimelineItem{
		{
			UserID:        janeID,
			Type:          store.TypeEmergencyCall,
			HotlineCalled: "Mental Health Hotline",
			Timestamp:     daysAgo(4),
		},
		{
			UserID:           janeID,
			Type:             store.TypeBotConversation,
			ConversationType: "text",
			Content: "Bot: Hi Jane, how are you feeling today? " +
				"User: I've been feeling quite anxious lately. " +
				"Bot: I'm sorry to hear that. Would you like some techniques to manage your anxiety? " +
				"User: Yes, please. " +
				"Bot: Consider practicing deep breathing exercises or taking a short walk to help calm your mind.",
			Annotation: store.Annotation{
				Summary:   "Bot initiated conversation about user's anxiety and provided management techniques.",
				Sentiment: "NEGATIVE",
				Mood:      "ANXIOUS",
				Takeaways: "User is experiencing anxiety and is open to management techniques",
			},
			Timestamp: daysAgo(3),
		},
		{
			UserID:  janeID,
			Type:    store.TypeNotes,
			Content: "Practiced mindfulness meditation for 20 minutes today. Felt calmer afterwards.",
			Annotation: store.Annotation{
				Summary:   "User practiced mindfulness meditation and felt calmer.",
				Sentiment: "POSITIVE",
				Mood:      "CALM",
			},
			Timestamp: daysAgo(2),
		},
		{
			UserID:           johnID,
			Type:             store.TypeBotConversation,
			ConversationType: "text",
			Content: "Bot: Hi John, how did your meal plan go this week? " +
				"User: It was hard, but I managed to follow it most days. " +
				"Bot: That's real progress. Remember, consistency matters more than perfection.",
			Annotation: store.Annotation{
				Summary:   "User reported partial adherence to meal plan and was encouraged by the bot.",
				Sentiment: "POSITIVE",
				Mood:      "HOPEFUL",
				Takeaways: "User followed meal plan most days, Consistency is improving, Encouragement helps",
			},
			Timestamp: daysAgo(2),
		},
		{
			UserID:           johnID,
			Type:             store.TypeConnection,
			ConnectionName:   "Jane Doe",
			ConnectionUserID: janeID,
			Timestamp:        daysAgo(1),
		},
	}
	for _, item := range timeline {
		if _, err := st.AddTimelineItem(ctx, item); err != nil {
			logger.Fatal("add timeline item failed", zap.Error(err))
		}
	}
	logger.Info("inserted timeline items", zap.Int("count", len(timeline)))
}
