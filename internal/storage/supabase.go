// Package storage uploads voice recordings and prescription files to
// Supabase object storage.
package storage

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"
)

type Config struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
}

type Storage struct {
	client *supabase.Client
	bucket string
}

func New(config Config) (*Storage, error) {
	client, err := supabase.NewClient(config.URL, config.ServiceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("supabase client: %w", err)
	}
	return &Storage{client: client, bucket: config.Bucket}, nil
}

// Upload stores data under key and returns the key back for persistence.
func (s *Storage) Upload(key string, data []byte) (string, error) {
	_, err := s.client.Storage.UploadFile(s.bucket, key, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("supabase upload: %w", err)
	}
	return key, nil
}

// UploadRecording stores one synthesized voice turn as a WAV file.
func (s *Storage) UploadRecording(userID string, wav []byte) (string, error) {
	key := fmt.Sprintf("recordings/%s/%d_%s.wav", userID, time.Now().UnixMilli(), uuid.NewString()[:8])
	return s.Upload(key, wav)
}

// UploadPrescription stores one uploaded prescription file.
func (s *Storage) UploadPrescription(userID, filename string, data []byte) (string, error) {
	key := fmt.Sprintf("prescriptions/%s/%d_%s", userID, time.Now().UnixMilli(), filename)
	return s.Upload(key, data)
}
