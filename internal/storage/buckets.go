// Package storage wraps the Supabase storage buckets the pipeline touches:
// source videos uploaded by clients, and the extracted listing frames.
// Locations handed around the system are bucket-relative object keys.
package storage

import (
	"fmt"
	"io"

	supa "github.com/supabase-community/supabase-go"
)

type BucketStorage struct {
	client      *supa.Client
	videoBucket string
	imageBucket string
}

func New(client *supa.Client, videoBucket, imageBucket string) *BucketStorage {
	return &BucketStorage{
		client:      client,
		videoBucket: videoBucket,
		imageBucket: imageBucket,
	}
}

// UploadVideo stores a source video under key and returns its location.
func (s *BucketStorage) UploadVideo(key string, data io.Reader) (string, error) {
	if _, err := s.client.Storage.UploadFile(s.videoBucket, key, data); err != nil {
		return "", fmt.Errorf("failed to upload video %s: %w", key, err)
	}
	return key, nil
}

// DownloadVideo fetches a source video by its location.
func (s *BucketStorage) DownloadVideo(key string) ([]byte, error) {
	data, err := s.client.Storage.DownloadFile(s.videoBucket, key)
	if err != nil {
		return nil, fmt.Errorf("failed to download video %s: %w", key, err)
	}
	return data, nil
}

// UploadImage stores an extracted frame under key and returns its location.
func (s *BucketStorage) UploadImage(key string, data io.Reader) (string, error) {
	if _, err := s.client.Storage.UploadFile(s.imageBucket, key, data); err != nil {
		return "", fmt.Errorf("failed to upload image %s: %w", key, err)
	}
	return key, nil
}
