// Package redis provides a Redis/Valkey implementation of the repository interface
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/navikt/avtalt/internal/config"
	"github.com/navikt/avtalt/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("entity not found")
)

// negotiationRecord is the internal model for storing a negotiation in Redis.
// The transcript is kept in a separate list keyed next to the record.
type negotiationRecord struct {
	ID                   string
	Meeting              models.Meeting
	ExpectedParticipants []string
	Status               models.NegotiationStatus
	Outcome              *models.Outcome
	CreatedAt            time.Time
	CompletedAt          time.Time
}

// Repository implements the repository interface with Redis storage
type Repository struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRepository creates a new Redis repository
func NewRepository(cfg config.RedisConfig) (*Repository, error) {
	var client *redis.Client

	// Use URI if provided, otherwise build connection from individual parameters
	if cfg.URI != "" {
		// Parse options from URI string
		opt, err := redis.ParseURL(cfg.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URI: %w", err)
		}

		// Use DB from config if not specified in the URI
		if opt.DB == 0 {
			opt.DB = cfg.DB
		}

		// Use password from config if not in URI or if empty in URI
		if opt.Password == "" && cfg.Password != "" {
			opt.Password = cfg.Password
		}

		// Create client with options from URI
		client = redis.NewClient(opt)
	} else {
		// Build connection options from individual parameters
		address := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)

		// Create client with explicit options
		client = redis.NewClient(&redis.Options{
			Addr:     address,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Repository{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.RecordTTL,
	}, nil
}

// Close closes the Redis connection
func (r *Repository) Close() error {
	return r.client.Close()
}

// negotiationKey returns the Redis key for a negotiation record
func (r *Repository) negotiationKey(id string) string {
	return fmt.Sprintf("%snegotiations:%s", r.keyPrefix, id)
}

// transcriptKey returns the Redis key for a negotiation's transcript list
func (r *Repository) transcriptKey(negotiationID string) string {
	return fmt.Sprintf("%snegotiations:%s:transcript", r.keyPrefix, negotiationID)
}

// sortByCreation orders records oldest first, with the ID as tiebreaker
func sortByCreation(negotiations []*models.Negotiation) {
	sort.Slice(negotiations, func(i, j int) bool {
		if negotiations[i].CreatedAt.Equal(negotiations[j].CreatedAt) {
			return negotiations[i].ID < negotiations[j].ID
		}
		return negotiations[i].CreatedAt.Before(negotiations[j].CreatedAt)
	})
}

// recordToModel converts a stored record back to a Negotiation model
func recordToModel(record negotiationRecord) *models.Negotiation {
	return &models.Negotiation{
		ID:                   record.ID,
		Meeting:              record.Meeting,
		ExpectedParticipants: record.ExpectedParticipants,
		Status:               record.Status,
		Outcome:              record.Outcome,
		CreatedAt:            record.CreatedAt,
		CompletedAt:          record.CompletedAt,
	}
}

// SaveNegotiation saves a negotiation record to the repository
func (r *Repository) SaveNegotiation(ctx context.Context, negotiation *models.Negotiation) error {
	record := negotiationRecord{
		ID:                   negotiation.ID,
		Meeting:              negotiation.Meeting,
		ExpectedParticipants: negotiation.ExpectedParticipants,
		Status:               negotiation.Status,
		Outcome:              negotiation.Outcome,
		CreatedAt:            negotiation.CreatedAt,
		CompletedAt:          negotiation.CompletedAt,
	}

	// Convert record to JSON
	data, err := json.Marshal(&record)
	if err != nil {
		return fmt.Errorf("failed to marshal negotiation: %w", err)
	}

	// Save to Redis with TTL
	key := r.negotiationKey(negotiation.ID)
	cmd := r.client.Set(ctx, key, data, r.ttl)
	if err := cmd.Err(); err != nil {
		return fmt.Errorf("failed to save negotiation: %w", err)
	}

	return nil
}

// GetNegotiation retrieves a negotiation by ID, transcript included
func (r *Repository) GetNegotiation(ctx context.Context, id string) (*models.Negotiation, error) {
	key := r.negotiationKey(id)
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get negotiation: %w", err)
	}

	var record negotiationRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal negotiation: %w", err)
	}

	negotiation := recordToModel(record)

	lines, err := r.client.LRange(ctx, r.transcriptKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}
	negotiation.Transcript = lines

	return negotiation, nil
}

// ListNegotiations returns all stored records without transcripts,
// oldest first
func (r *Repository) ListNegotiations(ctx context.Context) ([]*models.Negotiation, error) {
	// Get all negotiation keys
	pattern := r.negotiationKey("*")
	keys, err := r.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list negotiations: %w", err)
	}

	if len(keys) == 0 {
		return []*models.Negotiation{}, nil
	}

	// Use MGET to retrieve all records in a single roundtrip. Transcript
	// list keys match the pattern too but come back nil and are skipped.
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get negotiation data: %w", err)
	}

	negotiations := make([]*models.Negotiation, 0, len(values))

	// Process each record
	for _, v := range values {
		if v == nil {
			continue
		}

		strData, ok := v.(string)
		if !ok {
			continue
		}

		var record negotiationRecord
		if err := json.Unmarshal([]byte(strData), &record); err != nil {
			continue
		}

		negotiations = append(negotiations, recordToModel(record))
	}

	sortByCreation(negotiations)

	return negotiations, nil
}

// DeleteNegotiation removes a negotiation and its transcript by ID
func (r *Repository) DeleteNegotiation(ctx context.Context, id string) error {
	key := r.negotiationKey(id)
	transcriptKey := r.transcriptKey(id)

	// Check if the negotiation exists
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check if negotiation exists: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	// Use a pipeline to delete both keys in one operation
	pipe := r.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.Del(ctx, transcriptKey)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete negotiation: %w", err)
	}

	return nil
}

// AppendTranscript adds one line to a negotiation's transcript
func (r *Repository) AppendTranscript(ctx context.Context, negotiationID string, line string) error {
	// Check if the negotiation exists
	exists, err := r.client.Exists(ctx, r.negotiationKey(negotiationID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check if negotiation exists: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	// Append the line to the transcript list
	key := r.transcriptKey(negotiationID)
	err = r.client.RPush(ctx, key, line).Err()
	if err != nil {
		return fmt.Errorf("failed to append transcript line: %w", err)
	}

	// Set TTL on the transcript to match the record TTL
	if r.ttl > 0 {
		err = r.client.Expire(ctx, key, r.ttl).Err()
		if err != nil {
			return fmt.Errorf("failed to set expiry on transcript: %w", err)
		}
	}

	return nil
}

// GetTranscript returns a negotiation's transcript lines in append order
func (r *Repository) GetTranscript(ctx context.Context, negotiationID string) ([]string, error) {
	// Check if the negotiation exists
	exists, err := r.client.Exists(ctx, r.negotiationKey(negotiationID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check if negotiation exists: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	lines, err := r.client.LRange(ctx, r.transcriptKey(negotiationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}

	return lines, nil
}
