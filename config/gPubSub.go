package config

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

// PubSubMessage is the envelope the outbox dispatcher publishes and the push
// endpoint receives back. Old/new object snapshots ride along as raw JSON so
// workflow processors never re-read rows that may have changed since the
// event was written.
type PubSubMessage struct {
	ID                  int       `json:"id"`
	VendorId            string    `json:"vendor_id"`
	TransactionDateTime time.Time `json:"transaction_date_time"`
	ReferenceId         int       `json:"reference_id"`
	ReferenceType       string    `json:"reference_type"`
	Action              string    `json:"action"`
	OldObj              []byte    `json:"old_obj"`
	NewObj              []byte    `json:"new_obj"`
	CorrelationId       string    `json:"correlation_id"`
}

var (
	pubsubClient   *pubsub.Client
	pubsubClientMu sync.Mutex
)

func init() {
	godotenv.Load()
}

func pubsubProjectID() string {
	for _, key := range []string{"PUBSUB_PROJECT_ID", "GOOGLE_CLOUD_PROJECT", "GCP_PROJECT"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// getPubSubClient lazily builds the shared client, retrying with capped
// backoff. ADC unless PUBSUB_CREDENTIALS_JSON provides explicit JSON.
func getPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	pubsubClientMu.Lock()
	if pubsubClient != nil {
		c := pubsubClient
		pubsubClientMu.Unlock()
		return c, nil
	}
	pubsubClientMu.Unlock()

	projectID := pubsubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	var opts []option.ClientOption
	if credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}

	for attempt := 1; ; attempt++ {
		c, err := pubsub.NewClient(ctx, projectID, opts...)
		if err == nil {
			pubsubClientMu.Lock()
			if pubsubClient == nil {
				pubsubClient = c
			} else {
				// lost the init race
				_ = c.Close()
			}
			shared := pubsubClient
			pubsubClientMu.Unlock()

			log.Printf("pubsub client ready (project_id=%s attempt=%d)", projectID, attempt)
			return shared, nil
		}

		sleep := backoff(attempt)
		log.Printf("failed to init pubsub client (project_id=%s attempt=%d): %v; retrying in %s", projectID, attempt, err, sleep)
		time.Sleep(sleep)
	}
}

// PublishInventoryWorkflowWithResult publishes one inventory event to the
// workflow topic and returns the server-assigned message ID.
func PublishInventoryWorkflowWithResult(ctx context.Context, vendorId string, msg PubSubMessage) (string, error) {
	client, err := getPubSubClient(ctx)
	if err != nil {
		return "", err
	}

	topicName := os.Getenv("PUBSUB_TOPIC")
	if topicName == "" {
		return "", errors.New("PUBSUB_TOPIC is required")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	result := client.Topic(topicName).Publish(ctx, &pubsub.Message{Data: payload})
	return result.Get(ctx)
}
