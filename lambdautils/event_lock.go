package lambdautils

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/pkg/errors"
)

const maxLockAttempts = 12

// EventLock manages locking of eventbridge events using dynamodb. Scheduled
// rules deliver at least once, so the same event id can reach the function
// more than once. Events are locked by their id and the lock expires after the
// TTL (seconds) has expired.
//
// RetryWait (milliseconds) is the pause between attempts after a connection
// reset.
type EventLock struct {
	Region    string `json:"region"`
	Table     string `json:"table"`
	TTL       int64  `json:"ttl"`
	RetryWait int64  `json:"retry-wait"`

	nowFunc func() time.Time
	svcFunc func(client.ConfigProvider) dynamodbiface.DynamoDBAPI
}

// NewEventLock returns a new event lock instance to manage dynamodb locking
func NewEventLock(region string, table string, ttl int64, retry int64) *EventLock {
	lock := &EventLock{
		Region:    region,
		Table:     table,
		TTL:       ttl,
		RetryWait: retry,
	}

	lock.setDefaults()
	return lock
}

// NewEventLockFromJson returns a new event lock instance to manage dynamodb
// locking
func NewEventLockFromJson(s string) (*EventLock, error) {
	lock := new(EventLock)

	err := json.Unmarshal([]byte(s), lock)
	if err != nil {
		return nil, errors.Wrap(err, "failed decoding event lock")
	}

	if lock.Region == "" {
		return nil, errors.New("region is required")
	}

	if lock.Table == "" {
		return nil, errors.New("table is required")
	}

	lock.setDefaults()
	return lock, nil
}

func (lock *EventLock) setDefaults() {
	if lock.TTL == 0 {
		lock.TTL = 300
	}

	if lock.RetryWait == 0 {
		lock.RetryWait = 500
	}
}

// now is used internally to assist stubs on time.Now() for testing
func (lock *EventLock) now() time.Time {
	if lock.nowFunc != nil {
		return lock.nowFunc()
	}

	return time.Now()
}

// svc is used internally to assist stubs on dynamodb for testing
func (lock *EventLock) svc(p client.ConfigProvider) dynamodbiface.DynamoDBAPI {
	if lock.svcFunc != nil {
		return lock.svcFunc(p)
	}

	return dynamodb.New(p)
}

// expires returns the current time + ttl in Epoch format as a string
func (lock *EventLock) expires() string {
	d := time.Duration(lock.TTL) * time.Second
	t := lock.now().Add(d).Unix()
	return strconv.FormatInt(t, 10)
}

// current returns the current time in Epoch format as a string
func (lock *EventLock) current() string {
	return strconv.FormatInt(lock.now().Unix(), 10)
}

// putItemInput constructs the input for the given id insertion into dynamodb.
// It applies a conditional expression that causes failures when the id has
// already been added but not yet expired.
func (lock *EventLock) putItemInput(id string) *dynamodb.PutItemInput {
	condition := "attribute_not_exists(id) OR :cur > expire"

	return &dynamodb.PutItemInput{
		Item: map[string]*dynamodb.AttributeValue{
			"id": {
				S: aws.String(id),
			},
			"expire": {
				N: aws.String(lock.expires()),
			},
		},
		TableName:           aws.String(lock.Table),
		ConditionExpression: aws.String(condition),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":cur": {
				N: aws.String(lock.current()),
			},
		},
	}
}

// AvailableById returns true if the given id is available for use (not locked)
// and it returns false if it is locked.
//
// Locked is defined as the record being in the configured dynamodb table and
// not expired.
func (lock *EventLock) AvailableById(ctx context.Context, id string) (bool, error) {
	s, err := session.NewSession(&aws.Config{
		Region: aws.String(lock.Region),
	})

	if err != nil {
		return false, errors.Wrap(err, "failed getting session")
	}

	svc := lock.svc(s)
	input := lock.putItemInput(id)

	for attempts := 1; attempts <= maxLockAttempts; attempts++ {
		_, err = svc.PutItemWithContext(ctx, input)
		if err == nil {
			break
		}
		if strings.Contains(err.Error(), "connection reset by peer") && attempts < maxLockAttempts {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(time.Duration(lock.RetryWait) * time.Millisecond):
			}
			continue // retry
		}
		break
	}

	if err == nil {
		return true, nil
	}

	aerr, ok := err.(awserr.Error)
	if ok && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
		return false, nil
	}

	return false, errors.Wrapf(err, "failed put %v to %v", id, lock.Table)
}

// Available returns true if the event is available for use (not locked) and
// it returns false if it is locked.
func (lock *EventLock) Available(ctx context.Context, event events.CloudWatchEvent) (bool, error) {
	if event.ID == "" {
		return false, errors.New("event has no id")
	}

	return lock.AvailableById(ctx, event.ID)
}
