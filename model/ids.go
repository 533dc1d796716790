package model

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces message ids.
type IDGenerator func() string

// NewMessageID returns a random message id.
func NewMessageID() string {
	return "msg_" + uuid.NewString()
}

// SequentialIDs returns a generator yielding prefix-1, prefix-2, ... for
// deterministic replays and tests.
func SequentialIDs(prefix string) IDGenerator {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}

// BackgroundTaskMessageID is the stable id of the output message of the
// background task with the given canonical key.
func BackgroundTaskMessageID(taskKey string) string {
	return "bgtask:" + taskKey
}
