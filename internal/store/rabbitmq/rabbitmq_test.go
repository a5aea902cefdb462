package rabbitmq

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

func TestQueueNames(t *testing.T) {
	require.Equal(t, "chat_jobs.retry", RetryQueue("chat_jobs"))
	require.Equal(t, "chat_jobs.dlq", DeadLetterQueue("chat_jobs"))
}

func TestRetryCount(t *testing.T) {
	require.Equal(t, 0, retryCount(nil))
	require.Equal(t, 0, retryCount(amqp.Table{}))
	require.Equal(t, 2, retryCount(amqp.Table{retryHeader: int32(2)}))
	require.Equal(t, 3, retryCount(amqp.Table{retryHeader: int64(3)}))
	require.Equal(t, 0, retryCount(amqp.Table{retryHeader: "x"}))
}
