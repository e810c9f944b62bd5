package nats

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/answerdesk/internal/logger"
	"github.com/Strob0t/answerdesk/internal/port/messagequeue"
)

const waitFor = 10 * time.Second

var errHandler = errors.New("handler failed")

// delivery is what a test subscriber observed for a single message.
type delivery struct {
	subject   string
	data      []byte
	requestID string
	retries   string
}

func connectOrSkip(t *testing.T) *Queue {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}
	q, err := Connect(context.Background(), url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

// scratchSubject lives under questions.> so the stream captures it, and has
// no registered schema so any JSON passes validation.
func scratchSubject(t *testing.T) string {
	return "questions.scratch." + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
}

// tap reads raw deliveries on subject without going through Queue.Subscribe,
// so dead-lettered payloads are not validated a second time. Only messages
// published after the call are seen.
func tap(t *testing.T, q *Queue, subject string) <-chan delivery {
	t.Helper()
	ctx := context.Background()
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		t.Fatalf("tap %s: %v", subject, err)
	}
	out := make(chan delivery, 16)
	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		h := msg.Headers()
		select {
		case out <- delivery{subject: msg.Subject(), data: msg.Data(), requestID: h.Get(headerRequestID), retries: h.Get(headerRetryCount)}:
		default:
		}
		_ = msg.Ack()
	})
	if err != nil {
		t.Fatalf("tap consume %s: %v", subject, err)
	}
	t.Cleanup(cc.Stop)
	return out
}

func subscribe(t *testing.T, q *Queue, subject string, fn messagequeue.Handler) {
	t.Helper()
	stop, err := q.Subscribe(context.Background(), subject, fn)
	if err != nil {
		t.Fatalf("Subscribe %s: %v", subject, err)
	}
	t.Cleanup(stop)
}

func await(t *testing.T, ch <-chan delivery) delivery {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for delivery")
		return delivery{}
	}
}

func TestQueue_DeliversPayloadWithRequestID(t *testing.T) {
	q := connectOrSkip(t)
	subject := scratchSubject(t)

	got := make(chan delivery, 1)
	subscribe(t, q, subject, func(ctx context.Context, subj string, data []byte) error {
		select {
		case got <- delivery{subject: subj, data: data, requestID: logger.RequestID(ctx)}:
		default:
		}
		return nil
	})

	want := messagequeue.QuestionAnsweredPayload{AnswerID: "a-1", EntryID: "reset-password", Confidence: 0.82, Source: "api"}
	data, err := json.Marshal(want)
	if err != nil {
		t.Fatal(err)
	}
	ctx := logger.WithRequestID(context.Background(), "req-7f3")
	if err := q.Publish(ctx, subject, data); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	d := await(t, got)
	if d.subject != subject {
		t.Errorf("subject = %q, want %q", d.subject, subject)
	}
	if d.requestID != "req-7f3" {
		t.Errorf("request id = %q, want req-7f3", d.requestID)
	}
	var payload messagequeue.QuestionAnsweredPayload
	if err := json.Unmarshal(d.data, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload != want {
		t.Errorf("payload = %+v, want %+v", payload, want)
	}
}

func TestQueue_InvalidDecisionGoesToDLQ(t *testing.T) {
	q := connectOrSkip(t)
	dead := tap(t, q, messagequeue.SubjectApprovalDecision+".dlq")

	subscribe(t, q, messagequeue.SubjectApprovalDecision, func(context.Context, string, []byte) error { return nil })

	if err := q.Publish(context.Background(), messagequeue.SubjectApprovalDecision, []byte("approve a-1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	d := await(t, dead)
	if string(d.data) != "approve a-1" {
		t.Errorf("dlq data = %q", d.data)
	}
}

func TestQueue_FailingHandlerIsRetried(t *testing.T) {
	q := connectOrSkip(t)
	subject := scratchSubject(t)
	seen := tap(t, q, subject)

	var attempts atomic.Int32
	subscribe(t, q, subject, func(context.Context, string, []byte) error {
		if attempts.Add(1) == 1 {
			return errHandler
		}
		return nil
	})

	if err := q.Publish(context.Background(), subject, []byte(`{"answer_id":"a-2"}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	first := await(t, seen)
	if first.retries != "" {
		t.Errorf("first delivery retry header = %q, want empty", first.retries)
	}
	second := await(t, seen)
	if second.retries != "1" {
		t.Errorf("retry header = %q, want 1", second.retries)
	}
}

func TestQueue_ExhaustedRetriesGoToDLQ(t *testing.T) {
	q := connectOrSkip(t)
	subject := scratchSubject(t)
	dead := tap(t, q, subject+".dlq")

	subscribe(t, q, subject, func(context.Context, string, []byte) error { return errHandler })

	msg := &nats.Msg{Subject: subject, Data: []byte(`{"answer_id":"a-3"}`), Header: nats.Header{}}
	msg.Header.Set(headerRetryCount, "3")
	if _, err := q.js.PublishMsg(context.Background(), msg); err != nil {
		t.Fatalf("PublishMsg: %v", err)
	}

	d := await(t, dead)
	if string(d.data) != `{"answer_id":"a-3"}` {
		t.Errorf("dlq data = %q", d.data)
	}
	if d.retries != "3" {
		t.Errorf("dlq retry header = %q, want 3", d.retries)
	}
}

func TestQueue_KeyValueBucket(t *testing.T) {
	q := connectOrSkip(t)
	ctx := context.Background()

	kv, err := q.KeyValue(ctx, "scratch-"+t.Name(), time.Minute)
	if err != nil {
		t.Fatalf("KeyValue: %v", err)
	}

	for _, v := range []string{"pending", "approved"} {
		if _, err := kv.Put(ctx, "a-4", []byte(v)); err != nil {
			t.Fatalf("Put %s: %v", v, err)
		}
		e, err := kv.Get(ctx, "a-4")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(e.Value()) != v {
			t.Errorf("value = %q, want %q", e.Value(), v)
		}
	}

	if err := kv.Delete(ctx, "a-4"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := kv.Get(ctx, "a-4"); !errors.Is(err, jetstream.ErrKeyNotFound) {
		t.Errorf("Get after delete: err = %v, want ErrKeyNotFound", err)
	}
}

func TestQueue_IsConnected(t *testing.T) {
	q := connectOrSkip(t)
	if !q.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}
}
