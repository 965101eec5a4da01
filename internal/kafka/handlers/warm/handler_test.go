package warm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-proxy/internal/engine"
	"github.com/aliskhannn/image-proxy/internal/model"
	"github.com/aliskhannn/image-proxy/internal/proxy"
)

func TestMain(m *testing.M) {
	zlog.Init()
	os.Exit(m.Run())
}

type fakeService struct {
	formats []engine.Format
	urls    []string
	err     error
}

func (s *fakeService) Process(_ context.Context, _, sourceURL string, format engine.Format) (proxy.Result, error) {
	s.urls = append(s.urls, sourceURL)
	s.formats = append(s.formats, format)
	return proxy.Result{}, s.err
}

func message(t *testing.T, req model.WarmRequest) kafka.Message {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(req.URL), Value: data}
}

func newRequest(format string) model.WarmRequest {
	return model.WarmRequest{
		ID:        uuid.New(),
		URL:       "https://example.com/a.png",
		Format:    format,
		CreatedAt: time.Now(),
	}
}

func TestHandle(t *testing.T) {
	s := &fakeService{}
	h := NewHandler(s, engine.JPEG)

	require.NoError(t, h.Handle(context.Background(), message(t, newRequest("png"))))
	require.NoError(t, h.Handle(context.Background(), message(t, newRequest(""))))

	assert.Equal(t, []engine.Format{engine.PNG, engine.JPEG}, s.formats)
	assert.Equal(t, []string{"https://example.com/a.png", "https://example.com/a.png"}, s.urls)
}

func TestHandle_DropsPermanentFailures(t *testing.T) {
	for _, err := range []error{
		fmt.Errorf("%w: bad token", proxy.ErrBadRequest),
		fmt.Errorf("%w: crop", proxy.ErrTransform),
		fmt.Errorf("%w: webp", proxy.ErrEncode),
	} {
		h := NewHandler(&fakeService{err: err}, engine.JPEG)
		assert.NoError(t, h.Handle(context.Background(), message(t, newRequest(""))))
	}
}

func TestHandle_ReturnsTransientFailures(t *testing.T) {
	upstream := fmt.Errorf("%w: connection refused", proxy.ErrUpstream)
	h := NewHandler(&fakeService{err: upstream}, engine.JPEG)

	err := h.Handle(context.Background(), message(t, newRequest("")))
	assert.ErrorIs(t, err, proxy.ErrUpstream)

	h = NewHandler(&fakeService{err: context.DeadlineExceeded}, engine.JPEG)
	err = h.Handle(context.Background(), message(t, newRequest("")))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestHandle_DropsInvalidMessages(t *testing.T) {
	s := &fakeService{}
	h := NewHandler(s, engine.JPEG)

	assert.NoError(t, h.Handle(context.Background(), kafka.Message{Value: []byte("{not json")}))
	assert.NoError(t, h.Handle(context.Background(), message(t, newRequest("svg"))))
	assert.Empty(t, s.urls)
}
