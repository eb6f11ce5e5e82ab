package storage

import (
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/sethwebster/presentations/deck"
)

// newTestClient starts an in-process redis and returns a client bound to
// it. The server is torn down with the test.
func newTestClient(t *testing.T) (redis.UniversalClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

// testClock is a frozen, manually advanced wall clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testOptions(clock *testClock) Options {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return Options{
		Now:    clock.Now,
		Logger: logrus.NewEntry(logger),
	}
}

// Tiny single-pixel PNG payloads. The pipeline never decodes pixels, so
// only the bytes and their hashes matter; the PNG signature keeps the
// fixtures honest.
var (
	redPixelPNG  = append(pngSignature(), 0x01, 0x52, 0x45, 0x44)
	bluePixelPNG = append(pngSignature(), 0x01, 0x42, 0x4c, 0x55)
)

func pngSignature() []byte {
	return []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
}

func dataURI(mime string, p []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(p)
}

func imageElement(id, src string) *deck.Element {
	el := deck.NewElement(id, deck.TypeImage)
	el.Src = src
	return el
}
