package ws

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	wsclient "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/require"

	"github.com/fathima-sithara/inbox-service/internal/directory"
	"github.com/fathima-sithara/inbox-service/internal/feed"
	"github.com/fathima-sithara/inbox-service/internal/inbox"
	"github.com/fathima-sithara/inbox-service/internal/logger"
	"github.com/fathima-sithara/inbox-service/internal/models"
)

type fakeFeed struct{ stream *feed.Stream }

func (f *fakeFeed) Subscribe(context.Context, string) (*feed.Stream, error) {
	return f.stream, nil
}

type fakeDirectory struct{}

func (fakeDirectory) Lookup(context.Context, string) (*models.PartnerMetadata, error) {
	return nil, directory.ErrNotFound
}

func TestHandlerClosesSocketOnFeedFailure(t *testing.T) {
	f := &fakeFeed{stream: feed.NewStream(1)}
	svc := inbox.NewService(f, fakeDirectory{}, logger.Nop())

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", "U")
		return c.Next()
	})
	app.Get("/ws", websocket.New(Handler(svc, logger.Nop())))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	defer func() { _ = app.Shutdown() }()

	url := "ws://" + ln.Addr().String() + "/ws"
	var conn *wsclient.Conn
	require.Eventually(t, func() bool {
		c, _, dialErr := wsclient.DefaultDialer.Dial(url, nil)
		if dialErr != nil {
			return false
		}
		conn = c
		return true
	}, 5*time.Second, 50*time.Millisecond)
	defer conn.Close()

	// first frame is the initial inbox push
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)

	f.stream.Fail(errors.New("feed gone"))

	// the server tears the socket down itself; reads must end with a
	// close or network error, not sit until the deadline
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for err == nil {
		_, _, err = conn.ReadMessage()
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		t.Fatal("socket still open after feed failure")
	}
}
