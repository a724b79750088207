package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
)

const eventBufferSize = 16

// ErrConnectTimeout is returned when the websocket handshake does not finish in time.
var ErrConnectTimeout = errors.New("connect timed out")

type WhatsmeowConnector struct {
	store          *CredentialStore
	logger         waLog.Logger
	connectTimeout time.Duration
}

func NewWhatsmeowConnector(credentials *CredentialStore, logger waLog.Logger, browserName string, connectTimeout time.Duration) *WhatsmeowConnector {
	if browserName != "" {
		store.SetOSInfo(browserName, [3]uint32{1, 0, 0})
	}
	return &WhatsmeowConnector{
		store:          credentials,
		logger:         logger,
		connectTimeout: connectTimeout,
	}
}

func (c *WhatsmeowConnector) Connect(ctx context.Context, opts ConnectOptions) (Session, error) {
	device, err := c.store.Device(ctx)
	if err != nil {
		return nil, err
	}

	if opts.RequestQR && device.ID != nil {
		log.Info().Str("jid", device.ID.String()).Msg("dropping stored device to request a fresh qr")
		if err := c.store.Clear(ctx); err != nil {
			return nil, err
		}
		if device, err = c.store.Device(ctx); err != nil {
			return nil, err
		}
	}

	cli := whatsmeow.NewClient(device, c.logger)
	cli.EnableAutoReconnect = false

	sessionCtx, cancel := context.WithCancel(context.Background())
	s := &whatsmeowSession{
		client: cli,
		events: make(chan Event, eventBufferSize),
		ctx:    sessionCtx,
		cancel: cancel,
	}
	cli.AddEventHandler(s.handle)

	if cli.Store.ID == nil {
		qrChan, err := cli.GetQRChannel(sessionCtx)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("open qr channel: %w", err)
		}
		go s.pumpQR(qrChan)
	}

	if err := c.connect(ctx, cli); err != nil {
		s.Disconnect()
		return nil, err
	}
	return s, nil
}

func (c *WhatsmeowConnector) connect(ctx context.Context, cli *whatsmeow.Client) error {
	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- cli.Connect()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		cli.Disconnect()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrConnectTimeout
		}
		return ctx.Err()
	}
}

func (c *WhatsmeowConnector) HasCredentials(ctx context.Context) (bool, error) {
	return c.store.HasCredentials(ctx)
}

func (c *WhatsmeowConnector) ClearCredentials(ctx context.Context) error {
	return c.store.Clear(ctx)
}

func (c *WhatsmeowConnector) Close() error {
	return c.store.Close()
}

type whatsmeowSession struct {
	client *whatsmeow.Client
	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func (s *whatsmeowSession) Events() <-chan Event {
	return s.events
}

func (s *whatsmeowSession) Disconnect() {
	s.once.Do(func() {
		s.cancel()
		s.client.Disconnect()
	})
}

func (s *whatsmeowSession) handle(evt any) {
	if e, ok := translateEvent(evt); ok {
		s.emit(e)
	}
}

func (s *whatsmeowSession) pumpQR(items <-chan whatsmeow.QRChannelItem) {
	for item := range items {
		if e, ok := translateQRItem(item); ok {
			s.emit(e)
		}
	}
}

func (s *whatsmeowSession) emit(e Event) {
	select {
	case s.events <- e:
	case <-s.ctx.Done():
	}
}

// translateEvent maps library events onto the lifecycle events the server
// understands. QR codes arrive through the QR channel instead.
func translateEvent(evt any) (Event, bool) {
	switch e := evt.(type) {
	case *events.Connected:
		return Event{Type: EventConnectionOpen}, true
	case *events.PairSuccess:
		return Event{Type: EventCredentialsUpdated}, true
	case *events.Disconnected:
		return closed(ReasonConnectionLost, nil), true
	case *events.LoggedOut:
		return closed(ReasonLoggedOut, nil), true
	case *events.StreamReplaced:
		return closed(ReasonConnectionReplaced, nil), true
	case *events.TemporaryBan:
		return closed(ReasonBanned, errors.New(e.String())), true
	case *events.ClientOutdated:
		return closed(ReasonClientOutdated, nil), true
	case *events.StreamError:
		return closed(ReasonStreamError, fmt.Errorf("stream error %s", e.Code)), true
	case *events.ConnectFailure:
		if e.Reason.IsLoggedOut() {
			return closed(ReasonLoggedOut, nil), true
		}
		return closed(ReasonConnectFailure, fmt.Errorf("connect failure %d: %s", int(e.Reason), e.Message)), true
	default:
		return Event{}, false
	}
}

func translateQRItem(item whatsmeow.QRChannelItem) (Event, bool) {
	switch item.Event {
	case "code":
		return Event{Type: EventQRAvailable, QRCode: item.Code}, true
	case "success":
		return Event{}, false
	case "timeout":
		return closed(ReasonQRTimeout, nil), true
	case "error":
		return closed(ReasonConnectFailure, item.Error), true
	default:
		return closed(ReasonConnectFailure, errors.New(item.Event)), true
	}
}

func closed(reason CloseReason, err error) Event {
	return Event{Type: EventConnectionClosed, Reason: reason, Err: err}
}
